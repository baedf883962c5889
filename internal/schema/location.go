package schema

import (
	"fmt"
	"strconv"
	"strings"
)

// Location addresses one category record: "<category>/<id>".
type Location struct {
	Category string
	ID       int64
}

func (l Location) String() string {
	return l.Category + "/" + strconv.FormatInt(l.ID, 10)
}

// ParseLocation splits an entry_location value. The category part is not
// checked against a registry here.
func ParseLocation(s string) (Location, error) {
	category, rawID, ok := strings.Cut(s, "/")
	if !ok || category == "" || rawID == "" {
		return Location{}, fmt.Errorf("malformed entry location %q", s)
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Location{}, fmt.Errorf("malformed entry location %q: %w", s, err)
	}
	return Location{Category: category, ID: id}, nil
}

// CategoryOf returns the category part of an entry_location, or "" if the
// value has no separator.
func CategoryOf(location string) string {
	category, _, ok := strings.Cut(location, "/")
	if !ok {
		return ""
	}
	return category
}
