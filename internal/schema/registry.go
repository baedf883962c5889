// Package schema declares the closed set of record categories stored in a
// world database and the column shape of each one.
// Categories are data, not types: every category shares one generic
// RecordType and the Entry Store reads and writes them by name.
package schema

import (
	"fmt"
	"strings"
)

// Structural tables. They live in every world database but are not
// user-facing record categories.
const (
	TagsTable  = "tags"
	WorldTable = "world"
)

// Column names shared by category tables.
const (
	ColID          = "id"
	ColName        = "name"
	ColDescription = "description"
	ColStats       = "stats"
	ColTags        = "tags"
	ColImageData   = "image_data"
)

// Kind is the storage class of a column.
type Kind int

const (
	KindText Kind = iota
	KindBlob
)

func (k Kind) String() string {
	switch k {
	case KindText:
		return "TEXT"
	case KindBlob:
		return "BLOB"
	default:
		return "UNKNOWN"
	}
}

// Column describes one editable column of a table.
type Column struct {
	Name     string
	Kind     Kind
	Required bool
}

// RecordType is the shape of one table: its name and its editable columns in
// declared order. The surrogate id column is implicit.
type RecordType struct {
	Category   string
	Columns    []Column
	Structural bool
}

// Column looks up a column by name.
func (rt *RecordType) Column(name string) (Column, bool) {
	for _, c := range rt.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// ColumnNames returns the editable column names in declared order.
func (rt *RecordType) ColumnNames() []string {
	names := make([]string, 0, len(rt.Columns))
	for _, c := range rt.Columns {
		names = append(names, c.Name)
	}
	return names
}

// Registry maps category names to record types.
type Registry struct {
	types map[string]*RecordType
	order []string
}

// NewRegistry builds a registry from the given record types. Duplicate names
// are rejected.
func NewRegistry(types ...*RecordType) (*Registry, error) {
	r := &Registry{types: make(map[string]*RecordType, len(types))}
	for _, rt := range types {
		if rt == nil || rt.Category == "" {
			return nil, fmt.Errorf("record type without a category name")
		}
		if _, dup := r.types[rt.Category]; dup {
			return nil, fmt.Errorf("category %q registered twice", rt.Category)
		}
		r.types[rt.Category] = rt
		r.order = append(r.order, rt.Category)
	}
	return r, nil
}

// ListCategories returns all user-facing categories in declared order.
// The structural world and tags tables are never included.
func (r *Registry) ListCategories() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if IsStructural(name) || r.types[name].Structural {
			continue
		}
		out = append(out, name)
	}
	return out
}

// ColumnsOf returns the editable column names of category, excluding id.
// An empty or unknown category yields an empty result.
func (r *Registry) ColumnsOf(category string) []string {
	if category == "" {
		return nil
	}
	rt := r.RecordTypeOf(category)
	if rt == nil {
		return nil
	}
	return rt.ColumnNames()
}

// RecordTypeOf resolves a category name. Returns nil if it is not registered.
func (r *Registry) RecordTypeOf(category string) *RecordType {
	if r == nil {
		return nil
	}
	return r.types[category]
}

// IsCategory reports whether name is a registered, non-structural category.
func (r *Registry) IsCategory(name string) bool {
	rt := r.RecordTypeOf(name)
	return rt != nil && !rt.Structural
}

// IsStructural reports whether name is one of the bookkeeping tables.
func IsStructural(name string) bool {
	return name == TagsTable || name == WorldTable
}

// DisplayName turns a category into the label shown in pickers,
// e.g. "historical_events" becomes "Historical Events".
func DisplayName(category string) string {
	words := strings.Split(category, "_")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return strings.Join(words, " ")
}

// CategoryFromDisplay is the inverse of DisplayName.
func CategoryFromDisplay(label string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(label), " ", "_"))
}
