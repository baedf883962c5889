package store

import (
	"errors"
	"fmt"
)

// ErrWorldMissing is returned by world map operations when the database has
// no world row. The row is written when the world is created, so this is a
// broken database rather than an ordinary miss.
var ErrWorldMissing = errors.New("world row missing")

// ValidationError reports input the store refuses before touching the
// database: an unknown category, an unknown field or a bad value.
type ValidationError struct {
	Category string
	Field    string
	Reason   string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Field != "":
		return fmt.Sprintf("invalid field %q for %q: %s", e.Field, e.Category, e.Reason)
	default:
		return fmt.Sprintf("invalid category %q: %s", e.Category, e.Reason)
	}
}

// NotFoundError reports a lookup that resolved to nothing. Step names the
// stage that failed: "tag", "location", "category" or "record".
type NotFoundError struct {
	Name     string
	Step     string
	Location string
}

func (e *NotFoundError) Error() string {
	if e.Location != "" {
		return fmt.Sprintf("entry %q not found (%s %q)", e.Name, e.Step, e.Location)
	}
	return fmt.Sprintf("entry %q not found (%s)", e.Name, e.Step)
}

// ConflictError reports that a record with the same name already exists in
// the category. It is a decision point: the caller may retry with
// ConflictOverwrite.
type ConflictError struct {
	Category string
	Name     string
	ID       int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("entry %q already exists in %q (id %d)", e.Name, e.Category, e.ID)
}

// StorageError wraps a driver failure during a write. The write has been
// rolled back when this is returned.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}
