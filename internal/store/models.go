// Package store provides SQLite-backed persistence for world databases.
// It owns the lifecycle of category records, the tag index and the world
// row. The store keeps no per-world state: every call takes the session it
// should run against.
package store

import (
	"context"
	"database/sql"
)

// Session is an open handle on one world database. *sql.DB satisfies it.
type Session interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Fields maps column names to values. Text columns hold strings, blob
// columns hold []byte. A nil value writes NULL.
type Fields map[string]any

// Name returns the name field, or "" if it is absent or not a string.
func (f Fields) Name() string {
	s, _ := f["name"].(string)
	return s
}

// Record is one category row as seen by callers.
type Record struct {
	Category string `json:"category"`
	ID       int64  `json:"id"`
	// Fields holds the non-NULL user columns. It never contains id.
	Fields Fields `json:"fields"`
}

// TagEntry is one row of the tag index.
type TagEntry struct {
	ID            int64  `json:"id"`
	EntryName     string `json:"entryName"`
	EntryLocation string `json:"entryLocation"`
}

// World is the singleton row of a world database.
type World struct {
	Name     string `json:"name"`
	WorldMap []byte `json:"worldMap,omitempty"`
}

// ConflictPolicy decides what an upsert does when the name already exists.
type ConflictPolicy int

const (
	// ConflictAsk consults UpsertOptions.Confirm. Without a callback the
	// upsert returns *ConflictError.
	ConflictAsk ConflictPolicy = iota
	ConflictOverwrite
	ConflictSkip
)

func (p ConflictPolicy) String() string {
	switch p {
	case ConflictAsk:
		return "ask"
	case ConflictOverwrite:
		return "overwrite"
	case ConflictSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// ParseConflictPolicy parses "ask", "overwrite" or "skip".
func ParseConflictPolicy(s string) (ConflictPolicy, bool) {
	switch s {
	case "ask", "":
		return ConflictAsk, true
	case "overwrite":
		return ConflictOverwrite, true
	case "skip":
		return ConflictSkip, true
	default:
		return ConflictAsk, false
	}
}

// ConfirmFunc is asked whether an existing record should be overwritten.
// It is called before the write transaction begins, so it may read through
// the same session. If a different record holds the name by the time the
// write runs, the upsert fails with *ConflictError instead of asking again.
type ConfirmFunc func(ctx context.Context, conflict *ConflictError) (bool, error)

// UpsertOptions controls UpsertByName.
type UpsertOptions struct {
	OnConflict ConflictPolicy
	Confirm    ConfirmFunc
}

// Outcome is what an upsert ended up doing.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
	OutcomeSkipped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeSkipped:
		return "skipped"
	default:
		return "none"
	}
}

// ChangeKind tells a change hook what happened.
type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeDeleted  ChangeKind = "deleted"
	ChangeImported ChangeKind = "imported"
)

// Change describes one committed write.
type Change struct {
	Kind     ChangeKind
	Category string
	Name     string
	ID       int64
}

// AllCategories selects every category in FilterTagsByCategory.
const AllCategories = "all"

// legacyAllCategories is the sentinel older pickers send.
const legacyAllCategories = "all_categories"

// Storer defines the entry store operations.
// SQLiteStore is the sole implementation.
type Storer interface {
	// Category records
	UpsertByName(ctx context.Context, sess Session, category string, fields Fields, opts UpsertOptions) (Outcome, error)
	DeleteByName(ctx context.Context, sess Session, category, name string) (bool, error)
	ListNames(ctx context.Context, sess Session, category string) ([]string, error)
	ListCategories(ctx context.Context, sess Session) ([]string, error)
	ColumnsOf(category string) []string

	// Tag index
	GetRecord(ctx context.Context, sess Session, name string) (*Record, error)
	ResolveRecord(ctx context.Context, sess Session, name string) (*Record, error)
	LocationOf(ctx context.Context, sess Session, name string) (string, error)
	AllTagLabels(ctx context.Context, sess Session) ([]string, error)
	TagChoices(ctx context.Context, sess Session, self string) ([]string, error)
	FilterTagsByCategory(ctx context.Context, sess Session, labels []string, category string) ([]string, error)

	// World row
	CreateWorld(ctx context.Context, sess Session, name string) error
	GetWorld(ctx context.Context, sess Session) (*World, error)
	SetWorldMap(ctx context.Context, sess Session, data []byte) error
	GetWorldMap(ctx context.Context, sess Session) ([]byte, error)

	// Export/Import
	Export(ctx context.Context, sess Session) (*Snapshot, error)
	Import(ctx context.Context, sess Session, snap *Snapshot) error
}
