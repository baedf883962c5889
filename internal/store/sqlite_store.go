package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
)

// SQLiteStore is the SQLite-backed entry store.
// It holds only configuration; sessions are passed per call.
type SQLiteStore struct {
	registry *schema.Registry
	logger   *zap.Logger
	cascade  bool
	onChange func(ctx context.Context, c Change)
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(s *SQLiteStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCascadeDeletes makes DeleteByName also remove the tag rows that point
// at the deleted record. Off by default: dangling tags are kept and resolve
// to nothing.
func WithCascadeDeletes(on bool) Option {
	return func(s *SQLiteStore) { s.cascade = on }
}

// WithChangeHook registers fn to run after every committed write.
func WithChangeHook(fn func(ctx context.Context, c Change)) Option {
	return func(s *SQLiteStore) { s.onChange = fn }
}

// New creates a store over the given registry. A nil registry means
// schema.Default().
func New(registry *schema.Registry, opts ...Option) *SQLiteStore {
	if registry == nil {
		registry = schema.Default()
	}
	s := &SQLiteStore{registry: registry, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the schema registry the store validates against.
func (s *SQLiteStore) Registry() *schema.Registry {
	return s.registry
}

// EnsureSchema creates any missing table of the registry.
func (s *SQLiteStore) EnsureSchema(ctx context.Context, sess Session) error {
	if _, err := sess.ExecContext(ctx, s.registry.SchemaSQL()); err != nil {
		return storageErr("create schema", err)
	}
	return nil
}

// =============================================================================
// Transactions
// =============================================================================

// withTx runs fn in a write transaction. Any error from fn rolls the whole
// transaction back before it is returned.
func (s *SQLiteStore) withTx(ctx context.Context, sess Session, op string, fn func(tx *sql.Tx) error) error {
	tx, err := sess.BeginTx(ctx, nil)
	if err != nil {
		return storageErr(op, fmt.Errorf("begin transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("rollback failed", zap.String("op", op), zap.Error(rbErr))
		}
		s.logger.Warn("write rolled back", zap.String("op", op), zap.Error(err))
		return err
	}
	if err := tx.Commit(); err != nil {
		return storageErr(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}

// withRead runs fn in a transaction that is always rolled back, so a
// sequence of queries sees one snapshot.
func (s *SQLiteStore) withRead(ctx context.Context, sess Session, fn func(tx *sql.Tx) error) error {
	tx, err := sess.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() { _ = tx.Rollback() }()
	return fn(tx)
}

func (s *SQLiteStore) notify(ctx context.Context, c Change) {
	if s.onChange != nil {
		s.onChange(ctx, c)
	}
}

// =============================================================================
// Category records
// =============================================================================

// categoryType resolves a user-facing category or fails with a
// ValidationError.
func (s *SQLiteStore) categoryType(category string) (*schema.RecordType, error) {
	rt := s.registry.RecordTypeOf(category)
	if rt == nil {
		return nil, &ValidationError{Category: category, Reason: "unknown category"}
	}
	if rt.Structural {
		return nil, &ValidationError{Category: category, Reason: "structural table"}
	}
	return rt, nil
}

// validateFields checks keys and value kinds against rt and returns a copy
// with typed nil blobs normalized to NULL.
func validateFields(rt *schema.RecordType, fields Fields) (Fields, error) {
	out := make(Fields, len(fields))
	for key, value := range fields {
		col, ok := rt.Column(key)
		if !ok {
			return nil, &ValidationError{Category: rt.Category, Field: key, Reason: "no such column"}
		}
		switch v := value.(type) {
		case nil:
			if col.Required {
				return nil, &ValidationError{Category: rt.Category, Field: key, Reason: "required"}
			}
		case string:
			if col.Kind != schema.KindText {
				return nil, &ValidationError{Category: rt.Category, Field: key, Reason: "expected binary data"}
			}
		case []byte:
			if col.Kind != schema.KindBlob {
				return nil, &ValidationError{Category: rt.Category, Field: key, Reason: "expected text"}
			}
			if v == nil {
				value = nil
			}
		default:
			return nil, &ValidationError{Category: rt.Category, Field: key, Reason: fmt.Sprintf("unsupported value type %T", value)}
		}
		out[key] = value
	}
	if strings.TrimSpace(out.Name()) == "" {
		return nil, &ValidationError{Category: rt.Category, Field: schema.ColName, Reason: "required"}
	}
	return out, nil
}

// orderedColumns returns the keys of fields in the declared column order.
func orderedColumns(rt *schema.RecordType, fields Fields) []string {
	cols := make([]string, 0, len(fields))
	for _, c := range rt.Columns {
		if _, ok := fields[c.Name]; ok {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// SplitTags splits a serialized tag list on commas. Labels are trimmed and
// empty labels dropped.
func SplitTags(serialized string) []string {
	var labels []string
	for _, label := range strings.Split(serialized, ",") {
		label = strings.TrimSpace(label)
		if label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}

// findIDByName returns the id of the first record named name, or 0.
func findIDByName(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, category, name string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM `+schema.Quote(category)+` WHERE name = ? ORDER BY id LIMIT 1`, name,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return id, err
}

// UpsertByName creates the record named fields["name"] in category, or
// updates it when it already exists and the conflict policy allows it.
//
// An insert writes the record and one tag row per label of fields["tags"]
// in a single transaction. An update writes every supplied field onto the
// existing row, leaves omitted fields alone and does not touch the tag
// index.
func (s *SQLiteStore) UpsertByName(ctx context.Context, sess Session, category string, fields Fields, opts UpsertOptions) (Outcome, error) {
	rt, err := s.categoryType(category)
	if err != nil {
		return 0, err
	}
	fields, err = validateFields(rt, fields)
	if err != nil {
		return 0, err
	}
	name := fields.Name()

	// The confirm callback runs before the transaction opens: a world
	// session has one connection, so a callback reading through it would
	// block on the open transaction.
	var (
		confirmedID int64
		confirmed   bool
	)
	if opts.OnConflict == ConflictAsk && opts.Confirm != nil {
		existing, err := findIDByName(ctx, sess, category, name)
		if err != nil {
			return 0, storageErr("look up existing entry", err)
		}
		if existing != 0 {
			confirmed, err = s.decide(ctx, opts, &ConflictError{Category: category, Name: name, ID: existing})
			if err != nil {
				return 0, err
			}
			confirmedID = existing
		}
	}

	var (
		outcome  Outcome
		recordID int64
		tagCount int
	)
	err = s.withTx(ctx, sess, "upsert "+category, func(tx *sql.Tx) error {
		existing, err := findIDByName(ctx, tx, category, name)
		if err != nil {
			return storageErr("look up existing entry", err)
		}

		if existing != 0 {
			conflict := &ConflictError{Category: category, Name: name, ID: existing}
			var overwrite bool
			switch {
			case opts.OnConflict != ConflictAsk:
				overwrite, _ = s.decide(ctx, opts, conflict)
			case opts.Confirm != nil && existing == confirmedID:
				overwrite = confirmed
			default:
				// no callback, or the entry appeared after the answer was given
				return conflict
			}
			recordID = existing
			if !overwrite {
				outcome = OutcomeSkipped
				return nil
			}
			if err := updateRecord(ctx, tx, rt, existing, fields); err != nil {
				return storageErr("update entry", err)
			}
			outcome = OutcomeUpdated
			return nil
		}

		recordID, err = insertRecord(ctx, tx, rt, fields)
		if err != nil {
			return storageErr("insert entry", err)
		}
		serialized, _ := fields[schema.ColTags].(string)
		loc := schema.Location{Category: category, ID: recordID}.String()
		for _, label := range SplitTags(serialized) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tags (entry_name, entry_location) VALUES (?, ?)`, name, loc,
			); err != nil {
				return storageErr(fmt.Sprintf("insert tag %q", label), err)
			}
			tagCount++
		}
		outcome = OutcomeInserted
		return nil
	})
	if err != nil {
		return 0, err
	}

	switch outcome {
	case OutcomeInserted:
		s.logger.Info("entry added",
			zap.String("category", category), zap.String("name", name),
			zap.Int64("id", recordID), zap.Int("tags", tagCount))
		s.notify(ctx, Change{Kind: ChangeInserted, Category: category, Name: name, ID: recordID})
	case OutcomeUpdated:
		s.logger.Info("entry updated",
			zap.String("category", category), zap.String("name", name), zap.Int64("id", recordID))
		s.notify(ctx, Change{Kind: ChangeUpdated, Category: category, Name: name, ID: recordID})
	case OutcomeSkipped:
		s.logger.Info("entry not updated",
			zap.String("category", category), zap.String("name", name), zap.Int64("id", recordID))
	}
	return outcome, nil
}

// decide applies the conflict policy.
func (s *SQLiteStore) decide(ctx context.Context, opts UpsertOptions, conflict *ConflictError) (bool, error) {
	switch opts.OnConflict {
	case ConflictOverwrite:
		return true, nil
	case ConflictSkip:
		return false, nil
	default:
		if opts.Confirm == nil {
			return false, conflict
		}
		ok, err := opts.Confirm(ctx, conflict)
		if err != nil {
			return false, fmt.Errorf("confirm overwrite of %q: %w", conflict.Name, err)
		}
		return ok, nil
	}
}

func insertRecord(ctx context.Context, tx *sql.Tx, rt *schema.RecordType, fields Fields) (int64, error) {
	cols := orderedColumns(rt, fields)
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = schema.Quote(c)
		args[i] = fields[c]
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")

	res, err := tx.ExecContext(ctx,
		`INSERT INTO `+schema.Quote(rt.Category)+` (`+strings.Join(quoted, ", ")+`) VALUES (`+placeholders+`)`,
		args...,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func updateRecord(ctx context.Context, tx *sql.Tx, rt *schema.RecordType, id int64, fields Fields) error {
	cols := orderedColumns(rt, fields)
	sets := make([]string, len(cols))
	args := make([]any, 0, len(cols)+1)
	for i, c := range cols {
		sets[i] = schema.Quote(c) + " = ?"
		args = append(args, fields[c])
	}
	args = append(args, id)

	_, err := tx.ExecContext(ctx,
		`UPDATE `+schema.Quote(rt.Category)+` SET `+strings.Join(sets, ", ")+` WHERE id = ?`,
		args...,
	)
	return err
}

// DeleteByName removes the record named name from category. A missing name
// is not an error; the returned bool reports whether a row was deleted.
func (s *SQLiteStore) DeleteByName(ctx context.Context, sess Session, category, name string) (bool, error) {
	if _, err := s.categoryType(category); err != nil {
		return false, err
	}

	var id int64
	err := s.withTx(ctx, sess, "delete from "+category, func(tx *sql.Tx) error {
		var err error
		id, err = findIDByName(ctx, tx, category, name)
		if err != nil {
			return storageErr("look up entry", err)
		}
		if id == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+schema.Quote(category)+` WHERE id = ?`, id); err != nil {
			return storageErr("delete entry", err)
		}
		if s.cascade {
			loc := schema.Location{Category: category, ID: id}.String()
			if _, err := tx.ExecContext(ctx, `DELETE FROM tags WHERE entry_location = ?`, loc); err != nil {
				return storageErr("delete tags", err)
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	if id == 0 {
		s.logger.Info("entry not found", zap.String("category", category), zap.String("name", name))
		return false, nil
	}
	s.logger.Info("entry removed",
		zap.String("category", category), zap.String("name", name), zap.Int64("id", id))
	s.notify(ctx, Change{Kind: ChangeDeleted, Category: category, Name: name, ID: id})
	return true, nil
}

// ListNames returns the names of every record in category in insertion
// order.
func (s *SQLiteStore) ListNames(ctx context.Context, sess Session, category string) ([]string, error) {
	if _, err := s.categoryType(category); err != nil {
		return nil, err
	}

	rows, err := sess.QueryContext(ctx, `SELECT name FROM `+schema.Quote(category)+` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", category, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// ListCategories returns the category tables present in the session's
// database, sorted by name. The world and tags tables are excluded, so a
// database with extra tables shows them without code changes here.
func (s *SQLiteStore) ListCategories(ctx context.Context, sess Session) ([]string, error) {
	rows, err := sess.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		if schema.IsStructural(name) {
			continue
		}
		categories = append(categories, name)
	}
	return categories, rows.Err()
}

// ColumnsOf returns the editable columns of category; see
// schema.Registry.ColumnsOf.
func (s *SQLiteStore) ColumnsOf(category string) []string {
	return s.registry.ColumnsOf(category)
}

// =============================================================================
// Row scanning
// =============================================================================

func selectColumns(rt *schema.RecordType) string {
	cols := make([]string, 0, len(rt.Columns)+1)
	cols = append(cols, schema.ColID)
	for _, c := range rt.Columns {
		cols = append(cols, schema.Quote(c.Name))
	}
	return strings.Join(cols, ", ")
}

// scanRecord scans a row selected with selectColumns(rt).
func scanRecord(scanner interface{ Scan(...any) error }, rt *schema.RecordType) (*Record, error) {
	rec := &Record{Category: rt.Category, Fields: make(Fields, len(rt.Columns))}

	texts := make([]sql.NullString, len(rt.Columns))
	blobs := make([][]byte, len(rt.Columns))
	dest := make([]any, 0, len(rt.Columns)+1)
	dest = append(dest, &rec.ID)
	for i, c := range rt.Columns {
		if c.Kind == schema.KindBlob {
			dest = append(dest, &blobs[i])
		} else {
			dest = append(dest, &texts[i])
		}
	}
	if err := scanner.Scan(dest...); err != nil {
		return nil, err
	}

	for i, c := range rt.Columns {
		if c.Kind == schema.KindBlob {
			if blobs[i] != nil {
				rec.Fields[c.Name] = blobs[i]
			}
			continue
		}
		if texts[i].Valid {
			rec.Fields[c.Name] = texts[i].String
		}
	}
	return rec, nil
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
