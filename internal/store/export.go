package store

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
)

// Snapshot is the full content of one world database.
type Snapshot struct {
	World      *World               `json:"world,omitempty"`
	Records    map[string][]*Record `json:"records"`
	Tags       []TagEntry           `json:"tags"`
	ExportedAt int64                `json:"exportedAt"`
}

// Export reads the whole world in one snapshot: the world row, every record
// of every registered category and the tag index.
func (s *SQLiteStore) Export(ctx context.Context, sess Session) (*Snapshot, error) {
	snap := &Snapshot{
		Records:    make(map[string][]*Record),
		ExportedAt: time.Now().Unix(),
	}

	err := s.withRead(ctx, sess, func(tx *sql.Tx) error {
		w, err := getWorld(ctx, tx)
		switch {
		case errors.Is(err, ErrWorldMissing):
			// exported as-is; import will not recreate it
		case err != nil:
			return err
		default:
			snap.World = w
		}

		for _, category := range s.registry.ListCategories() {
			rt := s.registry.RecordTypeOf(category)
			recs, err := listRecords(ctx, tx, rt)
			if err != nil {
				return fmt.Errorf("export %s: %w", category, err)
			}
			snap.Records[category] = recs
		}

		snap.Tags, err = listTags(ctx, tx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

func listRecords(ctx context.Context, tx *sql.Tx, rt *schema.RecordType) ([]*Record, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+selectColumns(rt)+` FROM `+schema.Quote(rt.Category)+` ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	recs := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows, rt)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Import replaces the content of the world with snap in one transaction.
// Record ids and tag ids are kept so tag locations stay valid.
func (s *SQLiteStore) Import(ctx context.Context, sess Session, snap *Snapshot) error {
	if snap == nil {
		return nil
	}

	// validate everything before the first delete
	prepared := make(map[string][]*Record, len(snap.Records))
	for category, recs := range snap.Records {
		rt, err := s.categoryType(category)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			if rec == nil {
				return &ValidationError{Category: category, Reason: "null record in snapshot"}
			}
			fields, err := validateFields(rt, decodeBlobs(rt, rec.Fields))
			if err != nil {
				return err
			}
			prepared[category] = append(prepared[category], &Record{Category: category, ID: rec.ID, Fields: fields})
		}
	}

	var total int
	err := s.withTx(ctx, sess, "import", func(tx *sql.Tx) error {
		tables := append([]string{schema.TagsTable}, s.registry.ListCategories()...)
		if snap.World != nil {
			tables = append(tables, schema.WorldTable)
		}
		for _, table := range tables {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+schema.Quote(table)); err != nil {
				return storageErr("clear "+table, err)
			}
		}

		if snap.World != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO world (name, world_map) VALUES (?, ?)`, snap.World.Name, nullBlob(snap.World.WorldMap),
			); err != nil {
				return storageErr("import world", err)
			}
		}

		for category, recs := range prepared {
			rt := s.registry.RecordTypeOf(category)
			for _, rec := range recs {
				if err := insertRecordWithID(ctx, tx, rt, rec); err != nil {
					return storageErr(fmt.Sprintf("import %s %q", category, rec.Fields.Name()), err)
				}
				total++
			}
		}

		for _, t := range snap.Tags {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tags (id, entry_name, entry_location) VALUES (?, ?, ?)`,
				t.ID, t.EntryName, t.EntryLocation,
			); err != nil {
				return storageErr(fmt.Sprintf("import tag %d", t.ID), err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("world imported", zap.Int("records", total), zap.Int("tags", len(snap.Tags)))
	s.notify(ctx, Change{Kind: ChangeImported})
	return nil
}

func insertRecordWithID(ctx context.Context, tx *sql.Tx, rt *schema.RecordType, rec *Record) error {
	if rec.ID == 0 {
		_, err := insertRecord(ctx, tx, rt, rec.Fields)
		return err
	}
	cols := orderedColumns(rt, rec.Fields)
	args := []any{rec.ID}
	quoted := schema.ColID
	placeholders := "?"
	for _, c := range cols {
		quoted += ", " + schema.Quote(c)
		placeholders += ", ?"
		args = append(args, rec.Fields[c])
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO `+schema.Quote(rt.Category)+` (`+quoted+`) VALUES (`+placeholders+`)`, args...)
	return err
}

// decodeBlobs turns base64 strings back into bytes for blob columns. JSON
// encodes []byte as base64, and decoding into Fields yields a string.
func decodeBlobs(rt *schema.RecordType, fields Fields) Fields {
	out := make(Fields, len(fields))
	for k, v := range fields {
		out[k] = v
		col, ok := rt.Column(k)
		if !ok || col.Kind != schema.KindBlob {
			continue
		}
		if s, isString := v.(string); isString {
			if b, err := base64.StdEncoding.DecodeString(s); err == nil {
				out[k] = b
			}
		}
	}
	return out
}

func nullBlob(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
