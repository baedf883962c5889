package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
)

// =============================================================================
// Tag index
// =============================================================================

// filterChunkSize bounds the bound parameters of one IN list, well under
// SQLite's variable limit.
var filterChunkSize = 500

// firstLocation returns the entry_location of the first tag row for name.
func firstLocation(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, name string) (string, bool, error) {
	var loc string
	err := q.QueryRowContext(ctx,
		`SELECT entry_location FROM tags WHERE entry_name = ? ORDER BY id LIMIT 1`, name,
	).Scan(&loc)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("look up tag %q: %w", name, err)
	}
	return loc, true, nil
}

// ResolveRecord follows the tag index from name to the record it points at.
// Every miss is reported as *NotFoundError: no tag row, a malformed or
// unknown location, or a record that no longer exists.
//
// Only records that own at least one tag row can be reached this way.
func (s *SQLiteStore) ResolveRecord(ctx context.Context, sess Session, name string) (*Record, error) {
	var rec *Record
	err := s.withRead(ctx, sess, func(tx *sql.Tx) error {
		raw, ok, err := firstLocation(ctx, tx, name)
		if err != nil {
			return err
		}
		if !ok {
			return &NotFoundError{Name: name, Step: "tag"}
		}

		loc, err := schema.ParseLocation(raw)
		if err != nil {
			return &NotFoundError{Name: name, Step: "location", Location: raw}
		}
		rt := s.registry.RecordTypeOf(loc.Category)
		if rt == nil || rt.Structural {
			return &NotFoundError{Name: name, Step: "category", Location: raw}
		}

		row := tx.QueryRowContext(ctx,
			`SELECT `+selectColumns(rt)+` FROM `+schema.Quote(rt.Category)+` WHERE id = ?`, loc.ID)
		rec, err = scanRecord(row, rt)
		if errors.Is(err, sql.ErrNoRows) {
			return &NotFoundError{Name: name, Step: "record", Location: raw}
		}
		if err != nil {
			return fmt.Errorf("fetch %s: %w", raw, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetRecord is ResolveRecord with misses reported as absence: it returns
// nil, nil when the name does not resolve, including dangling tags left
// behind by a delete.
func (s *SQLiteStore) GetRecord(ctx context.Context, sess Session, name string) (*Record, error) {
	rec, err := s.ResolveRecord(ctx, sess, name)
	var nf *NotFoundError
	if errors.As(err, &nf) {
		s.logger.Debug("entry data not found", zap.String("name", name), zap.String("step", nf.Step))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// LocationOf returns the category a name's first tag row points into, or ""
// when the name has no tag row.
func (s *SQLiteStore) LocationOf(ctx context.Context, sess Session, name string) (string, error) {
	raw, ok, err := firstLocation(ctx, sess, name)
	if err != nil || !ok {
		return "", err
	}
	return schema.CategoryOf(raw), nil
}

// AllTagLabels returns entry_name of every tag row in row order. Names that
// own several tag rows appear several times.
func (s *SQLiteStore) AllTagLabels(ctx context.Context, sess Session) ([]string, error) {
	rows, err := sess.QueryContext(ctx, `SELECT entry_name FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	labels := []string{}
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}

// TagChoices returns the labels an entry may be tagged with: every tag
// label except the entry's own name.
func (s *SQLiteStore) TagChoices(ctx context.Context, sess Session, self string) ([]string, error) {
	labels, err := s.AllTagLabels(ctx, sess)
	if err != nil {
		return nil, err
	}
	if self == "" {
		return labels, nil
	}
	out := labels[:0]
	for _, l := range labels {
		if l != self {
			out = append(out, l)
		}
	}
	return out, nil
}

// FilterTagsByCategory returns the entry_name of every tag row whose name is
// in labels and whose location lies in category. AllCategories (or the
// older "all_categories") keeps every match.
func (s *SQLiteStore) FilterTagsByCategory(ctx context.Context, sess Session, labels []string, category string) ([]string, error) {
	all := category == AllCategories || category == legacyAllCategories
	if !all && !s.registry.IsCategory(category) {
		return nil, &ValidationError{Category: category, Reason: "unknown category"}
	}
	if len(labels) == 0 {
		return []string{}, nil
	}

	// IN is a set, so duplicate labels only cost placeholders
	seen := make(map[string]bool, len(labels))
	unique := make([]any, 0, len(labels))
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			unique = append(unique, l)
		}
	}

	type hit struct {
		id   int64
		name string
	}
	var hits []hit
	err := s.withRead(ctx, sess, func(tx *sql.Tx) error {
		for start := 0; start < len(unique); start += filterChunkSize {
			chunk := unique[start:min(start+filterChunkSize, len(unique))]
			placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(chunk)), ", ")
			rows, err := tx.QueryContext(ctx,
				`SELECT id, entry_name, entry_location FROM tags WHERE entry_name IN (`+placeholders+`)`,
				chunk...,
			)
			if err != nil {
				return fmt.Errorf("filter tags: %w", err)
			}
			for rows.Next() {
				var h hit
				var loc string
				if err := rows.Scan(&h.id, &h.name, &loc); err != nil {
					rows.Close()
					return fmt.Errorf("scan tag: %w", err)
				}
				if all || schema.CategoryOf(loc) == category {
					hits = append(hits, h)
				}
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return fmt.Errorf("filter tags: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].id < hits[j].id })
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out, nil
}

// ListTags returns every tag row in row order.
func (s *SQLiteStore) ListTags(ctx context.Context, sess Session) ([]TagEntry, error) {
	return listTags(ctx, sess)
}

func listTags(ctx context.Context, q interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}) ([]TagEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, entry_name, entry_location FROM tags ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	tags := []TagEntry{}
	for rows.Next() {
		var t TagEntry
		if err := rows.Scan(&t.ID, &t.EntryName, &t.EntryLocation); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
