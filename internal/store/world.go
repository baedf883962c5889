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

// =============================================================================
// World row
// =============================================================================

// CreateWorld writes the world row. It is called once, right after the
// world database is created.
func (s *SQLiteStore) CreateWorld(ctx context.Context, sess Session, name string) error {
	if strings.TrimSpace(name) == "" {
		return &ValidationError{Category: schema.WorldTable, Field: schema.ColName, Reason: "required"}
	}
	err := s.withTx(ctx, sess, "create world", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO world (name) VALUES (?)`, name); err != nil {
			return storageErr("insert world", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("world created", zap.String("world", name))
	return nil
}

// GetWorld returns the world row, or ErrWorldMissing.
func (s *SQLiteStore) GetWorld(ctx context.Context, sess Session) (*World, error) {
	return getWorld(ctx, sess)
}

func getWorld(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}) (*World, error) {
	var w World
	err := q.QueryRowContext(ctx, `SELECT name, world_map FROM world LIMIT 1`).Scan(&w.Name, &w.WorldMap)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorldMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read world: %w", err)
	}
	return &w, nil
}

// SetWorldMap overwrites the world map image. A nil slice clears it.
func (s *SQLiteStore) SetWorldMap(ctx context.Context, sess Session, data []byte) error {
	var value any = data
	if data == nil {
		value = nil
	}
	err := s.withTx(ctx, sess, "set world map", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE world SET world_map = ? WHERE rowid = (SELECT rowid FROM world LIMIT 1)`, value)
		if err != nil {
			return storageErr("update world map", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storageErr("update world map", err)
		}
		if n == 0 {
			return ErrWorldMissing
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("world map saved", zap.Int("bytes", len(data)))
	return nil
}

// GetWorldMap returns the world map image, nil if none was saved yet.
func (s *SQLiteStore) GetWorldMap(ctx context.Context, sess Session) ([]byte, error) {
	var data []byte
	err := sess.QueryRowContext(ctx, `SELECT world_map FROM world LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWorldMissing
	}
	if err != nil {
		return nil, fmt.Errorf("read world map: %w", err)
	}
	return data, nil
}
