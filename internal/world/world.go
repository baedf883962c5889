// Package world opens, creates and discovers world database files. Each
// world is one SQLite file in the data directory; a Session is the open
// handle the entry store runs against.
package world

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
)

// FileSuffix ends the file name of every world database.
const FileSuffix = "_database.db"

// ErrExists is returned by Create when the world file is already there.
var ErrExists = errors.New("world already exists")

// Session is an open world database. It embeds *sql.DB and so satisfies
// store.Session.
type Session struct {
	*sql.DB

	// Name is the world name from the world row, "" if the row is missing.
	Name string
	// Path is the database file, or ":memory:".
	Path string
}

// Locator turns a world name into its database file name:
// "Ember Isles" becomes "ember_isles_database.db".
func Locator(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_") + FileSuffix
}

// Resolve maps a world identifier to a file path. An identifier that already
// names a database file is used as-is; anything else is a world name looked
// up in dir.
func Resolve(dir, identifier string) string {
	if strings.HasSuffix(identifier, ".db") {
		return identifier
	}
	return filepath.Join(dir, Locator(identifier))
}

// Open opens the world file at path and creates any missing table. The pool
// is pinned to one connection: a world has a single writer.
func Open(ctx context.Context, path string, registry *schema.Registry) (*Session, error) {
	if registry == nil {
		registry = schema.Default()
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, registry.SchemaSQL()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema in %s: %w", path, err)
	}

	sess := &Session{DB: db, Path: path}
	name, err := readName(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	sess.Name = name
	return sess, nil
}

// OpenMemory opens a private in-memory world.
func OpenMemory(ctx context.Context, registry *schema.Registry) (*Session, error) {
	return Open(ctx, ":memory:", registry)
}

func readName(ctx context.Context, db *sql.DB) (string, error) {
	var name string
	err := db.QueryRowContext(ctx, `SELECT name FROM world LIMIT 1`).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read world name: %w", err)
	}
	return name, nil
}

// Provider creates and opens worlds under one data directory.
type Provider struct {
	dir    string
	store  *store.SQLiteStore
	logger *zap.Logger
}

// NewProvider returns a provider rooted at dir. The directory is created on
// first use.
func NewProvider(dir string, st *store.SQLiteStore, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{dir: dir, store: st, logger: logger}
}

// Dir returns the data directory.
func (p *Provider) Dir() string { return p.dir }

// Open opens an existing world by name or path.
func (p *Provider) Open(ctx context.Context, identifier string) (*Session, error) {
	path := Resolve(p.dir, identifier)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("world %q: %w", identifier, err)
	}
	sess, err := Open(ctx, path, p.store.Registry())
	if err != nil {
		return nil, err
	}
	p.logger.Debug("world opened", zap.String("world", sess.Name), zap.String("path", path))
	return sess, nil
}

// Create makes a new world file with its schema and world row. A file that
// fails half-way is removed again so a retry starts clean.
func (p *Provider) Create(ctx context.Context, name string) (sess *Session, err error) {
	if strings.TrimSpace(name) == "" {
		return nil, &store.ValidationError{Category: schema.WorldTable, Field: schema.ColName, Reason: "required"}
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	path := filepath.Join(p.dir, Locator(name))
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("%w: %s", ErrExists, path)
	}

	defer func() {
		if err == nil {
			return
		}
		if sess != nil {
			_ = sess.Close()
			sess = nil
		}
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			p.logger.Error("remove half-created world", zap.String("path", path), zap.Error(rmErr))
		}
	}()

	sess, err = Open(ctx, path, p.store.Registry())
	if err != nil {
		return nil, err
	}
	if err = p.store.CreateWorld(ctx, sess, name); err != nil {
		return nil, err
	}
	sess.Name = name

	p.logger.Info("world database created", zap.String("world", name), zap.String("path", path))
	return sess, nil
}

// Info describes one world file found on disk.
type Info struct {
	Name string
	Path string
}

// Discover lists the world files in the data directory, sorted by file
// name. Files whose world row cannot be read are listed with an empty name.
func (p *Provider) Discover(ctx context.Context) ([]Info, error) {
	entries, err := os.ReadDir(p.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	infos := []Info{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		info := Info{Path: path}

		db, err := sql.Open("sqlite3", readOnlyURI(path))
		if err == nil {
			info.Name, err = readName(ctx, db)
			_ = db.Close()
		}
		if err != nil {
			p.logger.Warn("unreadable world file", zap.String("path", path), zap.Error(err))
		}
		infos = append(infos, info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// readOnlyURI builds a read-only SQLite URI for path, escaping characters
// such as '?' and '#' that would otherwise end the file name.
func readOnlyURI(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	path = filepath.ToSlash(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	u := url.URL{Scheme: "file", Path: path, RawQuery: "mode=ro"}
	return u.String()
}
