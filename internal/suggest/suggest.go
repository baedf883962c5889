// Package suggest proposes tags for an entry by finding the names of other
// entries in its text. The compiled name dictionary of each world is cached
// until a write to that world invalidates it.
package suggest

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/store"
	"github.com/kittclouds/worldbuilder/pkg/mentions"
)

const (
	DefaultExpiration      = 10 * time.Minute
	DefaultCleanupInterval = 30 * time.Minute
)

// Options configures a Service.
type Options struct {
	// CacheTTL is how long a compiled dictionary is kept. Zero means
	// DefaultExpiration.
	CacheTTL time.Duration
	// MinNameLength is passed to mentions.WithMinLength. Zero keeps the
	// mentions default.
	MinNameLength int
}

// Request asks for tag suggestions.
type Request struct {
	// World keys the dictionary cache; usually the world file path.
	World string
	// Self is the name of the entry being edited. It is never suggested.
	Self string
	// Text is scanned for mentions, typically the description.
	Text string
	// Existing is the entry's current serialized tag list. Labels already
	// present are not suggested again.
	Existing string
}

// Service builds and caches mention dictionaries.
type Service struct {
	store  store.Storer
	cache  *gocache.Cache
	opts   Options
	logger *zap.Logger
}

// New creates a suggestion service over st.
func New(st store.Storer, opts Options, logger *zap.Logger) *Service {
	if opts.CacheTTL == 0 {
		opts.CacheTTL = DefaultExpiration
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  st,
		cache:  gocache.New(opts.CacheTTL, DefaultCleanupInterval),
		opts:   opts,
		logger: logger,
	}
}

// Dictionary returns the compiled dictionary for world, building it from
// sess on a cache miss.
func (s *Service) Dictionary(ctx context.Context, sess store.Session, world string) (*mentions.Dictionary, error) {
	if v, found := s.cache.Get(world); found {
		if dict, ok := v.(*mentions.Dictionary); ok {
			s.logger.Debug("dictionary cache hit", zap.String("world", world))
			return dict, nil
		}
		s.logger.Error("wrong type in dictionary cache", zap.String("world", world))
	}

	entries, err := s.collect(ctx, sess)
	if err != nil {
		return nil, err
	}

	var opts []mentions.Option
	if s.opts.MinNameLength > 0 {
		opts = append(opts, mentions.WithMinLength(s.opts.MinNameLength))
	}
	dict, err := mentions.Compile(entries, opts...)
	if err != nil {
		return nil, fmt.Errorf("compile dictionary: %w", err)
	}

	s.cache.Set(world, dict, gocache.DefaultExpiration)
	s.logger.Debug("dictionary compiled",
		zap.String("world", world), zap.Int("entries", len(entries)), zap.Int("patterns", dict.Len()))
	return dict, nil
}

func (s *Service) collect(ctx context.Context, sess store.Session) ([]mentions.Entry, error) {
	categories, err := s.store.ListCategories(ctx, sess)
	if err != nil {
		return nil, err
	}

	var entries []mentions.Entry
	for _, category := range categories {
		names, err := s.store.ListNames(ctx, sess, category)
		var ve *store.ValidationError
		if errors.As(err, &ve) {
			// a table the registry does not know
			continue
		}
		if err != nil {
			return nil, err
		}
		for _, name := range names {
			entries = append(entries, mentions.Entry{Name: name, Category: category})
		}
	}
	return entries, nil
}

// Suggest returns the entries mentioned in req.Text, minus the entry itself
// and the labels it is already tagged with.
func (s *Service) Suggest(ctx context.Context, sess store.Session, req Request) ([]mentions.Entry, error) {
	dict, err := s.Dictionary(ctx, sess, req.World)
	if err != nil {
		return nil, err
	}

	skip := map[string]bool{mentions.Canonicalize(req.Self): true}
	for _, label := range store.SplitTags(req.Existing) {
		skip[mentions.Canonicalize(label)] = true
	}

	out := []mentions.Entry{}
	for _, e := range dict.Mentioned(req.Text) {
		if skip[mentions.Canonicalize(e.Name)] {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Invalidate drops the cached dictionary of world.
func (s *Service) Invalidate(world string) {
	s.cache.Delete(world)
}

type worldKey struct{}

// WithWorld tags ctx with the world a store call runs against, so OnChange
// can invalidate just that world.
func WithWorld(ctx context.Context, world string) context.Context {
	return context.WithValue(ctx, worldKey{}, world)
}

// OnChange is a store change hook: it drops the dictionary of the world
// named in ctx, or every dictionary when ctx names none.
func (s *Service) OnChange(ctx context.Context, c store.Change) {
	if world, ok := ctx.Value(worldKey{}).(string); ok {
		s.Invalidate(world)
		s.logger.Debug("dictionary invalidated", zap.String("world", world), zap.String("change", string(c.Kind)))
		return
	}
	s.cache.Flush()
}
