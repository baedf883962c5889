package world

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
)

func setupProvider(t *testing.T) *Provider {
	t.Helper()
	st := store.New(nil, store.WithLogger(zap.NewNop()))
	return NewProvider(filepath.Join(t.TempDir(), "db"), st, zap.NewNop())
}

func TestLocator(t *testing.T) {
	tests := map[string]string{
		"Aldara":        "aldara_database.db",
		"Ember Isles":   "ember_isles_database.db",
		" Lost  Realm ": "lost__realm_database.db",
	}
	for in, want := range tests {
		require.Equal(t, want, Locator(in), in)
	}
}

func TestResolve(t *testing.T) {
	require.Equal(t, filepath.Join("data", "aldara_database.db"), Resolve("data", "Aldara"))
	require.Equal(t, "/tmp/x.db", Resolve("data", "/tmp/x.db"))
}

func TestCreateAndOpen(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	sess, err := p.Create(ctx, "Ember Isles")
	require.NoError(t, err)
	require.Equal(t, "Ember Isles", sess.Name)
	require.FileExists(t, filepath.Join(p.Dir(), "ember_isles_database.db"))

	st := store.New(nil)
	_, err = st.UpsertByName(ctx, sess, schema.Planes, store.Fields{"name": "Ether", "tags": "sky"}, store.UpsertOptions{})
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	reopened, err := p.Open(ctx, "Ember Isles")
	require.NoError(t, err)
	defer reopened.Close()
	require.Equal(t, "Ember Isles", reopened.Name)

	rec, err := st.GetRecord(ctx, reopened, "Ether")
	require.NoError(t, err)
	require.Equal(t, schema.Planes, rec.Category)
}

func TestCreate_RefusesExisting(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	sess, err := p.Create(ctx, "Aldara")
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	_, err = p.Create(ctx, "aldara")
	require.ErrorIs(t, err, ErrExists)
}

func TestCreate_RemovesFileOnFailure(t *testing.T) {
	ctx := context.Background()

	// the world row needs a column CreateWorld never fills, so the insert
	// fails after the file and its schema exist
	strictWorld := &schema.RecordType{
		Category:   schema.WorldTable,
		Structural: true,
		Columns: []schema.Column{
			{Name: schema.ColName, Kind: schema.KindText, Required: true},
			{Name: "founded", Kind: schema.KindText, Required: true},
		},
	}
	reg, err := schema.NewRegistry(schema.TagType, strictWorld)
	require.NoError(t, err)
	p := NewProvider(t.TempDir(), store.New(reg), zap.NewNop())

	_, err = p.Create(ctx, "Broken")
	var se *store.StorageError
	require.ErrorAs(t, err, &se)
	require.Equal(t, "insert world", se.Op)
	require.NoFileExists(t, filepath.Join(p.Dir(), Locator("Broken")))

	var ve *store.ValidationError
	_, err = p.Create(ctx, "  ")
	require.ErrorAs(t, err, &ve)
}

func TestOpen_Missing(t *testing.T) {
	p := setupProvider(t)
	_, err := p.Open(context.Background(), "Nowhere")
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiscover(t *testing.T) {
	p := setupProvider(t)
	ctx := context.Background()

	infos, err := p.Discover(ctx)
	require.NoError(t, err)
	require.Empty(t, infos)

	for _, name := range []string{"Zephyr", "Aldara"} {
		sess, err := p.Create(ctx, name)
		require.NoError(t, err)
		require.NoError(t, sess.Close())
	}
	require.NoError(t, os.WriteFile(filepath.Join(p.Dir(), "notes.txt"), []byte("x"), 0o644))

	infos, err = p.Discover(ctx)
	require.NoError(t, err)
	require.Equal(t, []Info{
		{Name: "Aldara", Path: filepath.Join(p.Dir(), "aldara_database.db")},
		{Name: "Zephyr", Path: filepath.Join(p.Dir(), "zephyr_database.db")},
	}, infos)
}

func TestDiscover_PathNeedsEscaping(t *testing.T) {
	st := store.New(nil, store.WithLogger(zap.NewNop()))
	p := NewProvider(filepath.Join(t.TempDir(), "what?#dir"), st, zap.NewNop())
	ctx := context.Background()

	sess, err := p.Create(ctx, "Aldara")
	require.NoError(t, err)
	require.NoError(t, sess.Close())

	infos, err := p.Discover(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)
	require.Equal(t, "Aldara", infos[0].Name)
}

func TestOpenMemory(t *testing.T) {
	ctx := context.Background()
	sess, err := OpenMemory(ctx, nil)
	require.NoError(t, err)
	defer sess.Close()

	st := store.New(nil)
	require.NoError(t, st.CreateWorld(ctx, sess, "Scratch"))
	w, err := st.GetWorld(ctx, sess)
	require.NoError(t, err)
	require.Equal(t, "Scratch", w.Name)

	cats, err := st.ListCategories(ctx, sess)
	require.NoError(t, err)
	require.Len(t, cats, 12)
}
