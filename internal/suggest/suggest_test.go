package suggest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
	"github.com/kittclouds/worldbuilder/internal/world"
	"github.com/kittclouds/worldbuilder/pkg/mentions"
)

func setupService(t *testing.T) (*Service, *store.SQLiteStore, *world.Session) {
	t.Helper()
	ctx := context.Background()

	sess, err := world.OpenMemory(ctx, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sess.Close() })

	var svc *Service
	st := store.New(nil, store.WithChangeHook(func(ctx context.Context, c store.Change) {
		svc.OnChange(ctx, c)
	}))
	svc = New(st, Options{}, zap.NewNop())

	for _, e := range []struct{ category, name string }{
		{schema.Characters, "Mira Voss"},
		{schema.Cities, "Port Sable"},
		{schema.Items, "Black Fleet"},
	} {
		_, err := st.UpsertByName(ctx, sess, e.category, store.Fields{"name": e.name, "tags": "seed"}, store.UpsertOptions{})
		require.NoError(t, err)
	}
	return svc, st, sess
}

func names(entries []mentions.Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestSuggest(t *testing.T) {
	svc, _, sess := setupService(t)
	ctx := context.Background()

	got, err := svc.Suggest(ctx, sess, Request{
		World: "mem",
		Self:  "Mira Voss",
		Text:  "Mira Voss commands the Black Fleet out of Port Sable.",
	})
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"Black Fleet", "Port Sable"}, names(got))

	got, err = svc.Suggest(ctx, sess, Request{
		World:    "mem",
		Text:     "Port Sable fell to the black fleet.",
		Existing: "port sable, Somewhere",
	})
	require.NoError(t, err)
	require.Equal(t, []string{"Black Fleet"}, names(got))

	got, err = svc.Suggest(ctx, sess, Request{World: "mem", Text: "Nothing known here."})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDictionaryCachedUntilWrite(t *testing.T) {
	svc, st, sess := setupService(t)
	ctx := WithWorld(context.Background(), "mem")

	first, err := svc.Dictionary(ctx, sess, "mem")
	require.NoError(t, err)
	second, err := svc.Dictionary(ctx, sess, "mem")
	require.NoError(t, err)
	require.Same(t, first, second)

	_, err = st.UpsertByName(ctx, sess, schema.Deities, store.Fields{"name": "Oru", "tags": "sea"}, store.UpsertOptions{})
	require.NoError(t, err)

	third, err := svc.Dictionary(ctx, sess, "mem")
	require.NoError(t, err)
	require.NotSame(t, first, third)
	require.NotEmpty(t, third.Lookup("Oru"))
}

func TestOnChangeWithoutWorldFlushesAll(t *testing.T) {
	svc, _, sess := setupService(t)
	ctx := context.Background()

	a, err := svc.Dictionary(ctx, sess, "a")
	require.NoError(t, err)
	_, err = svc.Dictionary(ctx, sess, "b")
	require.NoError(t, err)

	svc.OnChange(ctx, store.Change{Kind: store.ChangeImported})

	again, err := svc.Dictionary(ctx, sess, "a")
	require.NoError(t, err)
	require.NotSame(t, a, again)
}

func TestSuggest_SkipsUnknownTables(t *testing.T) {
	svc, _, sess := setupService(t)
	ctx := context.Background()

	_, err := sess.ExecContext(ctx, `CREATE TABLE vehicles (id INTEGER PRIMARY KEY, name TEXT)`)
	require.NoError(t, err)
	_, err = sess.ExecContext(ctx, `INSERT INTO vehicles (name) VALUES ('Skiff')`)
	require.NoError(t, err)

	got, err := svc.Suggest(ctx, sess, Request{World: "x", Text: "The Skiff left Port Sable."})
	require.NoError(t, err)
	require.Equal(t, []string{"Port Sable"}, names(got))
}
