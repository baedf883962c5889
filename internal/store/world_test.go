package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kittclouds/worldbuilder/internal/schema"
)

func TestWorldMap_Aldara(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.CreateWorld(ctx, db, "Aldara"))

	w, err := s.GetWorld(ctx, db)
	require.NoError(t, err)
	require.Equal(t, "Aldara", w.Name)
	require.Nil(t, w.WorldMap)

	data, err := s.GetWorldMap(ctx, db)
	require.NoError(t, err)
	require.Nil(t, data)

	png := []byte("\x89PNG\r\n\x1a\n\x00\x00")
	require.NoError(t, s.SetWorldMap(ctx, db, png))

	data, err = s.GetWorldMap(ctx, db)
	require.NoError(t, err)
	require.Equal(t, png, data)

	require.NoError(t, s.SetWorldMap(ctx, db, nil))
	data, err = s.GetWorldMap(ctx, db)
	require.NoError(t, err)
	require.Nil(t, data)
}

func TestWorldMap_Missing(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	_, err := s.GetWorld(ctx, db)
	require.ErrorIs(t, err, ErrWorldMissing)
	_, err = s.GetWorldMap(ctx, db)
	require.ErrorIs(t, err, ErrWorldMissing)
	require.ErrorIs(t, s.SetWorldMap(ctx, db, []byte{1}), ErrWorldMissing)
}

func TestCreateWorld_Validation(t *testing.T) {
	s, db := setupTestStore(t)

	var ve *ValidationError
	require.ErrorAs(t, s.CreateWorld(context.Background(), db, " "), &ve)
}

func TestExportImport(t *testing.T) {
	src, srcDB := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, src.CreateWorld(ctx, srcDB, "Aldara"))
	require.NoError(t, src.SetWorldMap(ctx, srcDB, []byte{0x89, 'P', 'N', 'G'}))
	_, err := src.UpsertByName(ctx, srcDB, schema.Characters, Fields{
		"name": "Mira", "stats": "STR 10", "tags": "a,b", "image_data": []byte{1, 2, 3},
	}, UpsertOptions{})
	require.NoError(t, err)
	_, err = src.UpsertByName(ctx, srcDB, schema.Quests, Fields{"name": "Fetch", "tags": "c"}, UpsertOptions{})
	require.NoError(t, err)
	_, err = src.DeleteByName(ctx, srcDB, schema.Quests, "Fetch")
	require.NoError(t, err)

	snap, err := src.Export(ctx, srcDB)
	require.NoError(t, err)
	require.Equal(t, "Aldara", snap.World.Name)
	require.Len(t, snap.Records[schema.Characters], 1)
	require.Empty(t, snap.Records[schema.Quests])
	require.Len(t, snap.Tags, 3)

	// go through JSON as the CLI does
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var decoded Snapshot
	require.NoError(t, json.Unmarshal(raw, &decoded))

	dst, dstDB := setupTestStore(t)
	require.NoError(t, dst.CreateWorld(ctx, dstDB, "Scratch"))
	_, err = dst.UpsertByName(ctx, dstDB, schema.Items, Fields{"name": "Junk", "tags": "z"}, UpsertOptions{})
	require.NoError(t, err)

	require.NoError(t, dst.Import(ctx, dstDB, &decoded))

	w, err := dst.GetWorld(ctx, dstDB)
	require.NoError(t, err)
	require.Equal(t, "Aldara", w.Name)
	require.Equal(t, []byte{0x89, 'P', 'N', 'G'}, w.WorldMap)

	items, err := dst.ListNames(ctx, dstDB, schema.Items)
	require.NoError(t, err)
	require.Empty(t, items)

	rec, err := dst.GetRecord(ctx, dstDB, "Mira")
	require.NoError(t, err)
	require.Equal(t, snap.Records[schema.Characters][0].ID, rec.ID)
	require.Equal(t, []byte{1, 2, 3}, rec.Fields["image_data"])
	require.Equal(t, "STR 10", rec.Fields["stats"])

	// the dangling tag survives the round trip and still resolves to nothing
	rec, err = dst.GetRecord(ctx, dstDB, "Fetch")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestImport_InvalidSnapshotLeavesWorldAlone(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertByName(ctx, db, schema.Items, Fields{"name": "Keep", "tags": "k"}, UpsertOptions{})
	require.NoError(t, err)

	err = s.Import(ctx, db, &Snapshot{Records: map[string][]*Record{
		"spaceships": {{ID: 1, Fields: Fields{"name": "Ship"}}},
	}})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)

	names, err := s.ListNames(ctx, db, schema.Items)
	require.NoError(t, err)
	require.Equal(t, []string{"Keep"}, names)
}

func TestImport_NullRecordRejected(t *testing.T) {
	s, db := setupTestStore(t)
	ctx := context.Background()

	_, err := s.UpsertByName(ctx, db, schema.Items, Fields{"name": "Keep", "tags": "k"}, UpsertOptions{})
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal([]byte(`{"records":{"items":[null]}}`), &snap))

	var ve *ValidationError
	require.ErrorAs(t, s.Import(ctx, db, &snap), &ve)
	require.Equal(t, schema.Items, ve.Category)

	names, err := s.ListNames(ctx, db, schema.Items)
	require.NoError(t, err)
	require.Equal(t, []string{"Keep"}, names)
}
