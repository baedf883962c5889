package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kittclouds/worldbuilder/internal/schema"
	"github.com/kittclouds/worldbuilder/internal/store"
)

func TestWriteXLSX(t *testing.T) {
	snap := &store.Snapshot{
		World: &store.World{Name: "Aldara", WorldMap: []byte{1, 2, 3, 4}},
		Records: map[string][]*store.Record{
			schema.Characters: {
				{Category: schema.Characters, ID: 1, Fields: store.Fields{
					"name": "Mira", "stats": "STR 10", "tags": "a,b", "image_data": []byte{9, 9},
				}},
			},
			schema.HistoricalEvents: {
				{Category: schema.HistoricalEvents, ID: 4, Fields: store.Fields{"name": "The Sundering"}},
			},
		},
		Tags: []store.TagEntry{
			{ID: 1, EntryName: "Mira", EntryLocation: "characters/1"},
			{ID: 2, EntryName: "Mira", EntryLocation: "characters/1"},
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteXLSX(&buf, snap, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Equal(t, WorldSheet, sheets[0])
	require.Equal(t, TagsSheet, sheets[len(sheets)-1])
	require.Len(t, sheets, 14)
	require.NotContains(t, sheets, "Sheet1")

	rows, err := f.GetRows(WorldSheet)
	require.NoError(t, err)
	require.Equal(t, [][]string{{"Name", "World Map"}, {"Aldara", "<4 bytes>"}}, rows)

	rows, err = f.GetRows("Characters")
	require.NoError(t, err)
	require.Equal(t, []string{"ID", "Name", "Description", "Stats", "Tags", "Image Data"}, rows[0])
	require.Equal(t, []string{"1", "Mira", "", "STR 10", "a,b", "<2 bytes>"}, rows[1])

	rows, err = f.GetRows("Historical Events")
	require.NoError(t, err)
	require.Equal(t, []string{"4", "The Sundering"}, rows[1])

	rows, err = f.GetRows("Quests")
	require.NoError(t, err)
	require.Len(t, rows, 1, "header only")

	rows, err = f.GetRows(TagsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"2", "Mira", "characters/1"}, rows[2])
}
