package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestDefault_ListCategories(t *testing.T) {
	r := Default()

	cats := r.ListCategories()
	require.Equal(t, []string{
		Planes, Continents, Regions, Countries, Cities, HistoricalEvents,
		Religions, Characters, Deities, Enemies, Items, Quests,
	}, cats)
	require.NotContains(t, cats, TagsTable)
	require.NotContains(t, cats, WorldTable)
}

func TestColumnsOf(t *testing.T) {
	r := Default()

	require.Empty(t, r.ColumnsOf(""), "empty category is a no-op")
	require.Empty(t, r.ColumnsOf("spaceships"))
	require.Equal(t, []string{"name", "description", "stats", "tags", "image_data"}, r.ColumnsOf(Characters))
	require.Equal(t, []string{"name", "description", "tags", "image_data"}, r.ColumnsOf(Items))
	require.Equal(t, []string{"name", "description", "tags"}, r.ColumnsOf(Quests), "quests carry no image")
	require.NotContains(t, r.ColumnsOf(Regions), ColID)
}

func TestRecordTypeOf(t *testing.T) {
	r := Default()

	require.Nil(t, r.RecordTypeOf("nope"))
	require.Nil(t, r.RecordTypeOf(""))

	rt := r.RecordTypeOf(Deities)
	require.NotNil(t, rt)
	_, hasStats := rt.Column(ColStats)
	require.True(t, hasStats)

	tags := r.RecordTypeOf(TagsTable)
	require.NotNil(t, tags)
	require.True(t, tags.Structural)
	require.False(t, r.IsCategory(TagsTable))
	require.True(t, r.IsCategory(Enemies))

	var nilRegistry *Registry
	require.Nil(t, nilRegistry.RecordTypeOf(Items))
}

func TestNewRegistry_RejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(lore("maps"), lore("maps"))
	require.Error(t, err)
}

func TestListCategories_ExcludesStructuralEvenWhenExtended(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		extra := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z]{3,10}`), 0, 6, rapid.ID[string],
		).Draw(t, "extra")

		types := []*RecordType{TagType, WorldType}
		for _, name := range extra {
			if IsStructural(name) {
				continue
			}
			types = append(types, lore(name))
		}
		r, err := NewRegistry(types...)
		require.NoError(t, err)

		for _, c := range r.ListCategories() {
			require.NotEqual(t, TagsTable, c)
			require.NotEqual(t, WorldTable, c)
		}
	})
}

func TestSchemaSQL(t *testing.T) {
	ddl := Default().SchemaSQL()

	require.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "world"`)
	require.Contains(t, ddl, `"name" TEXT PRIMARY KEY`)
	require.Contains(t, ddl, `CREATE TABLE IF NOT EXISTS "tags"`)
	require.Contains(t, ddl, "idx_tags_entry_name")

	quests := ddl[strings.Index(ddl, `CREATE TABLE IF NOT EXISTS "quests"`):]
	quests = quests[:strings.Index(quests, ");")]
	require.NotContains(t, quests, "image_data")
}

func TestLocation(t *testing.T) {
	loc, err := ParseLocation("items/42")
	require.NoError(t, err)
	require.Equal(t, Location{Category: Items, ID: 42}, loc)
	require.Equal(t, "items/42", loc.String())

	for _, bad := range []string{"", "items", "items/", "/4", "items/x"} {
		_, err := ParseLocation(bad)
		require.Error(t, err, bad)
	}

	require.Equal(t, "quests", CategoryOf("quests/7"))
	require.Equal(t, "", CategoryOf("quests"))
}

func TestDisplayName(t *testing.T) {
	require.Equal(t, "Historical Events", DisplayName(HistoricalEvents))
	require.Equal(t, "Items", DisplayName(Items))
	require.Equal(t, HistoricalEvents, CategoryFromDisplay("Historical Events"))
	require.Equal(t, "all_categories", CategoryFromDisplay("All Categories"))
}
