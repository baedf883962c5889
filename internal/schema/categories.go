package schema

// Category names of a world database.
const (
	Planes           = "planes"
	Continents       = "continents"
	Regions          = "regions"
	Countries        = "countries"
	Cities           = "cities"
	HistoricalEvents = "historical_events"
	Religions        = "religions"
	Characters       = "characters"
	Deities          = "deities"
	Enemies          = "enemies"
	Items            = "items"
	Quests           = "quests"
)

var (
	nameCol        = Column{Name: ColName, Kind: KindText, Required: true}
	descriptionCol = Column{Name: ColDescription, Kind: KindText}
	statsCol       = Column{Name: ColStats, Kind: KindText}
	tagsCol        = Column{Name: ColTags, Kind: KindText}
	imageCol       = Column{Name: ColImageData, Kind: KindBlob}
)

// lore is the plain entry shape: name, description, tags, image.
func lore(category string) *RecordType {
	return &RecordType{
		Category: category,
		Columns:  []Column{nameCol, descriptionCol, tagsCol, imageCol},
	}
}

// creature adds a free-text stats block after the description.
func creature(category string) *RecordType {
	return &RecordType{
		Category: category,
		Columns:  []Column{nameCol, descriptionCol, statsCol, tagsCol, imageCol},
	}
}

// TagType is the shape of the cross-category tag index.
var TagType = &RecordType{
	Category:   TagsTable,
	Structural: true,
	Columns: []Column{
		{Name: "entry_name", Kind: KindText, Required: true},
		{Name: "entry_location", Kind: KindText, Required: true},
	},
}

// WorldType is the shape of the one-row world table. Its name column is the
// primary key, so it has no surrogate id.
var WorldType = &RecordType{
	Category:   WorldTable,
	Structural: true,
	Columns: []Column{
		{Name: ColName, Kind: KindText, Required: true},
		{Name: "world_map", Kind: KindBlob},
	},
}

// Default returns the registry of every table a world database holds.
func Default() *Registry {
	r, err := NewRegistry(
		TagType,
		WorldType,
		lore(Planes),
		lore(Continents),
		lore(Regions),
		lore(Countries),
		lore(Cities),
		lore(HistoricalEvents),
		lore(Religions),
		creature(Characters),
		creature(Deities),
		creature(Enemies),
		lore(Items),
		&RecordType{
			Category: Quests,
			Columns:  []Column{nameCol, descriptionCol, tagsCol},
		},
	)
	if err != nil {
		// static table set, cannot collide
		panic(err)
	}
	return r
}
