package internal

type Medium string

const (
	MediumAnime Medium = "anime"
	MediumManga Medium = "manga"
)

// Category partitions lookup values into independent namespaces. Names double
// as table names in the file-sink output.
type Category string

const (
	CatGenre         Category = "Genre"
	CatTheme         Category = "Theme"
	CatDemographic   Category = "Demographic"
	CatProducer      Category = "Producer"
	CatStudio        Category = "Studio"
	CatLicensor      Category = "Licensor"
	CatSource        Category = "Source"
	CatAgeRating     Category = "AgeRating"
	CatAuthor        Category = "Author"
	CatSerialization Category = "Serialization"
	CatSynonym       Category = "Synonym"
	CatLanguage      Category = "Language"
	CatStatus        Category = "StatusType"
	CatItemType      Category = "ItemType"
)

// LookupKey is the normalized natural key of a lookup value. Scope holds the
// medium for medium-partitioned categories (item types, statuses), Secondary
// the given-name part for person values. All parts are whitespace-trimmed.
type LookupKey struct {
	Scope     string
	Value     string
	Secondary string
}

type Junction string

const (
	JunctionGenre         Junction = "EntryGenre"
	JunctionTheme         Junction = "EntryTheme"
	JunctionDemographic   Junction = "EntryDemographic"
	JunctionProducer      Junction = "EntryProducer"
	JunctionStudio        Junction = "EntryStudio"
	JunctionLicensor      Junction = "EntryLicensor"
	JunctionAuthor        Junction = "EntryAuthor"
	JunctionSerialization Junction = "EntrySerialization"
	JunctionSynonym       Junction = "EntrySynonym"
)

// Link is one entity-to-lookup association. Junction sets collapse duplicates.
type Link struct {
	EntryID  int64
	LookupID int64
}

// TitleRow is a localized title. At most one text per (entry, language); later
// writes replace earlier ones.
type TitleRow struct {
	EntryID    int64
	LanguageID int64
	Text       string
}

// DateRange holds ISO dates ("2006-01-02"); nil means the side was absent or
// unparseable.
type DateRange struct {
	From *string
	To   *string
}

type Premiere struct {
	Season *string
	Year   *int
}

type Broadcast struct {
	Day  *string
	Time *string
	Zone *string
}

// PersonName is the composite identity of a contributing person. Given is nil
// when the raw value had no comma separator.
type PersonName struct {
	Family string
	Given  *string
}

type LocalTitle struct {
	Language string
	Text     string
}

// CatalogRecord is one input row decoded into typed fields at the input
// boundary. Exactly one of Anime/Manga is set, matching Medium.
type CatalogRecord struct {
	Medium      Medium
	Row         int
	NaturalID   int64
	Link        string
	Title       string
	Score       *float64
	ScoredBy    *int64
	Ranked      *int64
	Popularity  *int64
	Members     *int64
	Favorited   *int64
	Description string
	Background  string
	ItemType    string
	Status      string

	Genres       []string
	Themes       []string
	Demographics []string
	Synonyms     []string
	LocalTitles  []LocalTitle

	Anime *AnimeFields
	Manga *MangaFields
}

type AnimeFields struct {
	Episodes    *int64
	DurationRaw string
	DurationMin *int
	Airing      DateRange
	Premiere    Premiere
	Broadcast   Broadcast
	Source      string
	AgeRating   string
	Producers   []string
	Studios     []string
	Licensors   []string
}

type MangaFields struct {
	Volumes        *int64
	Chapters       *int64
	Publishing     DateRange
	Authors        []string
	Serializations []string
}

// EntryRow is the central entity row as persisted by a sink. ID is assigned by
// the sink: read-back in the live store, counter in the file batch.
type EntryRow struct {
	ID          int64
	MalID       int64
	Medium      Medium
	Link        string
	Title       string
	Score       *float64
	Description string
	Background  string
	ItemTypeID  int64
	ScoredBy    *int64
	Ranked      *int64
	Popularity  *int64
	Members     *int64
	Favorited   *int64
}

type AnimeDetailRow struct {
	EntryID        int64
	DurationRaw    string
	DurationMin    *int
	FromAiring     *string
	ToAiring       *string
	Episodes       *int64
	StatusID       *int64
	SourceID       *int64
	AgeRatingID    *int64
	PremiereSeason *string
	PremiereYear   *int
	BroadcastDay   *string
	BroadcastTime  *string
	BroadcastZone  *string
}

type MangaDetailRow struct {
	EntryID        int64
	FromPublishing *string
	ToPublishing   *string
	Volumes        *int64
	Chapters       *int64
	StatusID       *int64
}

// SeedLanguages are registered before traversal; the localized-title input
// columns map onto these names.
var SeedLanguages = []string{"Japanese", "English", "German", "French", "Spanish"}
