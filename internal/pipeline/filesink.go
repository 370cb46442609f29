package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"mediadex/internal"
	"mediadex/internal/registry"
)

// FileSink buffers the whole normalized model in memory and writes one CSV
// stream per table at Finish. Entity ids come from a monotonic counter: every
// input record produces a fresh entity, the output is meant to be loaded
// fresh, not merged.
type FileSink struct {
	dir string
	reg *registry.Memory

	nextEntryID int64
	entries     [][]string
	animeRows   [][]string
	mangaRows   [][]string

	links  map[internal.Junction]*linkBuffer
	titles map[internal.Link]string
	order  []internal.Link
}

type linkBuffer struct {
	seen map[internal.Link]struct{}
	rows []internal.Link
}

func NewFileSink(dir string) *FileSink {
	return &FileSink{
		dir:    dir,
		reg:    registry.NewMemory(),
		links:  map[internal.Junction]*linkBuffer{},
		titles: map[internal.Link]string{},
	}
}

func (s *FileSink) Registry() registry.Registry {
	return s.reg
}

func (s *FileSink) UpsertEntry(_ context.Context, row internal.EntryRow) (int64, error) {
	s.nextEntryID++
	id := s.nextEntryID
	s.entries = append(s.entries, []string{
		formatInt(id),
		formatInt(row.MalID),
		string(row.Medium),
		row.Link,
		row.Title,
		formatFloatPtr(row.Score),
		row.Description,
		row.Background,
		formatInt(row.ItemTypeID),
		formatIntPtr(row.ScoredBy),
		formatIntPtr(row.Ranked),
		formatIntPtr(row.Popularity),
		formatIntPtr(row.Members),
		formatIntPtr(row.Favorited),
	})
	return id, nil
}

func (s *FileSink) UpsertAnimeDetails(_ context.Context, row internal.AnimeDetailRow) error {
	s.animeRows = append(s.animeRows, []string{
		formatInt(row.EntryID),
		row.DurationRaw,
		formatIntVal(row.DurationMin),
		deref(row.FromAiring),
		deref(row.ToAiring),
		formatIntPtr(row.Episodes),
		formatIntPtr(row.StatusID),
		formatIntPtr(row.SourceID),
		formatIntPtr(row.AgeRatingID),
		deref(row.PremiereSeason),
		formatIntVal(row.PremiereYear),
		deref(row.BroadcastDay),
		deref(row.BroadcastTime),
		deref(row.BroadcastZone),
	})
	return nil
}

func (s *FileSink) UpsertMangaDetails(_ context.Context, row internal.MangaDetailRow) error {
	s.mangaRows = append(s.mangaRows, []string{
		formatInt(row.EntryID),
		deref(row.FromPublishing),
		deref(row.ToPublishing),
		formatIntPtr(row.Volumes),
		formatIntPtr(row.Chapters),
		formatIntPtr(row.StatusID),
	})
	return nil
}

func (s *FileSink) FlushLinks(_ context.Context, junction internal.Junction, links []internal.Link) error {
	buf := s.links[junction]
	if buf == nil {
		buf = &linkBuffer{seen: map[internal.Link]struct{}{}}
		s.links[junction] = buf
	}
	for _, link := range links {
		if _, ok := buf.seen[link]; ok {
			continue
		}
		buf.seen[link] = struct{}{}
		buf.rows = append(buf.rows, link)
	}
	return nil
}

func (s *FileSink) FlushTitles(_ context.Context, rows []internal.TitleRow) error {
	for _, row := range rows {
		key := internal.Link{EntryID: row.EntryID, LookupID: row.LanguageID}
		if _, ok := s.titles[key]; !ok {
			s.order = append(s.order, key)
		}
		s.titles[key] = row.Text
	}
	return nil
}

func (s *FileSink) RecordRun(context.Context, MediumReport) error {
	return nil
}

// Finish writes every buffered table: entity and detail streams, one lookup
// stream per category, one junction stream per link table.
func (s *FileSink) Finish(context.Context) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	if err := s.writeCSV("Entry", entryHeader, s.entries); err != nil {
		return err
	}
	if err := s.writeCSV("AnimeDetails", animeHeader, s.animeRows); err != nil {
		return err
	}
	if err := s.writeCSV("MangaDetails", mangaHeader, s.mangaRows); err != nil {
		return err
	}

	titleRows := make([][]string, 0, len(s.order))
	for _, key := range s.order {
		titleRows = append(titleRows, []string{
			formatInt(key.EntryID), formatInt(key.LookupID), s.titles[key],
		})
	}
	if err := s.writeCSV("LanguageEntry", []string{"entry_id", "language_id", "title_text"}, titleRows); err != nil {
		return err
	}

	for _, cat := range lookupOrder {
		rows := make([][]string, 0, len(s.reg.Rows(cat)))
		for _, row := range s.reg.Rows(cat) {
			rows = append(rows, lookupRow(cat, row))
		}
		if err := s.writeCSV(string(cat), lookupHeaders[cat], rows); err != nil {
			return err
		}
	}

	for _, junction := range junctionOrder {
		var rows [][]string
		if buf := s.links[junction]; buf != nil {
			rows = make([][]string, 0, len(buf.rows))
			for _, link := range buf.rows {
				rows = append(rows, []string{formatInt(link.EntryID), formatInt(link.LookupID)})
			}
		}
		if err := s.writeCSV(string(junction), junctionHeaders[junction], rows); err != nil {
			return err
		}
	}

	return nil
}

func (s *FileSink) writeCSV(name string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(s.dir, name+".csv"))
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write %s.csv: %w", name, err)
	}
	return nil
}

var entryHeader = []string{
	"entry_id", "mal_id", "medium_type", "link", "title_name", "score",
	"description", "background", "item_type_id",
	"scored_by", "ranked", "popularity", "members", "favorited",
}

var animeHeader = []string{
	"entry_id", "duration", "duration_minutes", "from_airing_date", "to_airing_date",
	"episodes", "status_id", "source_id", "age_rating_id",
	"premier_date_season", "premier_date_year",
	"broadcast_date_day", "broadcast_date_time", "broadcast_date_timezone",
}

var mangaHeader = []string{
	"entry_id", "from_publishing_date", "to_publishing_date", "volumes", "chapters", "status_id",
}

var lookupOrder = []internal.Category{
	internal.CatGenre, internal.CatTheme, internal.CatDemographic,
	internal.CatProducer, internal.CatStudio, internal.CatLicensor,
	internal.CatSerialization, internal.CatSource, internal.CatAgeRating,
	internal.CatAuthor, internal.CatSynonym, internal.CatLanguage,
	internal.CatStatus, internal.CatItemType,
}

var lookupHeaders = map[internal.Category][]string{
	internal.CatGenre:         {"genre_id", "name"},
	internal.CatTheme:         {"theme_id", "name"},
	internal.CatDemographic:   {"demographic_id", "name"},
	internal.CatProducer:      {"producer_id", "name"},
	internal.CatStudio:        {"studio_id", "name"},
	internal.CatLicensor:      {"licensor_id", "name"},
	internal.CatSerialization: {"serialization_id", "name"},
	internal.CatSource:        {"source_id", "source_name"},
	internal.CatAgeRating:     {"age_rating_id", "code", "description"},
	internal.CatAuthor:        {"author_id", "first_name", "last_name", "display_name"},
	internal.CatSynonym:       {"synonym_id", "synonym_text"},
	internal.CatLanguage:      {"language_id", "language_name"},
	internal.CatStatus:        {"status_id", "medium_type", "status_name"},
	internal.CatItemType:      {"item_type_id", "medium_type", "type_name"},
}

var junctionOrder = []internal.Junction{
	internal.JunctionGenre, internal.JunctionTheme, internal.JunctionDemographic,
	internal.JunctionProducer, internal.JunctionStudio, internal.JunctionLicensor,
	internal.JunctionAuthor, internal.JunctionSerialization, internal.JunctionSynonym,
}

var junctionHeaders = map[internal.Junction][]string{
	internal.JunctionGenre:         {"entry_id", "genre_id"},
	internal.JunctionTheme:         {"entry_id", "theme_id"},
	internal.JunctionDemographic:   {"entry_id", "demographic_id"},
	internal.JunctionProducer:      {"entry_id", "producer_id"},
	internal.JunctionStudio:        {"entry_id", "studio_id"},
	internal.JunctionLicensor:      {"entry_id", "licensor_id"},
	internal.JunctionAuthor:        {"entry_id", "author_id"},
	internal.JunctionSerialization: {"entry_id", "serialization_id"},
	internal.JunctionSynonym:       {"entry_id", "synonym_id"},
}

func lookupRow(cat internal.Category, row registry.Row) []string {
	switch cat {
	case internal.CatAgeRating:
		return []string{formatInt(row.ID), row.Key.Value, row.Display}
	case internal.CatAuthor:
		return []string{formatInt(row.ID), row.Key.Secondary, row.Key.Value, row.Display}
	case internal.CatStatus, internal.CatItemType:
		return []string{formatInt(row.ID), row.Key.Scope, row.Key.Value}
	default:
		return []string{formatInt(row.ID), row.Key.Value}
	}
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func formatIntPtr(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatIntVal(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
