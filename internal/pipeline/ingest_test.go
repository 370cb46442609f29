package pipeline

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"

	"mediadex/internal"
	"mediadex/internal/logger"
	"mediadex/internal/storage"
)

func animeRecord(row int, malID int64, title string, genres, synonyms []string) internal.CatalogRecord {
	score := 8.1
	episodes := int64(26)
	duration := 24
	return internal.CatalogRecord{
		Medium:    internal.MediumAnime,
		Row:       row,
		NaturalID: malID,
		Title:     title,
		Score:     &score,
		ItemType:  "TV",
		Status:    "Finished Airing",
		Genres:    genres,
		Synonyms:  synonyms,
		LocalTitles: []internal.LocalTitle{
			{Language: "Japanese", Text: title + " JP"},
		},
		Anime: &internal.AnimeFields{
			Episodes:    &episodes,
			DurationRaw: "24 min. per ep.",
			DurationMin: &duration,
			Source:      "Manga",
			AgeRating:   "R - 17+ (violence & profanity)",
			Producers:   []string{"Aniplex"},
			Studios:     []string{"Wit Studio"},
			Licensors:   []string{"Funimation"},
		},
	}
}

func mangaRecord(row int, malID int64, title string, authors []string) internal.CatalogRecord {
	return internal.CatalogRecord{
		Medium:    internal.MediumManga,
		Row:       row,
		NaturalID: malID,
		Title:     title,
		ItemType:  "Manga",
		Status:    "Publishing",
		Genres:    []string{"Adventure"},
		Manga: &internal.MangaFields{
			Authors:        authors,
			Serializations: []string{"Shonen Jump"},
		},
	}
}

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Both sinks run the same records through the same dedup and keying; the
// resulting counts must agree even though absolute ids may differ.
func TestIngestParityAcrossSinks(t *testing.T) {
	records := []internal.CatalogRecord{
		animeRecord(1, 21, "Second Show", []string{"Action", "Drama", "Action"}, []string{"Alt One", "Alt Two"}),
		animeRecord(2, 5, "First Show", []string{"Drama"}, nil),
	}
	ctx := context.Background()

	fileSink := NewFileSink(t.TempDir())
	fileReport, err := NewService(fileSink, logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil)
	if err != nil {
		t.Fatal(err)
	}

	db := openTestDB(t)
	dbSink := NewDBSink(db)
	dbReport, err := NewService(dbSink, logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil)
	if err != nil {
		t.Fatal(err)
	}

	if fileReport.Loaded != 2 || dbReport.Loaded != 2 {
		t.Fatalf("loaded: file=%d db=%d, want 2", fileReport.Loaded, dbReport.Loaded)
	}
	if fileReport.Links != dbReport.Links {
		t.Fatalf("link counts diverge: file=%d db=%d", fileReport.Links, dbReport.Links)
	}
	if fileReport.Titles != dbReport.Titles {
		t.Fatalf("title counts diverge: file=%d db=%d", fileReport.Titles, dbReport.Titles)
	}

	// The duplicate "Action" collapses: 3 distinct genre links, not 4.
	genreLinks, err := db.CountRows(ctx, "entry_genre")
	if err != nil {
		t.Fatal(err)
	}
	if genreLinks != 3 {
		t.Fatalf("entry_genre has %d rows, want 3", genreLinks)
	}
	if got := len(fileSink.links[internal.JunctionGenre].rows); got != 3 {
		t.Fatalf("file sink buffered %d genre links, want 3", got)
	}

	for _, table := range []string{"entry", "anime_details"} {
		n, err := db.CountRows(ctx, table)
		if err != nil {
			t.Fatal(err)
		}
		if n != 2 {
			t.Fatalf("%s has %d rows, want 2", table, n)
		}
	}
}

func TestIngestLiveRerunIdempotent(t *testing.T) {
	records := []internal.CatalogRecord{
		animeRecord(1, 21, "Second Show", []string{"Action"}, []string{"Alt One"}),
	}
	ctx := context.Background()
	db := openTestDB(t)

	if _, err := NewService(NewDBSink(db), logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil); err != nil {
		t.Fatal(err)
	}
	report, err := NewService(NewDBSink(db), logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Loaded != 1 {
		t.Fatalf("rerun loaded %d, want 1", report.Loaded)
	}

	for table, want := range map[string]int64{
		"entry":          1,
		"anime_details":  1,
		"entry_genre":    1,
		"entry_synonym":  1,
		"genre":          1,
		"language_entry": 1,
		"item_type":      1,
		"status_type":    1,
	} {
		n, err := db.CountRows(ctx, table)
		if err != nil {
			t.Fatal(err)
		}
		if n != want {
			t.Fatalf("%s has %d rows after rerun, want %d", table, n, want)
		}
	}

	runs, err := db.CountRows(ctx, "runs")
	if err != nil {
		t.Fatal(err)
	}
	if runs != 2 {
		t.Fatalf("runs ledger has %d rows, want 2", runs)
	}
}

func TestIngestMangaAuthorsCollapse(t *testing.T) {
	records := []internal.CatalogRecord{
		mangaRecord(1, 13, "Great Manga", []string{"Oda, Eiichiro"}),
		mangaRecord(2, 14, "Other Manga", []string{"Oda,Eiichiro"}),
	}
	ctx := context.Background()
	db := openTestDB(t)

	report, err := NewService(NewDBSink(db), logger.Nop()).Ingest(ctx, internal.MediumManga, records, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Loaded != 2 {
		t.Fatalf("loaded %d, want 2", report.Loaded)
	}

	authors, err := db.CountRows(ctx, "author")
	if err != nil {
		t.Fatal(err)
	}
	if authors != 1 {
		t.Fatalf("author has %d rows, want 1 (spellings should collapse)", authors)
	}
	links, err := db.CountRows(ctx, "entry_author")
	if err != nil {
		t.Fatal(err)
	}
	if links != 2 {
		t.Fatalf("entry_author has %d rows, want 2", links)
	}
}

func TestIngestDefaultsMissingType(t *testing.T) {
	rec := animeRecord(1, 99, "Untyped Show", nil, nil)
	rec.ItemType = ""
	rec.Status = ""
	ctx := context.Background()
	db := openTestDB(t)

	report, err := NewService(NewDBSink(db), logger.Nop()).Ingest(ctx, internal.MediumAnime, []internal.CatalogRecord{rec}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if report.Loaded != 1 {
		t.Fatalf("loaded %d, want 1", report.Loaded)
	}

	_, rows, err := db.DumpTable(ctx, "item_type")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0][2] != "Unknown" {
		t.Fatalf("item_type rows %v, want one Unknown row", rows)
	}
}

func TestFileSinkFinishWritesTables(t *testing.T) {
	dir := t.TempDir()
	sink := NewFileSink(dir)
	records := []internal.CatalogRecord{
		animeRecord(1, 21, "Second Show", []string{"Action"}, []string{"Alt One"}),
	}
	ctx := context.Background()

	if _, err := NewService(sink, logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil); err != nil {
		t.Fatal(err)
	}
	if err := sink.Finish(ctx); err != nil {
		t.Fatal(err)
	}

	headers := map[string][]string{
		"Entry":         entryHeader,
		"AnimeDetails":  animeHeader,
		"MangaDetails":  mangaHeader,
		"Genre":         {"genre_id", "name"},
		"AgeRating":     {"age_rating_id", "code", "description"},
		"Author":        {"author_id", "first_name", "last_name", "display_name"},
		"ItemType":      {"item_type_id", "medium_type", "type_name"},
		"EntryGenre":    {"entry_id", "genre_id"},
		"EntrySynonym":  {"entry_id", "synonym_id"},
		"LanguageEntry": {"entry_id", "language_id", "title_text"},
	}
	for name, want := range headers {
		f, err := os.Open(filepath.Join(dir, name+".csv"))
		if err != nil {
			t.Fatalf("%s.csv: %v", name, err)
		}
		header, err := csv.NewReader(f).Read()
		_ = f.Close()
		if err != nil {
			t.Fatalf("%s.csv header: %v", name, err)
		}
		if len(header) != len(want) {
			t.Fatalf("%s.csv header %v, want %v", name, header, want)
		}
		for i := range want {
			if header[i] != want[i] {
				t.Fatalf("%s.csv header %v, want %v", name, header, want)
			}
		}
	}

	// One entity, one genre link, one Japanese title.
	entries, err := readDataRows(filepath.Join(dir, "Entry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0][0] != "1" || entries[0][2] != "anime" {
		t.Fatalf("entry rows %v", entries)
	}
	titles, err := readDataRows(filepath.Join(dir, "LanguageEntry.csv"))
	if err != nil {
		t.Fatal(err)
	}
	if len(titles) != 1 || titles[0][2] != "Second Show JP" {
		t.Fatalf("title rows %v", titles)
	}
}

func readDataRows(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, err
	}
	return rows[1:], nil
}
