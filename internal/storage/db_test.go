package storage

import (
	"context"
	"path/filepath"
	"testing"

	"mediadex/internal"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestPrimeNamesIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.PrimeNames(ctx, internal.CatGenre, []string{"Action", "Drama", "Action"})
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("got %d genres, want 2", len(first))
	}

	second, err := db.PrimeNames(ctx, internal.CatGenre, []string{"Drama", "Horror"})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 3 {
		t.Fatalf("got %d genres, want 3", len(second))
	}
	if second["Action"] != first["Action"] || second["Drama"] != first["Drama"] {
		t.Fatal("re-priming changed existing ids")
	}

	n, err := db.CountRows(ctx, "genre")
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("genre table has %d rows, want 3", n)
	}
}

func TestPrimeScopedNamesPartitionsByMedium(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	animeID, err := db.ResolveMedium(ctx, "anime")
	if err != nil {
		t.Fatal(err)
	}
	mangaID, err := db.ResolveMedium(ctx, "manga")
	if err != nil {
		t.Fatal(err)
	}
	if animeID == mangaID {
		t.Fatal("media share an id")
	}

	anime, err := db.PrimeScopedNames(ctx, internal.CatStatus, animeID, []string{"Finished"})
	if err != nil {
		t.Fatal(err)
	}
	manga, err := db.PrimeScopedNames(ctx, internal.CatStatus, mangaID, []string{"Finished"})
	if err != nil {
		t.Fatal(err)
	}
	if anime["Finished"] == manga["Finished"] {
		t.Fatal("same label across media resolved to one row")
	}
}

func TestPrimeAgeRatingsOverwritesDescription(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	first, err := db.PrimeAgeRatings(ctx, []AgeRatingValue{{Code: "R", Description: "R - 17+"}})
	if err != nil {
		t.Fatal(err)
	}
	second, err := db.PrimeAgeRatings(ctx, []AgeRatingValue{{Code: "R", Description: "R - 17+ (violence & profanity)"}})
	if err != nil {
		t.Fatal(err)
	}
	if second["R"] != first["R"] {
		t.Fatal("description update changed the id")
	}

	_, rows, err := db.DumpTable(ctx, "age_rating")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("age_rating has %d rows, want 1", len(rows))
	}
}

func TestPrimeAuthorsCompositeKey(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	values := []AuthorValue{
		{Family: "Oda", Given: "Eiichiro", Display: "Oda, Eiichiro"},
		{Family: "Oda", Given: "Eiichiro", Display: "Oda,Eiichiro"},
		{Family: "CLAMP", Display: "CLAMP"},
	}
	byKey, err := db.PrimeAuthors(ctx, values)
	if err != nil {
		t.Fatal(err)
	}
	if len(byKey) != 2 {
		t.Fatalf("got %d authors, want 2", len(byKey))
	}
	if _, ok := byKey[internal.LookupKey{Value: "Oda", Secondary: "Eiichiro"}]; !ok {
		t.Fatal("composite key missing")
	}
	if _, ok := byKey[internal.LookupKey{Value: "CLAMP"}]; !ok {
		t.Fatal("mononym key missing")
	}

	again, err := db.PrimeAuthors(ctx, values)
	if err != nil {
		t.Fatal(err)
	}
	if len(again) != 2 {
		t.Fatalf("rerun minted new authors: %d", len(again))
	}
}

func TestUpsertEntryRerunKeepsID(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	mediumID, err := db.ResolveMedium(ctx, "anime")
	if err != nil {
		t.Fatal(err)
	}
	types, err := db.PrimeScopedNames(ctx, internal.CatItemType, mediumID, []string{"TV"})
	if err != nil {
		t.Fatal(err)
	}

	score := 8.1
	row := internal.EntryRow{MalID: 21, Title: "Second Show", Score: &score, ItemTypeID: types["TV"]}
	first, err := db.UpsertEntry(ctx, row)
	if err != nil {
		t.Fatal(err)
	}

	row.Title = "Second Show (updated)"
	second, err := db.UpsertEntry(ctx, row)
	if err != nil {
		t.Fatal(err)
	}
	if second != first {
		t.Fatalf("rerun minted a new id: %d vs %d", second, first)
	}

	n, err := db.CountRows(ctx, "entry")
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("entry has %d rows, want 1", n)
	}

	_, rows, err := db.DumpTable(ctx, "entry")
	if err != nil {
		t.Fatal(err)
	}
	// title_name is the third column in the entry schema.
	if got := rows[0][3]; got != "Second Show (updated)" {
		t.Fatalf("title not updated: %v", got)
	}
}

func TestUpsertEntrySameNaturalIDDifferentType(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	mediumID, err := db.ResolveMedium(ctx, "anime")
	if err != nil {
		t.Fatal(err)
	}
	types, err := db.PrimeScopedNames(ctx, internal.CatItemType, mediumID, []string{"TV", "Movie"})
	if err != nil {
		t.Fatal(err)
	}

	tv, err := db.UpsertEntry(ctx, internal.EntryRow{MalID: 21, Title: "Show", ItemTypeID: types["TV"]})
	if err != nil {
		t.Fatal(err)
	}
	movie, err := db.UpsertEntry(ctx, internal.EntryRow{MalID: 21, Title: "Show Movie", ItemTypeID: types["Movie"]})
	if err != nil {
		t.Fatal(err)
	}
	if tv == movie {
		t.Fatal("distinct composite keys share an entry row")
	}
}

func TestInsertLinksIdempotent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	links := []internal.Link{{EntryID: 1, LookupID: 10}, {EntryID: 1, LookupID: 11}}
	if err := db.InsertLinks(ctx, internal.JunctionGenre, links); err != nil {
		t.Fatal(err)
	}
	if err := db.InsertLinks(ctx, internal.JunctionGenre, links); err != nil {
		t.Fatal(err)
	}

	n, err := db.CountRows(ctx, "entry_genre")
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("entry_genre has %d rows, want 2", n)
	}
}

func TestUpsertTitlesOverwrites(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.UpsertTitles(ctx, []internal.TitleRow{{EntryID: 1, LanguageID: 1, Text: "old"}}); err != nil {
		t.Fatal(err)
	}
	if err := db.UpsertTitles(ctx, []internal.TitleRow{{EntryID: 1, LanguageID: 1, Text: "new"}}); err != nil {
		t.Fatal(err)
	}

	_, rows, err := db.DumpTable(ctx, "language_entry")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("language_entry has %d rows, want 1", len(rows))
	}
	if rows[0][2] != "new" {
		t.Fatalf("title not overwritten: %v", rows[0][2])
	}
}
