package registry

import (
	"context"
	"testing"

	"mediadex/internal"
)

func TestMemoryPrimeAndResolve(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	values := []Value{
		{Key: StringKey("Action")},
		{Key: StringKey("Drama")},
		{Key: StringKey("Action")},
		{Key: StringKey(" Action ")},
	}
	if err := m.Prime(ctx, internal.CatGenre, values); err != nil {
		t.Fatal(err)
	}

	actionID, ok := m.Resolve(internal.CatGenre, StringKey("Action"))
	if !ok {
		t.Fatal("Action not resolvable")
	}
	dramaID, ok := m.Resolve(internal.CatGenre, StringKey("Drama"))
	if !ok {
		t.Fatal("Drama not resolvable")
	}
	if actionID == dramaID {
		t.Fatalf("distinct values share id %d", actionID)
	}

	trimmedID, _ := m.Resolve(internal.CatGenre, StringKey(" Action "))
	if trimmedID != actionID {
		t.Fatalf("trimmed spelling minted a new id: %d vs %d", trimmedID, actionID)
	}

	rows := m.Rows(internal.CatGenre)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Key.Value != "Action" || rows[0].ID != 1 {
		t.Fatalf("first row %+v, want Action id 1", rows[0])
	}
	if rows[1].Key.Value != "Drama" || rows[1].ID != 2 {
		t.Fatalf("second row %+v, want Drama id 2", rows[1])
	}
}

func TestMemoryRePrimeIsNoOp(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.Prime(ctx, internal.CatTheme, []Value{{Key: StringKey("Military")}}); err != nil {
		t.Fatal(err)
	}
	first, _ := m.Resolve(internal.CatTheme, StringKey("Military"))

	if err := m.Prime(ctx, internal.CatTheme, []Value{{Key: StringKey("Military")}}); err != nil {
		t.Fatal(err)
	}
	second, _ := m.Resolve(internal.CatTheme, StringKey("Military"))
	if second != first {
		t.Fatalf("re-prime changed id: %d vs %d", second, first)
	}
	if len(m.Rows(internal.CatTheme)) != 1 {
		t.Fatalf("re-prime duplicated the row")
	}
}

func TestMemorySkipsEmptyValues(t *testing.T) {
	m := NewMemory()
	if err := m.Prime(context.Background(), internal.CatGenre, []Value{{Key: StringKey("  ")}}); err != nil {
		t.Fatal(err)
	}
	if len(m.Rows(internal.CatGenre)) != 0 {
		t.Fatal("empty value was registered")
	}
}

func TestPersonKeySpacing(t *testing.T) {
	a := PersonKey("Oda, Eiichiro")
	b := PersonKey("Oda,Eiichiro")
	if a != b {
		t.Fatalf("spacing produced different keys: %+v vs %+v", a, b)
	}
	if a.Value != "Oda" || a.Secondary != "Eiichiro" {
		t.Fatalf("unexpected key %+v", a)
	}

	mono := PersonKey("CLAMP")
	if mono.Value != "CLAMP" || mono.Secondary != "" {
		t.Fatalf("mononym key %+v", mono)
	}
}

func TestScopedKeyNamespaces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	values := []Value{
		{Key: ScopedKey(internal.MediumAnime, "Finished")},
		{Key: ScopedKey(internal.MediumManga, "Finished")},
	}
	if err := m.Prime(ctx, internal.CatStatus, values); err != nil {
		t.Fatal(err)
	}

	animeID, _ := m.Resolve(internal.CatStatus, ScopedKey(internal.MediumAnime, "Finished"))
	mangaID, _ := m.Resolve(internal.CatStatus, ScopedKey(internal.MediumManga, "Finished"))
	if animeID == mangaID {
		t.Fatalf("same label across media shares id %d", animeID)
	}
}

func TestRatingKeyCollapsesDescriptions(t *testing.T) {
	a := RatingKey("R - 17+ (violence & profanity)")
	b := RatingKey("R - 17+")
	if a != b {
		t.Fatalf("same code produced different keys: %+v vs %+v", a, b)
	}
	if a.Value != "R" {
		t.Fatalf("unexpected code %q", a.Value)
	}
}

func TestResolveNeverCreates(t *testing.T) {
	m := NewMemory()
	if _, ok := m.Resolve(internal.CatGenre, StringKey("Horror")); ok {
		t.Fatal("unprimed key resolved")
	}
	if len(m.Rows(internal.CatGenre)) != 0 {
		t.Fatal("resolve created a row")
	}
}
