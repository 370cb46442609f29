package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xuri/excelize/v2"

	"mediadex/internal"
	"mediadex/internal/logger"
	"mediadex/internal/storage"
)

func TestExportWorkbook(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	records := []internal.CatalogRecord{
		animeRecord(1, 21, "Second Show", []string{"Action"}, nil),
	}
	if _, err := NewService(NewDBSink(db), logger.Nop()).Ingest(ctx, internal.MediumAnime, records, nil); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "mediadex.xlsx")
	if err := ExportWorkbook(ctx, db, out); err != nil {
		t.Fatal(err)
	}

	f, err := excelize.OpenFile(out)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) != len(storage.ExportTables()) {
		t.Fatalf("got %d sheets, want %d", len(sheets), len(storage.ExportTables()))
	}

	rows, err := f.GetRows("entry")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("entry sheet has %d rows, want header plus one", len(rows))
	}
	if rows[0][0] != "entry_id" {
		t.Fatalf("entry header starts with %q", rows[0][0])
	}
	if rows[1][3] != "Second Show" {
		t.Fatalf("entry title cell %q", rows[1][3])
	}
}
