package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"mediadex/internal/storage"
)

// ExportWorkbook writes one XLSX workbook with a sheet per table, in the
// fixed table order the file-sink CSV batch also uses.
func ExportWorkbook(ctx context.Context, db *storage.DB, outputPath string) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	first := f.GetSheetName(0)

	for i, table := range storage.ExportTables() {
		columns, rows, err := db.DumpTable(ctx, table)
		if err != nil {
			return fmt.Errorf("dump %s: %w", table, err)
		}

		sheet := table
		if i == 0 {
			if err := f.SetSheetName(first, sheet); err != nil {
				return err
			}
		} else {
			if _, err := f.NewSheet(sheet); err != nil {
				return err
			}
		}

		for col, name := range columns {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			_ = f.SetCellValue(sheet, cell, name)
		}
		for r, row := range rows {
			for col, value := range row {
				cell, _ := excelize.CoordinatesToCellName(col+1, r+2)
				_ = f.SetCellValue(sheet, cell, cellValue(value))
			}
		}
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

func cellValue(v any) any {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	default:
		return v
	}
}
