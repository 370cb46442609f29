package pipeline

import (
	"context"

	"mediadex/internal"
	"mediadex/internal/registry"
	"mediadex/internal/storage"
)

// DBSink writes through the live SQLite store. Rerunning over overlapping
// input is idempotent: entries upsert on their composite key, lookups and
// junctions insert-if-absent.
type DBSink struct {
	db  *storage.DB
	reg *storage.Registry
}

func NewDBSink(db *storage.DB) *DBSink {
	return &DBSink{db: db, reg: storage.NewRegistry(db)}
}

func (s *DBSink) Registry() registry.Registry {
	return s.reg
}

func (s *DBSink) UpsertEntry(ctx context.Context, row internal.EntryRow) (int64, error) {
	return s.db.UpsertEntry(ctx, row)
}

func (s *DBSink) UpsertAnimeDetails(ctx context.Context, row internal.AnimeDetailRow) error {
	return s.db.UpsertAnimeDetails(ctx, row)
}

func (s *DBSink) UpsertMangaDetails(ctx context.Context, row internal.MangaDetailRow) error {
	return s.db.UpsertMangaDetails(ctx, row)
}

func (s *DBSink) FlushLinks(ctx context.Context, junction internal.Junction, links []internal.Link) error {
	return s.db.InsertLinks(ctx, junction, links)
}

func (s *DBSink) FlushTitles(ctx context.Context, rows []internal.TitleRow) error {
	return s.db.UpsertTitles(ctx, rows)
}

func (s *DBSink) RecordRun(ctx context.Context, report MediumReport) error {
	counts := map[string]int{
		"records": report.Records,
		"loaded":  report.Loaded,
		"skipped": len(report.Skipped),
		"links":   report.Links,
		"titles":  report.Titles,
	}
	timings := map[string]float64{"totalMs": float64(report.ElapsedMs)}
	return s.db.InsertRun(ctx, report.RunID, report.Medium, counts, timings)
}

func (s *DBSink) Finish(context.Context) error {
	return nil
}
