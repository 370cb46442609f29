package pipeline

import (
	"context"

	"mediadex/internal"
	"mediadex/internal/registry"
)

// Sink is the destination abstraction the normalization engine writes
// through. The live store mints entity ids via upsert and read-back; the file
// batch mints them from a counter. Both expose the same lookup registry
// contract so the dedup/keying algorithm upstream is identical.
type Sink interface {
	Registry() registry.Registry

	// UpsertEntry persists the entity row and returns its surrogate id. An
	// error marks a single-record failure: the caller skips the record and
	// the batch continues.
	UpsertEntry(ctx context.Context, row internal.EntryRow) (int64, error)

	UpsertAnimeDetails(ctx context.Context, row internal.AnimeDetailRow) error
	UpsertMangaDetails(ctx context.Context, row internal.MangaDetailRow) error

	// FlushLinks and FlushTitles are phase-level bulk writes; their errors
	// are fatal to the run.
	FlushLinks(ctx context.Context, junction internal.Junction, links []internal.Link) error
	FlushTitles(ctx context.Context, rows []internal.TitleRow) error

	RecordRun(ctx context.Context, report MediumReport) error

	// Finish closes out the run after all media are ingested; the file sink
	// writes its buffered lookup and junction streams here.
	Finish(ctx context.Context) error
}
