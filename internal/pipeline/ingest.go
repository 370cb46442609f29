// Package pipeline drives the normalization run: a prime phase registering
// every distinct lookup value, a single-threaded traversal persisting entities
// and collecting junction candidates, and bulk flush phases. Record-level
// failures are logged with their input position and skipped; phase-level
// failures abort the run, leaving prior phases committed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mediadex/internal"
	"mediadex/internal/logger"
	"mediadex/internal/registry"
	"mediadex/internal/source"
)

const unknownLabel = "Unknown"

type Service struct {
	sink Sink
	log  *logger.Logger
}

func NewService(sink Sink, log *logger.Logger) *Service {
	return &Service{sink: sink, log: log}
}

type MediumReport struct {
	RunID     string
	Medium    internal.Medium
	Records   int
	Loaded    int
	Skipped   []int
	Links     int
	Titles    int
	ElapsedMs int64
}

func (s *Service) IngestFile(ctx context.Context, medium internal.Medium, path string) (MediumReport, error) {
	records, skipped, err := source.ReadFile(medium, path)
	if err != nil {
		return MediumReport{}, fmt.Errorf("read %s input: %w", medium, err)
	}
	for _, row := range skipped {
		s.log.Warn("input row dropped", "medium", medium, "row", row, "reason", "missing id or title")
	}
	return s.Ingest(ctx, medium, records, skipped)
}

// Ingest runs one family through the engine. preSkipped carries input rows
// already dropped at the boundary so the report covers the whole file.
func (s *Service) Ingest(ctx context.Context, medium internal.Medium, records []internal.CatalogRecord, preSkipped []int) (MediumReport, error) {
	start := time.Now()
	report := MediumReport{
		RunID:   uuid.NewString(),
		Medium:  medium,
		Records: len(records) + len(preSkipped),
		Skipped: append([]int{}, preSkipped...),
	}
	reg := s.sink.Registry()

	if err := s.prime(ctx, medium, records); err != nil {
		return report, err
	}

	junctions := newJunctionBuilder()
	titles := newTitleSet()

	for _, rec := range records {
		if _, ok := s.loadRecord(ctx, reg, rec, junctions, titles); !ok {
			report.Skipped = append(report.Skipped, rec.Row)
			continue
		}
		report.Loaded++
	}

	links, err := junctions.flush(ctx, s.sink)
	if err != nil {
		return report, fmt.Errorf("flush junctions: %w", err)
	}
	report.Links = links

	titleRows := titles.rows()
	if err := s.sink.FlushTitles(ctx, titleRows); err != nil {
		return report, fmt.Errorf("flush localized titles: %w", err)
	}
	report.Titles = len(titleRows)

	report.ElapsedMs = time.Since(start).Milliseconds()
	if err := s.sink.RecordRun(ctx, report); err != nil {
		s.log.Warn("run ledger write failed", "medium", medium, "error", err)
	}

	s.log.Info("ingest complete",
		"medium", medium, "runId", report.RunID,
		"records", report.Records, "loaded", report.Loaded,
		"skipped", len(report.Skipped), "links", report.Links,
		"titles", report.Titles, "elapsedMs", report.ElapsedMs)
	return report, nil
}

// prime registers every distinct lookup value referenced by the batch, in
// record traversal order, before any entity is written. The live store needs
// all category tables populated before junction ids can be resolved; the
// in-memory registry mints ids here.
func (s *Service) prime(ctx context.Context, medium internal.Medium, records []internal.CatalogRecord) error {
	reg := s.sink.Registry()

	languages := make([]registry.Value, 0, len(internal.SeedLanguages))
	for _, lang := range internal.SeedLanguages {
		languages = append(languages, registry.Value{Key: registry.StringKey(lang)})
	}

	batches := map[internal.Category][]registry.Value{
		internal.CatLanguage: languages,
	}
	appendStrings := func(cat internal.Category, values []string) {
		for _, v := range values {
			batches[cat] = append(batches[cat], registry.Value{Key: registry.StringKey(v)})
		}
	}

	for _, rec := range records {
		appendStrings(internal.CatGenre, rec.Genres)
		appendStrings(internal.CatTheme, rec.Themes)
		appendStrings(internal.CatDemographic, rec.Demographics)
		appendStrings(internal.CatSynonym, rec.Synonyms)

		batches[internal.CatItemType] = append(batches[internal.CatItemType],
			registry.Value{Key: registry.ScopedKey(medium, orUnknown(rec.ItemType))})
		batches[internal.CatStatus] = append(batches[internal.CatStatus],
			registry.Value{Key: registry.ScopedKey(medium, orUnknown(rec.Status))})

		if rec.Anime != nil {
			appendStrings(internal.CatProducer, rec.Anime.Producers)
			appendStrings(internal.CatStudio, rec.Anime.Studios)
			appendStrings(internal.CatLicensor, rec.Anime.Licensors)
			if rec.Anime.Source != "" {
				batches[internal.CatSource] = append(batches[internal.CatSource],
					registry.Value{Key: registry.StringKey(rec.Anime.Source)})
			}
			if rec.Anime.AgeRating != "" {
				batches[internal.CatAgeRating] = append(batches[internal.CatAgeRating],
					registry.Value{Key: registry.RatingKey(rec.Anime.AgeRating), Display: rec.Anime.AgeRating})
			}
		}
		if rec.Manga != nil {
			for _, raw := range rec.Manga.Authors {
				batches[internal.CatAuthor] = append(batches[internal.CatAuthor],
					registry.Value{Key: registry.PersonKey(raw), Display: raw})
			}
			appendStrings(internal.CatSerialization, rec.Manga.Serializations)
		}
	}

	for _, cat := range primeOrder {
		values := batches[cat]
		if len(values) == 0 {
			continue
		}
		if err := reg.Prime(ctx, cat, values); err != nil {
			return fmt.Errorf("prime %s: %w", cat, err)
		}
	}
	return nil
}

// primeOrder fixes the category registration sequence so file-sink id minting
// is deterministic for a given input.
var primeOrder = []internal.Category{
	internal.CatLanguage,
	internal.CatGenre, internal.CatTheme, internal.CatDemographic,
	internal.CatItemType, internal.CatStatus,
	internal.CatProducer, internal.CatStudio, internal.CatLicensor,
	internal.CatSource, internal.CatAgeRating,
	internal.CatAuthor, internal.CatSerialization,
	internal.CatSynonym,
}

func (s *Service) loadRecord(ctx context.Context, reg registry.Registry, rec internal.CatalogRecord, junctions *junctionBuilder, titles *titleSet) (int64, bool) {
	typeID, ok := reg.Resolve(internal.CatItemType, registry.ScopedKey(rec.Medium, orUnknown(rec.ItemType)))
	if !ok {
		s.log.Warn("record skipped", "medium", rec.Medium, "row", rec.Row, "malId", rec.NaturalID, "reason", "unresolved item type")
		return 0, false
	}

	entryID, err := s.sink.UpsertEntry(ctx, internal.EntryRow{
		MalID:       rec.NaturalID,
		Medium:      rec.Medium,
		Link:        rec.Link,
		Title:       rec.Title,
		Score:       rec.Score,
		Description: rec.Description,
		Background:  rec.Background,
		ItemTypeID:  typeID,
		ScoredBy:    rec.ScoredBy,
		Ranked:      rec.Ranked,
		Popularity:  rec.Popularity,
		Members:     rec.Members,
		Favorited:   rec.Favorited,
	})
	if err != nil {
		s.log.Warn("record skipped", "medium", rec.Medium, "row", rec.Row, "malId", rec.NaturalID, "error", err)
		return 0, false
	}

	statusID := resolveOptional(reg, internal.CatStatus, registry.ScopedKey(rec.Medium, orUnknown(rec.Status)))

	switch {
	case rec.Anime != nil:
		detail := internal.AnimeDetailRow{
			EntryID:        entryID,
			DurationRaw:    rec.Anime.DurationRaw,
			DurationMin:    rec.Anime.DurationMin,
			FromAiring:     rec.Anime.Airing.From,
			ToAiring:       rec.Anime.Airing.To,
			Episodes:       rec.Anime.Episodes,
			StatusID:       statusID,
			PremiereSeason: rec.Anime.Premiere.Season,
			PremiereYear:   rec.Anime.Premiere.Year,
			BroadcastDay:   rec.Anime.Broadcast.Day,
			BroadcastTime:  rec.Anime.Broadcast.Time,
			BroadcastZone:  rec.Anime.Broadcast.Zone,
		}
		if rec.Anime.Source != "" {
			detail.SourceID = resolveOptional(reg, internal.CatSource, registry.StringKey(rec.Anime.Source))
		}
		if rec.Anime.AgeRating != "" {
			detail.AgeRatingID = resolveOptional(reg, internal.CatAgeRating, registry.RatingKey(rec.Anime.AgeRating))
		}
		if err := s.sink.UpsertAnimeDetails(ctx, detail); err != nil {
			s.log.Warn("detail skipped", "medium", rec.Medium, "row", rec.Row, "malId", rec.NaturalID, "error", err)
			return entryID, false
		}
	case rec.Manga != nil:
		detail := internal.MangaDetailRow{
			EntryID:        entryID,
			FromPublishing: rec.Manga.Publishing.From,
			ToPublishing:   rec.Manga.Publishing.To,
			Volumes:        rec.Manga.Volumes,
			Chapters:       rec.Manga.Chapters,
			StatusID:       statusID,
		}
		if err := s.sink.UpsertMangaDetails(ctx, detail); err != nil {
			s.log.Warn("detail skipped", "medium", rec.Medium, "row", rec.Row, "malId", rec.NaturalID, "error", err)
			return entryID, false
		}
	}

	s.link(reg, junctions, internal.JunctionGenre, internal.CatGenre, entryID, rec.Genres, registry.StringKey)
	s.link(reg, junctions, internal.JunctionTheme, internal.CatTheme, entryID, rec.Themes, registry.StringKey)
	s.link(reg, junctions, internal.JunctionDemographic, internal.CatDemographic, entryID, rec.Demographics, registry.StringKey)
	s.link(reg, junctions, internal.JunctionSynonym, internal.CatSynonym, entryID, rec.Synonyms, registry.StringKey)

	if rec.Anime != nil {
		s.link(reg, junctions, internal.JunctionProducer, internal.CatProducer, entryID, rec.Anime.Producers, registry.StringKey)
		s.link(reg, junctions, internal.JunctionStudio, internal.CatStudio, entryID, rec.Anime.Studios, registry.StringKey)
		s.link(reg, junctions, internal.JunctionLicensor, internal.CatLicensor, entryID, rec.Anime.Licensors, registry.StringKey)
	}
	if rec.Manga != nil {
		s.link(reg, junctions, internal.JunctionAuthor, internal.CatAuthor, entryID, rec.Manga.Authors, registry.PersonKey)
		s.link(reg, junctions, internal.JunctionSerialization, internal.CatSerialization, entryID, rec.Manga.Serializations, registry.StringKey)
	}

	for _, lt := range rec.LocalTitles {
		langID, ok := reg.Resolve(internal.CatLanguage, registry.StringKey(lt.Language))
		if !ok {
			continue
		}
		titles.set(entryID, langID, lt.Text)
	}

	return entryID, true
}

// link resolves each raw value through the registry and emits one candidate
// per (entry, lookup) pair. Values that fail to resolve are dropped from this
// record's junctions, not treated as failures.
func (s *Service) link(reg registry.Registry, junctions *junctionBuilder, junction internal.Junction, cat internal.Category, entryID int64, values []string, keyFn func(string) internal.LookupKey) {
	for _, raw := range values {
		key := keyFn(raw)
		if key.Value == "" {
			continue
		}
		id, ok := reg.Resolve(cat, key)
		if !ok {
			continue
		}
		junctions.add(junction, internal.Link{EntryID: entryID, LookupID: id})
	}
}

func resolveOptional(reg registry.Registry, cat internal.Category, key internal.LookupKey) *int64 {
	id, ok := reg.Resolve(cat, key)
	if !ok {
		return nil
	}
	return &id
}

func orUnknown(label string) string {
	if label == "" {
		return unknownLabel
	}
	return label
}

// junctionBuilder accumulates link candidates per junction table as an
// insertion-ordered set; duplicates collapse regardless of arrival order.
type junctionBuilder struct {
	sets map[internal.Junction]*linkBuffer
}

func newJunctionBuilder() *junctionBuilder {
	return &junctionBuilder{sets: map[internal.Junction]*linkBuffer{}}
}

func (b *junctionBuilder) add(junction internal.Junction, link internal.Link) {
	buf := b.sets[junction]
	if buf == nil {
		buf = &linkBuffer{seen: map[internal.Link]struct{}{}}
		b.sets[junction] = buf
	}
	if _, ok := buf.seen[link]; ok {
		return
	}
	buf.seen[link] = struct{}{}
	buf.rows = append(buf.rows, link)
}

func (b *junctionBuilder) flush(ctx context.Context, sink Sink) (int, error) {
	total := 0
	for _, junction := range junctionOrder {
		buf := b.sets[junction]
		if buf == nil || len(buf.rows) == 0 {
			continue
		}
		if err := sink.FlushLinks(ctx, junction, buf.rows); err != nil {
			return total, fmt.Errorf("%s: %w", junction, err)
		}
		total += len(buf.rows)
	}
	return total, nil
}

// titleSet keeps at most one text per (entry, language); later writes for the
// same pair overwrite earlier ones.
type titleSet struct {
	texts map[internal.Link]string
	order []internal.Link
}

func newTitleSet() *titleSet {
	return &titleSet{texts: map[internal.Link]string{}}
}

func (t *titleSet) set(entryID, languageID int64, text string) {
	key := internal.Link{EntryID: entryID, LookupID: languageID}
	if _, ok := t.texts[key]; !ok {
		t.order = append(t.order, key)
	}
	t.texts[key] = text
}

func (t *titleSet) rows() []internal.TitleRow {
	out := make([]internal.TitleRow, 0, len(t.order))
	for _, key := range t.order {
		out = append(out, internal.TitleRow{EntryID: key.EntryID, LanguageID: key.LookupID, Text: t.texts[key]})
	}
	return out
}
