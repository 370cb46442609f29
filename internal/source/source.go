// Package source decodes the per-family input CSVs into typed records. All
// string-to-type conversion happens here, once, at the boundary; downstream
// code never touches raw row maps.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"mediadex/internal"
	"mediadex/internal/parse"
)

// localTitleColumns maps input columns to seed language names, in seed order.
var localTitleColumns = []struct {
	column   string
	language string
}{
	{"japanese_name", "Japanese"},
	{"english_name", "English"},
	{"german_name", "German"},
	{"french_name", "French"},
	{"spanish_name", "Spanish"},
}

// ReadFile decodes one family's CSV. Rows without a usable natural id or
// title cannot be keyed and are reported in skipped by 1-based data-row
// position. Records come back sorted by natural id.
func ReadFile(medium internal.Medium, path string) ([]internal.CatalogRecord, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	return Read(medium, f)
}

func Read(medium internal.Medium, r io.Reader) ([]internal.CatalogRecord, []int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := readHeader(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read header: %w", err)
	}

	var records []internal.CatalogRecord
	var skipped []int
	rowNo := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("read row %d: %w", rowNo+1, err)
		}
		rowNo++
		if len(row) == 0 {
			continue
		}

		rec, ok := decodeRecord(medium, header, row, rowNo)
		if !ok {
			skipped = append(skipped, rowNo)
			continue
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].NaturalID < records[j].NaturalID
	})
	return records, skipped, nil
}

func decodeRecord(medium internal.Medium, header map[string]int, row []string, rowNo int) (internal.CatalogRecord, bool) {
	get := func(key string) string { return valueAt(header, row, key) }

	id, err := strconv.ParseInt(get("id"), 10, 64)
	title := get("title_name")
	if err != nil || title == "" {
		return internal.CatalogRecord{}, false
	}

	rec := internal.CatalogRecord{
		Medium:      medium,
		Row:         rowNo,
		NaturalID:   id,
		Link:        get("link"),
		Title:       title,
		Score:       parse.Float64(get("score")),
		ScoredBy:    parse.Int64(get("scored_by")),
		Ranked:      parse.Int64(get("ranked")),
		Popularity:  parse.Int64(get("popularity")),
		Members:     parse.Int64(get("members")),
		Favorited:   parse.Int64(get("favorited")),
		Description: get("description"),
		Background:  get("background"),
		ItemType:    enumField(get("item_type")),
		Status:      enumField(get("status")),

		Genres:       parse.List(get("genres")),
		Themes:       parse.List(get("themes")),
		Demographics: parse.List(get("demographic")),
		Synonyms:     parse.CommaList(get("synonymns")),
	}

	for _, lt := range localTitleColumns {
		text := get(lt.column)
		if text == "" || parse.Absent(text) {
			continue
		}
		rec.LocalTitles = append(rec.LocalTitles, internal.LocalTitle{Language: lt.language, Text: text})
	}

	switch medium {
	case internal.MediumAnime:
		rec.Anime = &internal.AnimeFields{
			Episodes:    parse.Count(get("episodes")),
			DurationRaw: get("duration"),
			DurationMin: parse.Duration(get("duration")),
			Airing:      parse.DateRange(get("airing_date")),
			Premiere:    parse.PremiereSeason(get("premier_date")),
			Broadcast:   parse.BroadcastSlot(get("broadcast_date")),
			Source:      enumField(get("source")),
			AgeRating:   enumField(get("age_rating")),
			Producers:   parse.List(get("producers")),
			Studios:     parse.List(get("studios")),
			Licensors:   parse.List(get("licensors")),
		}
	case internal.MediumManga:
		rec.Manga = &internal.MangaFields{
			Volumes:        parse.Count(get("volumes")),
			Chapters:       parse.Count(get("chapters")),
			Publishing:     parse.DateRange(get("publishing_date")),
			Authors:        parse.List(get("authors")),
			Serializations: parse.List(get("serialization")),
		}
	}

	return rec, true
}

func readHeader(r *csv.Reader) (map[string]int, error) {
	row, err := r.Read()
	if err != nil {
		return nil, err
	}
	header := make(map[string]int, len(row))
	for idx, name := range row {
		header[strings.TrimSpace(strings.ToLower(name))] = idx
	}
	return header, nil
}

func valueAt(header map[string]int, row []string, key string) string {
	idx, ok := header[key]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// enumField collapses sentinel tokens to empty so downstream code has a single
// "absent" representation for enumerated columns.
func enumField(raw string) string {
	if parse.Absent(raw) {
		return ""
	}
	return raw
}
