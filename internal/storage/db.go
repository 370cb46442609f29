package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	_ "modernc.org/sqlite"

	"mediadex/internal"
)

type DB struct {
	conn *sql.DB
}

func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = conn.Close()
		return nil, err
	}

	db := &DB{conn: conn}
	if err := db.init(); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return db, nil
}

func (d *DB) Close() error {
	return d.conn.Close()
}

func (d *DB) init() error {
	schema := `
CREATE TABLE IF NOT EXISTS medium (
  medium_id INTEGER PRIMARY KEY AUTOINCREMENT,
  name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS genre (genre_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS theme (theme_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS demographic (demographic_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS producer (producer_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS studio (studio_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS licensor (licensor_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS serialization (serialization_id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS source (source_id INTEGER PRIMARY KEY AUTOINCREMENT, source_name TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS synonym (synonym_id INTEGER PRIMARY KEY AUTOINCREMENT, synonym_text TEXT NOT NULL UNIQUE);
CREATE TABLE IF NOT EXISTS language (language_id INTEGER PRIMARY KEY AUTOINCREMENT, language_name TEXT NOT NULL UNIQUE);

CREATE TABLE IF NOT EXISTS age_rating (
  age_rating_id INTEGER PRIMARY KEY AUTOINCREMENT,
  code TEXT NOT NULL UNIQUE,
  description TEXT
);

CREATE TABLE IF NOT EXISTS author (
  author_id INTEGER PRIMARY KEY AUTOINCREMENT,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL,
  display_name TEXT,
  UNIQUE(first_name, last_name)
);

CREATE TABLE IF NOT EXISTS status_type (
  status_id INTEGER PRIMARY KEY AUTOINCREMENT,
  medium_id INTEGER NOT NULL REFERENCES medium(medium_id),
  status_name TEXT NOT NULL,
  UNIQUE(medium_id, status_name)
);

CREATE TABLE IF NOT EXISTS item_type (
  item_type_id INTEGER PRIMARY KEY AUTOINCREMENT,
  medium_id INTEGER NOT NULL REFERENCES medium(medium_id),
  type_name TEXT NOT NULL,
  UNIQUE(medium_id, type_name)
);

CREATE TABLE IF NOT EXISTS entry (
  entry_id INTEGER PRIMARY KEY AUTOINCREMENT,
  mal_id INTEGER NOT NULL,
  link TEXT,
  title_name TEXT NOT NULL,
  score REAL,
  description TEXT,
  background TEXT,
  item_type_id INTEGER NOT NULL REFERENCES item_type(item_type_id),
  scored_by INTEGER,
  ranked INTEGER,
  popularity INTEGER,
  members INTEGER,
  favorited INTEGER,
  UNIQUE(mal_id, item_type_id)
);
CREATE INDEX IF NOT EXISTS idx_entry_mal_id ON entry(mal_id);

CREATE TABLE IF NOT EXISTS anime_details (
  entry_id INTEGER PRIMARY KEY REFERENCES entry(entry_id),
  duration_minutes INTEGER,
  from_airing_date TEXT,
  to_airing_date TEXT,
  episodes INTEGER,
  status_id INTEGER REFERENCES status_type(status_id),
  source_id INTEGER REFERENCES source(source_id),
  age_rating_id INTEGER REFERENCES age_rating(age_rating_id),
  premier_date_season TEXT,
  premier_date_year INTEGER,
  broadcast_date_day TEXT,
  broadcast_date_time TEXT,
  broadcast_date_timezone TEXT
);

CREATE TABLE IF NOT EXISTS manga_details (
  entry_id INTEGER PRIMARY KEY REFERENCES entry(entry_id),
  from_publishing_date TEXT,
  to_publishing_date TEXT,
  volumes INTEGER,
  chapters INTEGER,
  status_id INTEGER REFERENCES status_type(status_id)
);

CREATE TABLE IF NOT EXISTS entry_genre (entry_id INTEGER NOT NULL, genre_id INTEGER NOT NULL, PRIMARY KEY(entry_id, genre_id));
CREATE TABLE IF NOT EXISTS entry_theme (entry_id INTEGER NOT NULL, theme_id INTEGER NOT NULL, PRIMARY KEY(entry_id, theme_id));
CREATE TABLE IF NOT EXISTS entry_demographic (entry_id INTEGER NOT NULL, demographic_id INTEGER NOT NULL, PRIMARY KEY(entry_id, demographic_id));
CREATE TABLE IF NOT EXISTS entry_producer (entry_id INTEGER NOT NULL, producer_id INTEGER NOT NULL, PRIMARY KEY(entry_id, producer_id));
CREATE TABLE IF NOT EXISTS entry_studio (entry_id INTEGER NOT NULL, studio_id INTEGER NOT NULL, PRIMARY KEY(entry_id, studio_id));
CREATE TABLE IF NOT EXISTS entry_licensor (entry_id INTEGER NOT NULL, licensor_id INTEGER NOT NULL, PRIMARY KEY(entry_id, licensor_id));
CREATE TABLE IF NOT EXISTS entry_author (entry_id INTEGER NOT NULL, author_id INTEGER NOT NULL, PRIMARY KEY(entry_id, author_id));
CREATE TABLE IF NOT EXISTS entry_serialization (entry_id INTEGER NOT NULL, serialization_id INTEGER NOT NULL, PRIMARY KEY(entry_id, serialization_id));
CREATE TABLE IF NOT EXISTS entry_synonym (entry_id INTEGER NOT NULL, synonym_id INTEGER NOT NULL, PRIMARY KEY(entry_id, synonym_id));

CREATE TABLE IF NOT EXISTS language_entry (
  entry_id INTEGER NOT NULL,
  language_id INTEGER NOT NULL,
  title_text TEXT NOT NULL,
  PRIMARY KEY(entry_id, language_id)
);

CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  trace_id TEXT NOT NULL,
  medium TEXT NOT NULL,
  counts_json TEXT NOT NULL,
  timings_json TEXT NOT NULL,
  created_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

	_, err := d.conn.Exec(schema)
	return err
}

type lookupTable struct {
	name    string
	idCol   string
	nameCol string
}

var simpleLookups = map[internal.Category]lookupTable{
	internal.CatGenre:         {"genre", "genre_id", "name"},
	internal.CatTheme:         {"theme", "theme_id", "name"},
	internal.CatDemographic:   {"demographic", "demographic_id", "name"},
	internal.CatProducer:      {"producer", "producer_id", "name"},
	internal.CatStudio:        {"studio", "studio_id", "name"},
	internal.CatLicensor:      {"licensor", "licensor_id", "name"},
	internal.CatSerialization: {"serialization", "serialization_id", "name"},
	internal.CatSource:        {"source", "source_id", "source_name"},
	internal.CatSynonym:       {"synonym", "synonym_id", "synonym_text"},
	internal.CatLanguage:      {"language", "language_id", "language_name"},
}

var scopedLookups = map[internal.Category]lookupTable{
	internal.CatStatus:   {"status_type", "status_id", "status_name"},
	internal.CatItemType: {"item_type", "item_type_id", "type_name"},
}

var junctionTables = map[internal.Junction]struct {
	table string
	fkCol string
}{
	internal.JunctionGenre:         {"entry_genre", "genre_id"},
	internal.JunctionTheme:         {"entry_theme", "theme_id"},
	internal.JunctionDemographic:   {"entry_demographic", "demographic_id"},
	internal.JunctionProducer:      {"entry_producer", "producer_id"},
	internal.JunctionStudio:        {"entry_studio", "studio_id"},
	internal.JunctionLicensor:      {"entry_licensor", "licensor_id"},
	internal.JunctionAuthor:        {"entry_author", "author_id"},
	internal.JunctionSerialization: {"entry_serialization", "serialization_id"},
	internal.JunctionSynonym:       {"entry_synonym", "synonym_id"},
}

// ExportTables lists every normalized table in workbook order.
func ExportTables() []string {
	return []string{
		"medium", "entry", "anime_details", "manga_details",
		"genre", "theme", "demographic", "producer", "studio", "licensor",
		"source", "age_rating", "author", "serialization", "synonym",
		"language", "status_type", "item_type",
		"entry_genre", "entry_theme", "entry_demographic", "entry_producer",
		"entry_studio", "entry_licensor", "entry_author", "entry_serialization",
		"entry_synonym", "language_entry", "runs",
	}
}

// ResolveMedium registers the family row if absent and returns its id.
func (d *DB) ResolveMedium(ctx context.Context, name string) (int64, error) {
	if _, err := d.conn.ExecContext(ctx, `INSERT OR IGNORE INTO medium (name) VALUES (?)`, name); err != nil {
		return 0, err
	}
	var id int64
	if err := d.conn.QueryRowContext(ctx, `SELECT medium_id FROM medium WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

// PrimeNames bulk-registers distinct values for a flat lookup category and
// reads the full table back as a value-to-id map. Re-priming overlapping
// values creates no duplicate rows.
func (d *DB) PrimeNames(ctx context.Context, cat internal.Category, names []string) (map[string]int64, error) {
	table, ok := simpleLookups[cat]
	if !ok {
		return nil, fmt.Errorf("not a flat lookup category: %s", cat)
	}

	unique := distinctSorted(names)
	if len(unique) > 0 {
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT OR IGNORE INTO %s (%s) VALUES (?)`, table.name, table.nameCol))
		if err != nil {
			return nil, err
		}
		defer stmt.Close()
		for _, name := range unique {
			if _, err := stmt.ExecContext(ctx, name); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	return d.readBackNames(ctx, fmt.Sprintf(
		`SELECT %s, %s FROM %s`, table.nameCol, table.idCol, table.name))
}

// PrimeScopedNames is the two-stage variant for family-partitioned categories:
// the family row is resolved first and labels are registered under its id.
func (d *DB) PrimeScopedNames(ctx context.Context, cat internal.Category, mediumID int64, names []string) (map[string]int64, error) {
	table, ok := scopedLookups[cat]
	if !ok {
		return nil, fmt.Errorf("not a scoped lookup category: %s", cat)
	}

	unique := distinctSorted(names)
	if len(unique) > 0 {
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT OR IGNORE INTO %s (medium_id, %s) VALUES (?, ?)`, table.name, table.nameCol))
		if err != nil {
			return nil, err
		}
		defer stmt.Close()
		for _, name := range unique {
			if _, err := stmt.ExecContext(ctx, mediumID, name); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	return d.readBackNames(ctx, fmt.Sprintf(
		`SELECT %s, %s FROM %s WHERE medium_id = %d`, table.nameCol, table.idCol, table.name, mediumID))
}

func (d *DB) readBackNames(ctx context.Context, query string) (map[string]int64, error) {
	rows, err := d.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int64{}
	for rows.Next() {
		var name string
		var id int64
		if err := rows.Scan(&name, &id); err != nil {
			return nil, err
		}
		out[name] = id
	}
	return out, rows.Err()
}

type AgeRatingValue struct {
	Code        string
	Description string
}

// PrimeAgeRatings registers classification codes, overwriting the description
// for a code seen again with different text.
func (d *DB) PrimeAgeRatings(ctx context.Context, values []AgeRatingValue) (map[string]int64, error) {
	if len(values) > 0 {
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO age_rating (code, description) VALUES (?, ?)
ON CONFLICT(code) DO UPDATE SET description = excluded.description`)
		if err != nil {
			return nil, err
		}
		defer stmt.Close()
		for _, v := range values {
			if _, err := stmt.ExecContext(ctx, v.Code, v.Description); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	return d.readBackNames(ctx, `SELECT code, age_rating_id FROM age_rating`)
}

type AuthorValue struct {
	Family  string
	Given   string
	Display string
}

// PrimeAuthors registers contributing persons keyed by the (family, given)
// composite. The given part is stored as empty text rather than NULL so the
// uniqueness constraint holds across reruns.
func (d *DB) PrimeAuthors(ctx context.Context, values []AuthorValue) (map[internal.LookupKey]int64, error) {
	if len(values) > 0 {
		tx, err := d.conn.BeginTx(ctx, nil)
		if err != nil {
			return nil, err
		}
		defer func() { _ = tx.Rollback() }()

		stmt, err := tx.PrepareContext(ctx, `
INSERT OR IGNORE INTO author (first_name, last_name, display_name) VALUES (?, ?, ?)`)
		if err != nil {
			return nil, err
		}
		defer stmt.Close()
		for _, v := range values {
			if _, err := stmt.ExecContext(ctx, v.Given, v.Family, v.Display); err != nil {
				return nil, err
			}
		}
		if err := tx.Commit(); err != nil {
			return nil, err
		}
	}

	rows, err := d.conn.QueryContext(ctx, `SELECT first_name, last_name, author_id FROM author`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[internal.LookupKey]int64{}
	for rows.Next() {
		var given, family string
		var id int64
		if err := rows.Scan(&given, &family, &id); err != nil {
			return nil, err
		}
		out[internal.LookupKey{Value: family, Secondary: given}] = id
	}
	return out, rows.Err()
}

// UpsertEntry writes the entity row keyed on (mal_id, item_type_id) and reads
// the surrogate id back by the same composite key. Identifying fields are
// never overwritten on conflict.
func (d *DB) UpsertEntry(ctx context.Context, row internal.EntryRow) (int64, error) {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO entry (
  mal_id, link, title_name, score, description, background, item_type_id,
  scored_by, ranked, popularity, members, favorited
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(mal_id, item_type_id) DO UPDATE SET
  title_name=excluded.title_name,
  score=excluded.score,
  scored_by=excluded.scored_by,
  ranked=excluded.ranked,
  popularity=excluded.popularity,
  members=excluded.members,
  favorited=excluded.favorited
`, row.MalID, row.Link, row.Title, row.Score, row.Description, row.Background,
		row.ItemTypeID, row.ScoredBy, row.Ranked, row.Popularity, row.Members, row.Favorited)
	if err != nil {
		return 0, err
	}

	var id int64
	err = d.conn.QueryRowContext(ctx,
		`SELECT entry_id FROM entry WHERE mal_id = ? AND item_type_id = ?`,
		row.MalID, row.ItemTypeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("entry read-back miss: mal_id=%d item_type_id=%d", row.MalID, row.ItemTypeID)
	}
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (d *DB) UpsertAnimeDetails(ctx context.Context, row internal.AnimeDetailRow) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO anime_details (
  entry_id, duration_minutes, from_airing_date, to_airing_date, episodes,
  status_id, source_id, age_rating_id,
  premier_date_season, premier_date_year,
  broadcast_date_day, broadcast_date_time, broadcast_date_timezone
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(entry_id) DO UPDATE SET
  duration_minutes=excluded.duration_minutes,
  status_id=excluded.status_id,
  premier_date_season=excluded.premier_date_season,
  premier_date_year=excluded.premier_date_year,
  broadcast_date_day=excluded.broadcast_date_day,
  broadcast_date_time=excluded.broadcast_date_time,
  broadcast_date_timezone=excluded.broadcast_date_timezone
`, row.EntryID, row.DurationMin, row.FromAiring, row.ToAiring, row.Episodes,
		row.StatusID, row.SourceID, row.AgeRatingID,
		row.PremiereSeason, row.PremiereYear,
		row.BroadcastDay, row.BroadcastTime, row.BroadcastZone)
	return err
}

func (d *DB) UpsertMangaDetails(ctx context.Context, row internal.MangaDetailRow) error {
	_, err := d.conn.ExecContext(ctx, `
INSERT INTO manga_details (
  entry_id, from_publishing_date, to_publishing_date, volumes, chapters, status_id
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(entry_id) DO UPDATE SET
  from_publishing_date=excluded.from_publishing_date,
  status_id=excluded.status_id
`, row.EntryID, row.FromPublishing, row.ToPublishing, row.Volumes, row.Chapters, row.StatusID)
	return err
}

// InsertLinks writes one junction batch. Reapplying a link is a no-op.
func (d *DB) InsertLinks(ctx context.Context, junction internal.Junction, links []internal.Link) error {
	if len(links) == 0 {
		return nil
	}
	jt, ok := junctionTables[junction]
	if !ok {
		return fmt.Errorf("unknown junction: %s", junction)
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (entry_id, %s) VALUES (?, ?)`, jt.table, jt.fkCol))
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, link := range links {
		if _, err := stmt.ExecContext(ctx, link.EntryID, link.LookupID); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// UpsertTitles writes localized titles; a later text for the same
// (entry, language) pair replaces the earlier one.
func (d *DB) UpsertTitles(ctx context.Context, rows []internal.TitleRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO language_entry (entry_id, language_id, title_text) VALUES (?, ?, ?)
ON CONFLICT(entry_id, language_id) DO UPDATE SET title_text = excluded.title_text`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err := stmt.ExecContext(ctx, row.EntryID, row.LanguageID, row.Text); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *DB) InsertRun(ctx context.Context, traceID string, medium internal.Medium, counts map[string]int, timings map[string]float64) error {
	countsJSON, _ := json.Marshal(counts)
	timingsJSON, _ := json.Marshal(timings)
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO runs (trace_id, medium, counts_json, timings_json) VALUES (?, ?, ?, ?)`,
		traceID, string(medium), string(countsJSON), string(timingsJSON))
	return err
}

// CountRows returns the row count of one of the known tables.
func (d *DB) CountRows(ctx context.Context, table string) (int64, error) {
	if !knownTable(table) {
		return 0, fmt.Errorf("unknown table: %s", table)
	}
	var n int64
	err := d.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n)
	return n, err
}

// DumpTable reads a full table for the workbook export.
func (d *DB) DumpTable(ctx context.Context, table string) ([]string, [][]any, error) {
	if !knownTable(table) {
		return nil, nil, fmt.Errorf("unknown table: %s", table)
	}

	rows, err := d.conn.QueryContext(ctx, `SELECT * FROM `+table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, err
		}
		out = append(out, values)
	}
	return cols, out, rows.Err()
}

func knownTable(table string) bool {
	for _, t := range ExportTables() {
		if t == table {
			return true
		}
	}
	return false
}

func distinctSorted(names []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(names))
	for _, name := range names {
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
