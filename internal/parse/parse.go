// Package parse holds the field parsers for the raw catalog columns. All of
// them are total: malformed input degrades to nil/empty instead of failing the
// record. The fallback chains (full date, then month+year, then bare year) are
// deliberate policy inherited from the feed format, not incidental leniency.
package parse

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"mediadex/internal"
)

var (
	reHours     = regexp.MustCompile(`(\d+)\s*hr\.`)
	reMinutes   = regexp.MustCompile(`(\d+)\s*min\.`)
	reBroadcast = regexp.MustCompile(`^(\w+) at (\d{2}:\d{2}) \((.+)\)$`)
)

// Absent reports whether a raw value is one of the feed's "unknown" sentinels.
func Absent(raw string) bool {
	s := strings.TrimSpace(raw)
	return s == "" || s == "Unknown" || s == "?"
}

// dateLayouts are tried in order; the first match wins. Partial dates snap to
// the first day of the month or year.
var dateLayouts = []struct {
	layout string
	format func(time.Time) string
}{
	{"Jan 2, 2006", func(t time.Time) string { return t.Format("2006-01-02") }},
	{"Jan 2006", func(t time.Time) string { return t.Format("2006-01") + "-01" }},
	{"2006", func(t time.Time) string { return t.Format("2006") + "-01-01" }},
}

// DateRange parses "A" or "A to B" where each side is a loosely formatted
// date. A single-sided range leaves To nil.
func DateRange(raw string) internal.DateRange {
	if Absent(raw) {
		return internal.DateRange{}
	}
	parts := strings.SplitN(raw, " to ", 2)
	out := internal.DateRange{From: dateSide(parts[0])}
	if len(parts) > 1 {
		out.To = dateSide(parts[1])
	}
	return out
}

func dateSide(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || s == "?" {
		return nil
	}
	for _, candidate := range dateLayouts {
		if t, err := time.Parse(candidate.layout, s); err == nil {
			formatted := candidate.format(t)
			return &formatted
		}
	}
	return nil
}

// Duration extracts a total minute count from text like "1 hr. 30 min.".
// A computed total of zero is not a meaningful run length and yields nil.
func Duration(raw string) *int {
	if Absent(raw) {
		return nil
	}
	total := 0
	if m := reHours.FindStringSubmatch(raw); m != nil {
		hours, _ := strconv.Atoi(m[1])
		total += hours * 60
	}
	if m := reMinutes.FindStringSubmatch(raw); m != nil {
		minutes, _ := strconv.Atoi(m[1])
		total += minutes
	}
	if total <= 0 {
		return nil
	}
	return &total
}

// List parses a multi-value column: a bracketed, quoted, comma-separated
// literal list, or a bare string treated as a single element. A bracketed
// value that fails to parse yields nil.
func List(raw string) []string {
	s := strings.TrimSpace(raw)
	if Absent(s) {
		return nil
	}
	if strings.HasPrefix(s, "[") && strings.HasSuffix(s, "]") {
		items, ok := quotedList(s[1 : len(s)-1])
		if !ok {
			return nil
		}
		return items
	}
	return []string{s}
}

// quotedList scans a comma-separated sequence of single- or double-quoted
// strings, the way the feed serializes lists.
func quotedList(body string) ([]string, bool) {
	items := []string{}
	runes := []rune(body)
	i := 0
	for {
		for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t') {
			i++
		}
		if i >= len(runes) {
			return items, true
		}
		quote := runes[i]
		if quote != '\'' && quote != '"' {
			return nil, false
		}
		i++
		var b strings.Builder
		closed := false
		for i < len(runes) {
			r := runes[i]
			if r == '\\' && i+1 < len(runes) {
				b.WriteRune(runes[i+1])
				i += 2
				continue
			}
			if r == quote {
				closed = true
				i++
				break
			}
			b.WriteRune(r)
			i++
		}
		if !closed {
			return nil, false
		}
		items = append(items, b.String())
		for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t') {
			i++
		}
		if i >= len(runes) {
			return items, true
		}
		if runes[i] != ',' {
			return nil, false
		}
		i++
	}
}

// PremiereSeason parses "<season> <year>", e.g. "Fall 2023". Any other shape
// yields an empty Premiere.
func PremiereSeason(raw string) internal.Premiere {
	if Absent(raw) {
		return internal.Premiere{}
	}
	fields := strings.Fields(raw)
	if len(fields) != 2 {
		return internal.Premiere{}
	}
	year, err := strconv.Atoi(fields[1])
	if err != nil {
		return internal.Premiere{}
	}
	season := fields[0]
	return internal.Premiere{Season: &season, Year: &year}
}

// BroadcastSlot parses "<Day> at <HH:MM> (<Timezone>)".
func BroadcastSlot(raw string) internal.Broadcast {
	if Absent(raw) {
		return internal.Broadcast{}
	}
	m := reBroadcast.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return internal.Broadcast{}
	}
	return internal.Broadcast{Day: &m[1], Time: &m[2], Zone: &m[3]}
}

// RatingCode derives the short classification code: the substring before the
// first " - " separator, capped at 10 characters. The full text is kept as
// the description.
func RatingCode(raw string) string {
	code := strings.TrimSpace(strings.SplitN(raw, " - ", 2)[0])
	runes := []rune(code)
	if len(runes) > 10 {
		return string(runes[:10])
	}
	return code
}

// Person splits a "Family, Given" formatted name on the first comma. Without
// a comma the whole value is the family name and Given stays nil.
func Person(raw string) internal.PersonName {
	parts := strings.SplitN(raw, ",", 2)
	if len(parts) == 2 {
		given := strings.TrimSpace(parts[1])
		return internal.PersonName{Family: strings.TrimSpace(parts[0]), Given: &given}
	}
	return internal.PersonName{Family: strings.TrimSpace(raw)}
}

// CommaList splits a free-text field on literal commas, trimming and dropping
// empties. Used for the alternate-title column, which is not bracketed.
func CommaList(raw string) []string {
	if Absent(raw) {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Count parses an all-digit count column (episodes, volumes, chapters).
// Anything else, including negatives and decorated numbers, yields nil.
func Count(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return nil
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &n
}

// Int64 and Float64 parse the numeric metric columns leniently.
func Int64(raw string) *int64 {
	s := strings.TrimSpace(raw)
	if Absent(s) {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Metric columns sometimes carry a float rendering of a whole number.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return nil
		}
		n = int64(f)
	}
	return &n
}

func Float64(raw string) *float64 {
	s := strings.TrimSpace(raw)
	if Absent(s) {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}
