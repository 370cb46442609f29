// Package registry owns surrogate-key assignment for lookup values. The
// contract is register-or-fetch: within one run the same natural key in a
// category always resolves to the same id, distinct keys to distinct ids.
// Two implementations exist — the in-memory one here (file sink, sequential
// minting in first-seen order) and the store-backed one in internal/storage
// (insert-if-absent plus read-back). Their absolute id values may differ but
// the resulting graphs must be isomorphic.
package registry

import (
	"context"
	"strings"

	"mediadex/internal"
	"mediadex/internal/parse"
)

// Value is one natural lookup value to register. Display carries the raw
// spelling where the row keeps more than the key: the full classification
// text for age ratings, the original name string for persons.
type Value struct {
	Key     internal.LookupKey
	Display string
}

type Registry interface {
	// Prime registers the given values for a category, assigning ids to keys
	// not seen before. Re-priming a known key is a no-op.
	Prime(ctx context.Context, cat internal.Category, values []Value) error

	// Resolve returns the id assigned to a primed key. It never creates.
	Resolve(cat internal.Category, key internal.LookupKey) (int64, bool)
}

// StringKey builds the key for plain string-valued categories. Equality is on
// the trimmed value.
func StringKey(raw string) internal.LookupKey {
	return internal.LookupKey{Value: strings.TrimSpace(raw)}
}

// ScopedKey builds the key for medium-partitioned categories (item types,
// statuses), which form a namespace per family rather than a flat one.
func ScopedKey(medium internal.Medium, raw string) internal.LookupKey {
	return internal.LookupKey{Scope: string(medium), Value: strings.TrimSpace(raw)}
}

// PersonKey builds the composite key for contributing persons. Two raw
// spellings that differ only in whitespace around the comma collapse to the
// same key.
func PersonKey(raw string) internal.LookupKey {
	name := parse.Person(raw)
	key := internal.LookupKey{Value: name.Family}
	if name.Given != nil {
		key.Secondary = *name.Given
	}
	return key
}

// RatingKey keys age classifications by their derived short code.
func RatingKey(raw string) internal.LookupKey {
	return internal.LookupKey{Value: parse.RatingCode(raw)}
}

// Row is a buffered lookup row in the in-memory registry, in id order.
type Row struct {
	ID      int64
	Key     internal.LookupKey
	Display string
}

// Memory is the file-sink registry: one counter per category, ids minted in
// first-seen order, rows buffered for the end-of-run flush. It is explicit
// per-run state, not process-global.
type Memory struct {
	ids  map[internal.Category]map[internal.LookupKey]int64
	rows map[internal.Category][]Row
}

func NewMemory() *Memory {
	return &Memory{
		ids:  map[internal.Category]map[internal.LookupKey]int64{},
		rows: map[internal.Category][]Row{},
	}
}

func (m *Memory) Prime(_ context.Context, cat internal.Category, values []Value) error {
	byKey := m.ids[cat]
	if byKey == nil {
		byKey = map[internal.LookupKey]int64{}
		m.ids[cat] = byKey
	}
	for _, v := range values {
		if v.Key.Value == "" {
			continue
		}
		if _, ok := byKey[v.Key]; ok {
			continue
		}
		id := int64(len(byKey) + 1)
		byKey[v.Key] = id
		m.rows[cat] = append(m.rows[cat], Row{ID: id, Key: v.Key, Display: v.Display})
	}
	return nil
}

func (m *Memory) Resolve(cat internal.Category, key internal.LookupKey) (int64, bool) {
	id, ok := m.ids[cat][key]
	return id, ok
}

// Rows returns the buffered lookup rows for a category in id order.
func (m *Memory) Rows(cat internal.Category) []Row {
	return m.rows[cat]
}
