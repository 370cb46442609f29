package storage

import (
	"context"

	"mediadex/internal"
	"mediadex/internal/registry"
)

// Registry is the live-store implementation of the lookup contract: Prime
// bulk-registers distinct values with insert-if-absent semantics and reads the
// category table back into a natural-key map. Ids therefore follow the store's
// auto-increment, not traversal order, but the key-to-value graph matches the
// in-memory variant.
type Registry struct {
	db      *DB
	ids     map[internal.Category]map[internal.LookupKey]int64
	mediums map[string]int64
}

func NewRegistry(db *DB) *Registry {
	return &Registry{
		db:      db,
		ids:     map[internal.Category]map[internal.LookupKey]int64{},
		mediums: map[string]int64{},
	}
}

func (r *Registry) Prime(ctx context.Context, cat internal.Category, values []registry.Value) error {
	switch cat {
	case internal.CatAgeRating:
		return r.primeAgeRatings(ctx, values)
	case internal.CatAuthor:
		return r.primeAuthors(ctx, values)
	case internal.CatStatus, internal.CatItemType:
		return r.primeScoped(ctx, cat, values)
	default:
		return r.primeFlat(ctx, cat, values)
	}
}

func (r *Registry) Resolve(cat internal.Category, key internal.LookupKey) (int64, bool) {
	id, ok := r.ids[cat][key]
	return id, ok
}

func (r *Registry) primeFlat(ctx context.Context, cat internal.Category, values []registry.Value) error {
	names := make([]string, 0, len(values))
	for _, v := range values {
		if v.Key.Value != "" {
			names = append(names, v.Key.Value)
		}
	}
	byName, err := r.db.PrimeNames(ctx, cat, names)
	if err != nil {
		return err
	}
	byKey := r.bucket(cat)
	for name, id := range byName {
		byKey[internal.LookupKey{Value: name}] = id
	}
	return nil
}

func (r *Registry) primeScoped(ctx context.Context, cat internal.Category, values []registry.Value) error {
	byScope := map[string][]string{}
	for _, v := range values {
		if v.Key.Value != "" {
			byScope[v.Key.Scope] = append(byScope[v.Key.Scope], v.Key.Value)
		}
	}

	byKey := r.bucket(cat)
	for scope, names := range byScope {
		mediumID, err := r.mediumID(ctx, scope)
		if err != nil {
			return err
		}
		byName, err := r.db.PrimeScopedNames(ctx, cat, mediumID, names)
		if err != nil {
			return err
		}
		for name, id := range byName {
			byKey[internal.LookupKey{Scope: scope, Value: name}] = id
		}
	}
	return nil
}

func (r *Registry) primeAgeRatings(ctx context.Context, values []registry.Value) error {
	ratings := make([]AgeRatingValue, 0, len(values))
	for _, v := range values {
		if v.Key.Value != "" {
			ratings = append(ratings, AgeRatingValue{Code: v.Key.Value, Description: v.Display})
		}
	}
	byCode, err := r.db.PrimeAgeRatings(ctx, ratings)
	if err != nil {
		return err
	}
	byKey := r.bucket(internal.CatAgeRating)
	for code, id := range byCode {
		byKey[internal.LookupKey{Value: code}] = id
	}
	return nil
}

func (r *Registry) primeAuthors(ctx context.Context, values []registry.Value) error {
	authors := make([]AuthorValue, 0, len(values))
	for _, v := range values {
		if v.Key.Value != "" {
			authors = append(authors, AuthorValue{Family: v.Key.Value, Given: v.Key.Secondary, Display: v.Display})
		}
	}
	byKey, err := r.db.PrimeAuthors(ctx, authors)
	if err != nil {
		return err
	}
	bucket := r.bucket(internal.CatAuthor)
	for key, id := range byKey {
		bucket[key] = id
	}
	return nil
}

func (r *Registry) mediumID(ctx context.Context, name string) (int64, error) {
	if id, ok := r.mediums[name]; ok {
		return id, nil
	}
	id, err := r.db.ResolveMedium(ctx, name)
	if err != nil {
		return 0, err
	}
	r.mediums[name] = id
	return id, nil
}

func (r *Registry) bucket(cat internal.Category) map[internal.LookupKey]int64 {
	byKey := r.ids[cat]
	if byKey == nil {
		byKey = map[internal.LookupKey]int64{}
		r.ids[cat] = byKey
	}
	return byKey
}
