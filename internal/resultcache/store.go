// Package resultcache keeps the last completed result for each result
// category, plus a per-category "already searched" flag scoped to the
// currently active filter set.
package resultcache

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"omnisearch/backend/internal/search"
)

// Entry is the cached state for one category. The zero value is the
// documented empty entry for categories that were never searched.
type Entry struct {
	Result   search.NormalizedResult `json:"result"`
	Searched bool                    `json:"searched"`
}

// Store holds one session's per-category cache. All mutation goes through
// Set/MarkSearched/SetFilters/ResetFilters under a single mutex, so a reader
// that observes Searched==true with unchanged filters is guaranteed a result
// produced under the currently active filters.
type Store struct {
	mu      sync.RWMutex
	entries map[search.Category]Entry
	filters search.FilterSet

	flight singleflight.Group
}

func NewStore() *Store {
	return &Store{
		entries: make(map[search.Category]Entry, len(search.Categories())),
		filters: search.DefaultFilterSet(),
	}
}

// Get returns the entry for a category, the empty entry if never populated.
func (s *Store) Get(category search.Category) Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.entries[category]
}

// Set overwrites the result for one category without touching its searched
// flag or any other category.
func (s *Store) Set(category search.Category, result search.NormalizedResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[category]
	entry.Result = result
	s.entries[category] = entry
}

// MarkSearched flips the attempted flag independently of Set, so a failed
// search can still be marked attempted and a manual retry can clear it.
func (s *Store) MarkSearched(category search.Category, searched bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry := s.entries[category]
	entry.Searched = searched
	s.entries[category] = entry
}

// Filters returns a copy of the active filter set.
func (s *Store) Filters() search.FilterSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filters.Clone()
}

// SetFilters merges a partial update into the active filter set and, in the
// same critical section, clears every category's searched flag. Results are
// left in place until overwritten but are no longer authoritative for the
// new filters.
func (s *Store) SetFilters(patch search.FilterPatch) search.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = s.filters.Merge(patch)
	s.clearSearchedLocked()
	return s.filters.Clone()
}

// ResetFilters restores the documented defaults and clears every searched
// flag, same as any other filter change.
func (s *Store) ResetFilters() search.FilterSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.filters = search.DefaultFilterSet()
	s.clearSearchedLocked()
	return s.filters.Clone()
}

func (s *Store) clearSearchedLocked() {
	for category, entry := range s.entries {
		entry.Searched = false
		s.entries[category] = entry
	}
}

// Search runs one cascade for a category with in-flight deduplication: a
// second caller for the same category awaits the first call's outcome
// instead of re-issuing the cascade. A completed result (including terminal
// limit/auth states) is written into the cache; a failed cascade still marks
// the category attempted so re-renders do not re-query.
func (s *Store) Search(
	ctx context.Context,
	category search.Category,
	run func(context.Context) (search.NormalizedResult, error),
) (search.NormalizedResult, error) {
	value, err, _ := s.flight.Do(string(category), func() (any, error) {
		result, err := run(ctx)
		if err != nil {
			s.MarkSearched(category, true)
			return nil, err
		}
		s.Set(category, result)
		s.MarkSearched(category, true)
		return result, nil
	})
	if err != nil {
		return search.NormalizedResult{}, err
	}
	return value.(search.NormalizedResult), nil
}
