package events

import (
	"slices"
	"sync"
)

// State is an immutable snapshot of the catalog view: the cached event
// collection, the current filter and sort settings, and the derived visible
// collection. Advance it with Reduce; never modify its slices in place.
type State struct {
	Events     []Event    `json:"-"`
	SearchTerm string     `json:"searchTerm"`
	Category   Category   `json:"category"`
	Sort       SortOption `json:"sort"`
	Visible    []Event    `json:"events"`
}

// NewState returns the default view (no search, all categories, date-asc)
// over a copy of events.
func NewState(events []Event) State {
	return recompute(State{
		Events:   cloneEvents(events),
		Category: CategoryAll,
		Sort:     DefaultSort,
	})
}

// Action describes one change to a State
type Action interface {
	apply(State) State
}

// SetSearchTerm replaces the free-text search term
type SetSearchTerm string

// SetCategoryFilter replaces the category selector
type SetCategoryFilter Category

// SetSortOption replaces the sort option
type SetSortOption SortOption

// ReplaceEvents swaps in a fresh event collection, e.g. after a storage refresh
type ReplaceEvents []Event

func (a SetSearchTerm) apply(s State) State {
	s.SearchTerm = string(a)
	return s
}

func (a SetCategoryFilter) apply(s State) State {
	s.Category = Category(a)
	return s
}

func (a SetSortOption) apply(s State) State {
	s.Sort = SortOption(a)
	return s
}

func (a ReplaceEvents) apply(s State) State {
	s.Events = cloneEvents(a)
	return s
}

// Reduce applies the actions to s in order and recomputes the visible
// collection. s itself is not modified.
func Reduce(s State, actions ...Action) State {
	for _, a := range actions {
		if a == nil {
			continue
		}
		s = a.apply(s)
	}
	return recompute(s)
}

func recompute(s State) State {
	s.Visible = Sort(Filter(s.Events, s.SearchTerm, s.Category), s.Sort)
	return s
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return []Event{}
	}
	return slices.Clone(events)
}

// Store holds the current State for callers that share one view, such as
// the catalog cache. It is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	state State
}

// NewStore creates a store with the default view over events
func NewStore(events []Event) *Store {
	return &Store{state: NewState(events)}
}

// Dispatch reduces the stored state with actions and returns the new state
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = Reduce(s.state, actions...)
	return s.state
}

// State returns the current snapshot
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetSearchTerm updates the search term
func (s *Store) SetSearchTerm(term string) {
	s.Dispatch(SetSearchTerm(term))
}

// SetSortOption updates the sort option
func (s *Store) SetSortOption(option SortOption) {
	s.Dispatch(SetSortOption(option))
}

// SetCategoryFilter updates the category selector
func (s *Store) SetCategoryFilter(category Category) {
	s.Dispatch(SetCategoryFilter(category))
}

// Replace swaps in a full replacement event collection
func (s *Store) Replace(events []Event) {
	s.Dispatch(ReplaceEvents(events))
}

// Events returns the cached (unfiltered) collection
func (s *Store) Events() []Event {
	return slices.Clone(s.State().Events)
}

// Visible returns the current filtered and sorted collection
func (s *Store) Visible() []Event {
	return slices.Clone(s.State().Visible)
}
