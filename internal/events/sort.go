package events

import (
	"slices"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// titleLanguage drives the collation used for title ordering
var titleLanguage = language.English

// Sort returns a new slice holding events ordered by option. The input slice
// is left untouched. Unknown options return the events in input order.
//
// Title ordering is locale-aware and stable. Events whose date (or createdAt)
// cannot be parsed are placed after all parseable ones in both directions,
// keeping their input order.
func Sort(events []Event, option SortOption) []Event {
	sorted := slices.Clone(events)
	if sorted == nil {
		sorted = []Event{}
	}

	switch option {
	case SortTitleAsc, SortTitleDesc:
		sortByTitle(sorted, option == SortTitleDesc)
	case SortDateAsc, SortDateDesc:
		sortByTime(sorted, func(e Event) string { return e.Date }, option == SortDateDesc)
	case SortCreatedAsc, SortCreatedDesc:
		sortByTime(sorted, func(e Event) string { return e.CreatedAt }, option == SortCreatedDesc)
	}
	return sorted
}

func sortByTitle(events []Event, desc bool) {
	// Collators keep internal buffers and are not safe for concurrent use.
	c := collate.New(titleLanguage)
	slices.SortStableFunc(events, func(a, b Event) int {
		if desc {
			return c.CompareString(b.Title, a.Title)
		}
		return c.CompareString(a.Title, b.Title)
	})
}

type timedEvent struct {
	event Event
	at    time.Time
	valid bool
}

func sortByTime(events []Event, field func(Event) string, desc bool) {
	keyed := make([]timedEvent, len(events))
	for i, e := range events {
		at, ok := ParseTimestamp(field(e))
		keyed[i] = timedEvent{event: e, at: at, valid: ok}
	}

	slices.SortStableFunc(keyed, func(a, b timedEvent) int {
		switch {
		case !a.valid && !b.valid:
			return 0
		case !a.valid:
			return 1
		case !b.valid:
			return -1
		}
		if desc {
			return b.at.Compare(a.at)
		}
		return a.at.Compare(b.at)
	})

	for i := range keyed {
		events[i] = keyed[i].event
	}
}
