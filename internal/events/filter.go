package events

import "strings"

// Filter returns the events matching the search term and category selector.
// The search term matches case-insensitively against title, description and
// location; an empty term matches everything. Input order is preserved and
// the input slice is never modified.
func Filter(events []Event, search string, category Category) []Event {
	term := strings.ToLower(search)

	filtered := make([]Event, 0, len(events))
	for _, e := range events {
		if category != CategoryAll && e.Category != category {
			continue
		}
		if !matchesSearch(e, term) {
			continue
		}
		filtered = append(filtered, e)
	}
	return filtered
}

// matchesSearch expects term to be lower-cased already
func matchesSearch(e Event, term string) bool {
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Title), term) ||
		strings.Contains(strings.ToLower(e.Description), term) ||
		strings.Contains(strings.ToLower(e.Location), term)
}
