package events

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSort(t *testing.T) {
	tests := []struct {
		option SortOption
		want   []string
	}{
		{option: SortTitleAsc, want: []string{"4", "1", "3", "5", "2"}},
		{option: SortTitleDesc, want: []string{"2", "5", "3", "1", "4"}},
		{option: SortDateAsc, want: []string{"3", "2", "1", "4", "5"}},
		{option: SortDateDesc, want: []string{"4", "1", "2", "3", "5"}},
		{option: SortCreatedAsc, want: []string{"2", "5", "4", "1", "3"}},
		{option: SortCreatedDesc, want: []string{"3", "1", "4", "5", "2"}},
		{option: SortOption("popularity"), want: []string{"1", "2", "3", "4", "5"}},
		{option: SortOption(""), want: []string{"1", "2", "3", "4", "5"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.option), func(t *testing.T) {
			got := Sort(sampleEvents(), tt.option)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestSort_DoesNotModifyInput(t *testing.T) {
	events := sampleEvents()
	for _, option := range SortOptions {
		_ = Sort(events, option)
		assert.Equal(t, sampleEvents(), events, "input modified by %s", option)
	}
}

func TestSort_PreservesMembership(t *testing.T) {
	events := sampleEvents()
	want := ids(events)
	slices.Sort(want)

	for _, option := range SortOptions {
		got := ids(Sort(events, option))
		slices.Sort(got)
		assert.Equal(t, want, got, "membership changed by %s", option)
	}
}

func TestSort_Idempotent(t *testing.T) {
	events := sampleEvents()
	for _, option := range SortOptions {
		once := Sort(events, option)
		twice := Sort(once, option)
		assert.Equal(t, ids(once), ids(twice), "re-sorting by %s changed order", option)
	}
}

func TestSort_TitleDirectionsAreReverses(t *testing.T) {
	asc := ids(Sort(sampleEvents(), SortTitleAsc))
	desc := ids(Sort(sampleEvents(), SortTitleDesc))
	slices.Reverse(asc)
	assert.Equal(t, desc, asc)
}

func TestSort_TitleStableForEqualTitles(t *testing.T) {
	events := []Event{
		{ID: "1", Title: "Same"},
		{ID: "2", Title: "Other"},
		{ID: "3", Title: "Same"},
	}

	assert.Equal(t, []string{"2", "1", "3"}, ids(Sort(events, SortTitleAsc)))
	assert.Equal(t, []string{"1", "3", "2"}, ids(Sort(events, SortTitleDesc)))
}

func TestSort_TitleIsLocaleAware(t *testing.T) {
	events := []Event{
		{ID: "z", Title: "Zebra"},
		{ID: "e", Title: "Éclair"},
		{ID: "a", Title: "apple"},
	}

	// Byte order would put "Zebra" before "apple" and "Éclair" last.
	assert.Equal(t, []string{"a", "e", "z"}, ids(Sort(events, SortTitleAsc)))
}

func TestSort_InvalidTimestampsSortLast(t *testing.T) {
	events := []Event{
		{ID: "bad1", Date: "tomorrow"},
		{ID: "late", Date: "2025-06-01T00:00:00Z"},
		{ID: "empty", Date: ""},
		{ID: "early", Date: "2025-01-01"},
	}

	assert.Equal(t, []string{"early", "late", "bad1", "empty"}, ids(Sort(events, SortDateAsc)))
	assert.Equal(t, []string{"late", "early", "bad1", "empty"}, ids(Sort(events, SortDateDesc)))
}

func TestSort_MixedTimestampFormats(t *testing.T) {
	events := []Event{
		{ID: "offset", Date: "2025-01-01T12:00:00+02:00"},
		{ID: "local", Date: "2025-01-01T11:00:00"},
		{ID: "utc", Date: "2025-01-01T09:30:00Z"},
	}

	// 12:00+02:00 is 10:00 UTC; zone-less values are read as UTC.
	assert.Equal(t, []string{"utc", "offset", "local"}, ids(Sort(events, SortDateAsc)))
}

func TestSort_Scenario(t *testing.T) {
	events := []Event{
		{ID: "b", Title: "Beta", Category: CategoryWorkshop},
		{ID: "a", Title: "Alpha", Category: CategoryConference},
	}

	got := Sort(events, SortTitleAsc)
	assert.Equal(t, "Alpha", got[0].Title)
	assert.Equal(t, "Beta", got[1].Title)
}

func TestSort_Empty(t *testing.T) {
	assert.Empty(t, Sort(nil, SortTitleAsc))
	assert.NotNil(t, Sort(nil, SortDateAsc))
}
