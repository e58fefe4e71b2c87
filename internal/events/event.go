// Package events holds the event catalog model and the filter/sort pipeline
// that turns a raw collection into what visitors and administrators see.
package events

// Event represents a single calendar entry
type Event struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Date        string   `json:"date"`
	Location    string   `json:"location"`
	Category    Category `json:"category"`
	CreatedAt   string   `json:"createdAt"`
}

// Category classifies an event's type
type Category string

const (
	CategoryConference Category = "conference"
	CategoryWorkshop   Category = "workshop"
	CategoryMeetup     Category = "meetup"
	CategoryExhibition Category = "exhibition"
	CategoryOther      Category = "other"

	// CategoryAll is the filter selector matching every category.
	CategoryAll Category = "all"
)

// Categories lists the fixed category enumeration in display order
var Categories = []Category{
	CategoryConference,
	CategoryWorkshop,
	CategoryMeetup,
	CategoryExhibition,
	CategoryOther,
}

// CategoryLabels maps categories to their display names
var CategoryLabels = map[Category]string{
	CategoryConference: "Conference",
	CategoryWorkshop:   "Workshop",
	CategoryMeetup:     "Meetup",
	CategoryExhibition: "Exhibition",
	CategoryOther:      "Other",
}

// Valid reports whether c is one of the fixed categories. CategoryAll is not
// a category of its own and is therefore not valid here.
func (c Category) Valid() bool {
	_, ok := CategoryLabels[c]
	return ok
}

// ValidFilter reports whether c can be used as a category selector.
func (c Category) ValidFilter() bool {
	return c == CategoryAll || c.Valid()
}

// SortOption selects the field and direction used by Sort
type SortOption string

const (
	SortTitleAsc    SortOption = "title-asc"
	SortTitleDesc   SortOption = "title-desc"
	SortDateAsc     SortOption = "date-asc"
	SortDateDesc    SortOption = "date-desc"
	SortCreatedAsc  SortOption = "created-asc"
	SortCreatedDesc SortOption = "created-desc"

	DefaultSort = SortDateAsc
)

// SortOptions lists every supported sort option in display order
var SortOptions = []SortOption{
	SortTitleAsc,
	SortTitleDesc,
	SortDateAsc,
	SortDateDesc,
	SortCreatedAsc,
	SortCreatedDesc,
}

// SortLabels maps sort options to their display names
var SortLabels = map[SortOption]string{
	SortTitleAsc:    "Title (A-Z)",
	SortTitleDesc:   "Title (Z-A)",
	SortDateAsc:     "Date (Earliest)",
	SortDateDesc:    "Date (Latest)",
	SortCreatedAsc:  "Created (Oldest)",
	SortCreatedDesc: "Created (Newest)",
}

// Valid reports whether o is a supported sort option
func (o SortOption) Valid() bool {
	_, ok := SortLabels[o]
	return ok
}
