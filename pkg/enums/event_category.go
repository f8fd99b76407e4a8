package enums

import "fmt"

// EventCategory classifies a listed event for browsing and filtering.
type EventCategory string

const (
	EventCategoryConcert    EventCategory = "concert"
	EventCategoryFestival   EventCategory = "festival"
	EventCategorySports     EventCategory = "sports"
	EventCategoryTheatre    EventCategory = "theatre"
	EventCategoryComedy     EventCategory = "comedy"
	EventCategoryConference EventCategory = "conference"
)

var validEventCategories = []EventCategory{
	EventCategoryConcert,
	EventCategoryFestival,
	EventCategorySports,
	EventCategoryTheatre,
	EventCategoryComedy,
	EventCategoryConference,
}

// String implements fmt.Stringer.
func (e EventCategory) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EventCategory.
func (e EventCategory) IsValid() bool {
	for _, candidate := range validEventCategories {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEventCategory converts raw input into an EventCategory.
func ParseEventCategory(value string) (EventCategory, error) {
	for _, candidate := range validEventCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event category %q", value)
}
