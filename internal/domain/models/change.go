package models

import (
	"time"

	"github.com/klabast/wb-services/calendar42/internal/events"
)

const (
	ChangeEventCreated = "event.created"
	ChangeEventUpdated = "event.updated"
	ChangeEventDeleted = "event.deleted"
)

// Change describes a catalog mutation as published to the change topic.
// Event is empty for deletions.
type Change struct {
	ID         string        `json:"id"`
	Type       string        `json:"type"`
	EventID    string        `json:"eventId"`
	Event      *events.Event `json:"event,omitempty"`
	OccurredAt time.Time     `json:"occurredAt"`
}
