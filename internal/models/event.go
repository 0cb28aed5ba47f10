package models

import "time"

// EventStatus captures the lifecycle of a calendar slot.
type EventStatus string

const (
	EventStatusBusy        EventStatus = "BUSY"
	EventStatusSwappable   EventStatus = "SWAPPABLE"
	EventStatusSwapPending EventStatus = "SWAP_PENDING"
)

// EventAction is the audit tag recorded on the last swap transition that
// touched the slot.
type EventAction string

const (
	EventActionSwapAccepted  EventAction = "SWAP_ACCEPTED"
	EventActionSwapRejected  EventAction = "SWAP_REJECTED"
	EventActionSwapCancelled EventAction = "SWAP_CANCELLED"
)

// Event represents a calendar slot owned by a single user.
type Event struct {
	ID          string       `db:"id" json:"id"`
	OwnerID     string       `db:"owner_id" json:"owner_id"`
	Title       string       `db:"title" json:"title"`
	StartTime   time.Time    `db:"start_time" json:"start_time"`
	EndTime     time.Time    `db:"end_time" json:"end_time"`
	Status      EventStatus  `db:"status" json:"status"`
	LastAction  *EventAction `db:"last_action" json:"last_action,omitempty"`
	LastUpdated time.Time    `db:"last_updated" json:"last_updated"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
}

// SwappableSlot is an Event joined with its owner for marketplace listings.
type SwappableSlot struct {
	Event
	OwnerName  string `db:"owner_name" json:"owner_name"`
	OwnerEmail string `db:"owner_email" json:"owner_email"`
}
