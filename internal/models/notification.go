package models

import "time"

// NotificationType enumerates the reasons a notification is created.
type NotificationType string

const (
	NotificationSwapRequest   NotificationType = "SWAP_REQUEST"
	NotificationSwapAccepted  NotificationType = "SWAP_ACCEPTED"
	NotificationSwapRejected  NotificationType = "SWAP_REJECTED"
	NotificationSwapCancelled NotificationType = "SWAP_CANCELLED"
	NotificationSwapCompleted NotificationType = "SWAP_COMPLETED"
	NotificationSystem        NotificationType = "SYSTEM"
)

// RelatedKind discriminates what record a notification points at.
type RelatedKind string

const (
	RelatedSwapRequest RelatedKind = "SWAP_REQUEST"
	RelatedEvent       RelatedKind = "EVENT"
)

// RelatedRef is a tagged reference to the record that triggered the
// notification.
type RelatedRef struct {
	Kind RelatedKind `db:"related_kind" json:"kind"`
	ID   string      `db:"related_id" json:"id"`
}

// Notification is a per-user message created by swap transitions. RelatedRef
// is embedded without a db tag so its columns map flat while the JSON body
// keeps the tagged reference nested.
type Notification struct {
	ID             string           `db:"id" json:"id"`
	UserID         string           `db:"user_id" json:"user_id"`
	Type           NotificationType `db:"type" json:"type"`
	Title          string           `db:"title" json:"title"`
	Message        string           `db:"message" json:"message"`
	RelatedRef     `json:"related"`
	ActionRequired bool      `db:"action_required" json:"action_required"`
	Read           bool      `db:"read" json:"read"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
