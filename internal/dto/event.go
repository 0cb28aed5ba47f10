package dto

import "time"

// CreateEventRequest is the payload for creating a calendar slot.
type CreateEventRequest struct {
	Title     string     `json:"title" validate:"required,min=1,max=200"`
	StartTime time.Time  `json:"start_time" validate:"required"`
	EndTime   time.Time  `json:"end_time" validate:"required,gtfield=StartTime"`
	Status    string     `json:"status" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}

// UpdateEventRequest carries partial updates; nil fields are left untouched.
type UpdateEventRequest struct {
	Title     *string    `json:"title" validate:"omitempty,min=1,max=200"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	Status    *string    `json:"status" validate:"omitempty,oneof=BUSY SWAPPABLE"`
}
