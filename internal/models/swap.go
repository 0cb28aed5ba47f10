package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SwapStatus captures the swap request lifecycle. PENDING transitions exactly
// once to one of the terminal states; records are never deleted.
type SwapStatus string

const (
	SwapStatusPending   SwapStatus = "PENDING"
	SwapStatusAccepted  SwapStatus = "ACCEPTED"
	SwapStatusRejected  SwapStatus = "REJECTED"
	SwapStatusCancelled SwapStatus = "CANCELLED"
)

// Terminal reports whether no further transition may leave the status.
func (s SwapStatus) Terminal() bool {
	switch s {
	case SwapStatusAccepted, SwapStatusRejected, SwapStatusCancelled:
		return true
	}
	return false
}

// TimeWindow is a start/end pair.
type TimeWindow struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// OriginalTimes snapshots both slots' schedules at acceptance for audit.
// Stored as a JSONB column.
type OriginalTimes struct {
	Requester TimeWindow `json:"requester"`
	Requested TimeWindow `json:"requested"`
}

// Value implements driver.Valuer.
func (o OriginalTimes) Value() (driver.Value, error) {
	return json.Marshal(o)
}

// Scan implements sql.Scanner.
func (o *OriginalTimes) Scan(src interface{}) error {
	if src == nil {
		*o = OriginalTimes{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, o)
	case string:
		return json.Unmarshal([]byte(v), o)
	default:
		return fmt.Errorf("unsupported original_times type %T", src)
	}
}

// SwapRequest is the authoritative ledger record of a swap lifecycle.
type SwapRequest struct {
	ID              string         `db:"id" json:"id"`
	RequesterSlotID string         `db:"requester_slot_id" json:"requester_slot_id"`
	RequestedSlotID string         `db:"requested_slot_id" json:"requested_slot_id"`
	RequesterUserID string         `db:"requester_user_id" json:"requester_user_id"`
	RequestedUserID string         `db:"requested_user_id" json:"requested_user_id"`
	Status          SwapStatus     `db:"status" json:"status"`
	RequestMessage  string         `db:"request_message" json:"request_message,omitempty"`
	ResponseMessage *string        `db:"response_message" json:"response_message,omitempty"`
	OriginalTimes   *OriginalTimes `db:"original_times" json:"original_times,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	RespondedAt     *time.Time     `db:"responded_at" json:"responded_at,omitempty"`
	CompletedAt     *time.Time     `db:"completed_at" json:"completed_at,omitempty"`
	CancelledAt     *time.Time     `db:"cancelled_at" json:"cancelled_at,omitempty"`
}

// SwapHistoryFilter narrows the history listing.
type SwapHistoryFilter struct {
	UserID   string
	Status   SwapStatus
	Page     int
	PageSize int
}

// SwapSummary holds per-status counts over a user's full history scope.
type SwapSummary struct {
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Rejected int `json:"rejected"`
}

// SwapInbox partitions a user's swap requests by direction.
type SwapInbox struct {
	Incoming []SwapRequest `json:"incoming"`
	Outgoing []SwapRequest `json:"outgoing"`
}
