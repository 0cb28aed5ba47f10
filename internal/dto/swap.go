package dto

// CreateSwapRequest asks to exchange the caller's slot with another user's.
type CreateSwapRequest struct {
	MySlotID    string `json:"my_slot_id" validate:"required,uuid4"`
	TheirSlotID string `json:"their_slot_id" validate:"required,uuid4"`
	Message     string `json:"message" validate:"max=500"`
}

// RespondSwapRequest accepts or rejects a pending swap request.
type RespondSwapRequest struct {
	Accept          bool   `json:"accept"`
	ResponseMessage string `json:"response_message" validate:"max=500"`
}

// SwapHistoryQuery narrows the history listing.
type SwapHistoryQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING ACCEPTED REJECTED CANCELLED"`
	Page   int    `form:"page" validate:"omitempty,min=1"`
	Limit  int    `form:"limit" validate:"omitempty,min=1,max=100"`
}
