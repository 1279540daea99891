package workflow

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/ipcollateral/lending-services/models/lending"
)

// VerificationEvent is the message published on the verification
// topics. Result is set only on verification_completed.
type VerificationEvent struct {
	EventID     string                       `json:"event_id"`
	Request     *lending.VerificationRequest `json:"request"`
	Result      *lending.VerificationResult  `json:"result,omitempty"`
	PublishedAt time.Time                    `json:"published_at"`
}

// NewVerificationEvent returns an event with a fresh id.
func NewVerificationEvent(req *lending.VerificationRequest, result *lending.VerificationResult, now time.Time) *VerificationEvent {
	return &VerificationEvent{
		EventID:     uuid.New().String(),
		Request:     req,
		Result:      result,
		PublishedAt: now,
	}
}

// VerificationEventFromJSON decodes a queue message. Messages without
// a request id are rejected.
func VerificationEventFromJSON(jsonData []byte) (*VerificationEvent, error) {
	event := &VerificationEvent{}
	err := json.Unmarshal(jsonData, event)
	if err != nil {
		return nil, err
	}
	if event.Request == nil || event.Request.ID == "" {
		return nil, ErrMissingRequest
	}
	return event, nil
}
