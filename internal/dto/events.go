package dto

import "time"

const (
	EventCardIssued        = "card.issued"
	EventCardReissued      = "card.reissued"
	EventCardStatusChanged = "card.status_changed"
	EventCardAnchored      = "card.anchored"
	EventCardVerified      = "card.verified"
)

// CardEvent is published to the event broker. It never carries student
// PII; consumers join on ids.
type CardEvent struct {
	Type          string    `json:"type"`
	CardID        string    `json:"card_id,omitempty"`
	StudentID     string    `json:"student_id,omitempty"`
	InstitutionID string    `json:"institution_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	TokenVersion  int       `json:"token_version,omitempty"`
	Result        string    `json:"result,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	ActorID       uint      `json:"actor_id,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}
