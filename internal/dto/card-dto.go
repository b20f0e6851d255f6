package dto

import "time"

type MintTokenRequest struct {
	CardID string `json:"card_id"`
}

type MintTokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

type IssueCardRequest struct {
	StudentID string `json:"student_id" validate:"required,uuid"`
}

type CardResponse struct {
	ID             string    `json:"id"`
	StudentID      string    `json:"student_id"`
	InstitutionID  string    `json:"institution_id"`
	CardNumber     string    `json:"card_number"`
	Status         string    `json:"status"`
	TokenVersion   int       `json:"token_version"`
	RecordHash     string    `json:"record_hash"`
	BlockchainTxID string    `json:"blockchain_tx_id"`
	IssuedAt       time.Time `json:"issued_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type VerificationLogQuery struct {
	StudentID string `query:"student_id" validate:"omitempty,uuid"`
	CardID    string `query:"card_id" validate:"omitempty,uuid"`
	Limit     int    `query:"limit" validate:"omitempty,min=1,max=200"`
	Offset    int    `query:"offset" validate:"omitempty,min=0"`
}

type VerificationLogResponse struct {
	ID            uint      `json:"id"`
	CardID        *string   `json:"card_id"`
	StudentID     *string   `json:"student_id"`
	InstitutionID *string   `json:"institution_id"`
	Result        string    `json:"result"`
	Reason        *string   `json:"reason"`
	ClientIP      *string   `json:"client_ip,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
