package domain

import "time"

const (
	ScanValid   = "VALID"
	ScanInvalid = "INVALID"
)

// VerificationRequest is the audit row written for every card scan that
// reached card lookup.
type VerificationRequest struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CardID        *string   `gorm:"type:varchar(36);index" json:"card_id"`
	StudentID     *string   `gorm:"type:varchar(36);index" json:"student_id"`
	InstitutionID *string   `gorm:"type:varchar(36);index" json:"institution_id"`
	Result        string    `gorm:"type:varchar(10);not null" json:"result"`
	Reason        *string   `gorm:"type:varchar(64)" json:"reason"`
	UserAgent     *string   `gorm:"type:text" json:"user_agent,omitempty"`
	DeviceID      *string   `gorm:"type:varchar(128)" json:"device_id,omitempty"`
	ClientIP      *string   `gorm:"type:varchar(64)" json:"client_ip,omitempty"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
