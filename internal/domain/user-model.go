package domain

import "gorm.io/gorm"

const (
	UserActive   = "active"
	UserDisabled = "disabled"
)

// User is an operator account: immigration staff or institution staff.
type User struct {
	Email         string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash  string  `json:"-"`
	FullName      string  `json:"full_name"`
	InstitutionID *string `gorm:"type:varchar(36);index" json:"institution_id,omitempty"`
	Status        string  `gorm:"type:varchar(20);not null;default:active" json:"status"`
	gorm.Model
}
