package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VisaStatus string

const (
	VisaActive         VisaStatus = "ACTIVE"
	VisaExpired        VisaStatus = "EXPIRED"
	VisaCancelled      VisaStatus = "CANCELLED"
	VisaPendingRenewal VisaStatus = "PENDING_RENEWAL"
)

type Visa struct {
	ID         string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	StudentID  string     `gorm:"type:varchar(36);not null;index" json:"student_id"`
	VisaType   string     `gorm:"type:varchar(50);not null" json:"visa_type"`
	VisaNumber *string    `gorm:"type:varchar(100)" json:"visa_number,omitempty"`
	StartDate  time.Time  `gorm:"not null" json:"start_date"`
	EndDate    time.Time  `gorm:"not null" json:"end_date"`
	Status     VisaStatus `gorm:"type:varchar(20);not null;default:ACTIVE" json:"status"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

func (v *Visa) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
