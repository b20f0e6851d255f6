package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Student struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	InstitutionID   string    `gorm:"type:varchar(36);not null;index" json:"institution_id"`
	StudentIDNumber string    `gorm:"type:varchar(100);not null" json:"student_id_number"`
	FullName        string    `gorm:"type:varchar(255);not null" json:"full_name"`
	Nationality     string    `gorm:"type:varchar(100);not null" json:"nationality"`
	PassportNumber  *string   `gorm:"type:varchar(50)" json:"passport_number,omitempty"`
	DateOfBirth     time.Time `gorm:"not null" json:"date_of_birth"`
	Email           *string   `gorm:"type:varchar(255)" json:"email,omitempty"`
	Phone           *string   `gorm:"type:varchar(50)" json:"phone,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	Institution *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
	// Visas are loaded newest first; index 0 is the current visa.
	Visas []Visa `gorm:"foreignKey:StudentID" json:"visas,omitempty"`
}

func (s *Student) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// CurrentVisa is the most recently created visa, or nil.
func (s *Student) CurrentVisa() *Visa {
	if s == nil || len(s.Visas) == 0 {
		return nil
	}
	return &s.Visas[0]
}
