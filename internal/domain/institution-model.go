package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	InstitutionUniversity     = "UNIVERSITY"
	InstitutionCollege        = "COLLEGE"
	InstitutionLanguageSchool = "LANGUAGE_SCHOOL"
)

type Institution struct {
	ID              string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name            string    `gorm:"type:varchar(255);not null" json:"name"`
	InstitutionType string    `gorm:"type:varchar(30);not null;default:UNIVERSITY" json:"institution_type"`
	Address         *string   `gorm:"type:text" json:"address,omitempty"`
	ContactEmail    *string   `gorm:"type:varchar(255)" json:"contact_email,omitempty"`
	LicenseNumber   *string   `gorm:"type:varchar(100)" json:"license_number,omitempty"`
	CreatedAt       time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (i *Institution) BeforeCreate(*gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}
