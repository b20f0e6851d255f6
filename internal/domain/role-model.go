package domain

import "gorm.io/gorm"

const (
	RoleImmigration = "IMMIGRATION"
	RoleInstitution = "INSTITUTION"
)

var RoleCodes = []string{RoleImmigration, RoleInstitution}

type Role struct {
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // IMMIGRATION | INSTITUTION
	Name string `gorm:"type:varchar(100);not null" json:"name"`
	gorm.Model
}

type UserRole struct {
	UserID uint `gorm:"index;not null" json:"user_id"`
	RoleID uint `gorm:"index;not null" json:"role_id"`
	gorm.Model
}
