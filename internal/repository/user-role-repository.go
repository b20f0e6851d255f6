package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

type UserRoleRepository interface {
	// RoleOf returns the code of the user's most recent live role link,
	// or gorm.ErrRecordNotFound when there is none.
	RoleOf(ctx context.Context, userID uint) (string, error)
}

type userRoleRepository struct {
	db *gorm.DB
}

func NewUserRoleRepository(db *gorm.DB) UserRoleRepository {
	return &userRoleRepository{db: db}
}

func (r *userRoleRepository) RoleOf(ctx context.Context, userID uint) (string, error) {
	var codes []string
	err := r.db.WithContext(ctx).
		Model(&domain.UserRole{}).
		Joins("JOIN roles ON roles.id = user_roles.role_id").
		Where("user_roles.user_id = ?", userID).
		Order("user_roles.id DESC").
		Limit(1).
		Pluck("roles.code", &codes).Error
	if err != nil {
		return "", err
	}
	if len(codes) == 0 {
		return "", gorm.ErrRecordNotFound
	}
	return codes[0], nil
}
