package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

type RoleRepository interface {
	FindByCode(ctx context.Context, code string) (*domain.Role, error)
	// EnsureRoles seeds one row per code, leaving existing rows alone.
	EnsureRoles(ctx context.Context, codes []string) error
}

type roleRepository struct {
	db *gorm.DB
}

func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) FindByCode(ctx context.Context, code string) (*domain.Role, error) {
	var role domain.Role
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&role).Error; err != nil {
		return nil, err
	}
	return &role, nil
}

func (r *roleRepository) EnsureRoles(ctx context.Context, codes []string) error {
	db := r.db.WithContext(ctx)
	for _, code := range codes {
		var role domain.Role
		err := db.Where(domain.Role{Code: code}).
			Attrs(domain.Role{Name: code}).
			FirstOrCreate(&role).Error
		if err != nil {
			return err
		}
	}
	return nil
}
