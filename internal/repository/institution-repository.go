package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

type InstitutionRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Institution, error)
	List(ctx context.Context, limit, offset int) ([]domain.Institution, error)
	Create(ctx context.Context, institution *domain.Institution) error
}

type institutionRepository struct {
	db *gorm.DB
}

func NewInstitutionRepository(db *gorm.DB) InstitutionRepository {
	return &institutionRepository{db: db}
}

func (u *institutionRepository) FindByID(ctx context.Context, id string) (*domain.Institution, error) {
	var institution domain.Institution
	if err := u.db.WithContext(ctx).First(&institution, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &institution, nil
}

func (u *institutionRepository) List(ctx context.Context, limit, offset int) ([]domain.Institution, error) {
	var institutions []domain.Institution

	err := u.db.WithContext(ctx).Order("name ASC").Limit(limit).Offset(offset).Find(&institutions).Error

	if err != nil {
		return nil, err
	}
	return institutions, nil
}

func (u *institutionRepository) Create(ctx context.Context, institution *domain.Institution) error {
	return u.db.WithContext(ctx).Create(institution).Error
}
