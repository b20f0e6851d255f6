package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

type VerificationFilter struct {
	StudentID     string
	CardID        string
	InstitutionID string
	Limit         int
	Offset        int
}

// VerificationRepository is insert-only apart from reads.
type VerificationRepository interface {
	Create(ctx context.Context, req *domain.VerificationRequest) error
	List(ctx context.Context, filter VerificationFilter) ([]domain.VerificationRequest, error)
}

type verificationRepository struct {
	db *gorm.DB
}

func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &verificationRepository{db: db}
}

func (r *verificationRepository) Create(ctx context.Context, req *domain.VerificationRequest) error {
	return r.db.WithContext(ctx).Create(req).Error
}

func (r *verificationRepository) List(ctx context.Context, filter VerificationFilter) ([]domain.VerificationRequest, error) {
	q := r.db.WithContext(ctx).Model(&domain.VerificationRequest{})
	if filter.StudentID != "" {
		q = q.Where("student_id = ?", filter.StudentID)
	}
	if filter.CardID != "" {
		q = q.Where("card_id = ?", filter.CardID)
	}
	if filter.InstitutionID != "" {
		q = q.Where("institution_id = ?", filter.InstitutionID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	var rows []domain.VerificationRequest
	err := q.Order("created_at DESC, id DESC").Limit(limit).Offset(filter.Offset).Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
