package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

// StudentRepository reads the student registry maintained by the
// registration screens.
type StudentRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Student, error)
	Create(ctx context.Context, student *domain.Student) error
	AddVisa(ctx context.Context, visa *domain.Visa) error
}

type studentRepository struct {
	db *gorm.DB
}

func NewStudentRepository(db *gorm.DB) StudentRepository {
	return &studentRepository{db: db}
}

func (s *studentRepository) FindByID(ctx context.Context, id string) (*domain.Student, error) {
	var student domain.Student
	err := s.db.WithContext(ctx).
		Preload("Institution").
		First(&student, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *studentRepository) Create(ctx context.Context, student *domain.Student) error {
	return s.db.WithContext(ctx).Create(student).Error
}

func (s *studentRepository) AddVisa(ctx context.Context, visa *domain.Visa) error {
	return s.db.WithContext(ctx).Create(visa).Error
}
