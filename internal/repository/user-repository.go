package repository

import (
	"context"
	"errors"

	"github.com/SundayYogurt/ims_service/internal/domain"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type UserRepository interface {
	// CreateWithRole inserts the operator and its role link together.
	CreateWithRole(ctx context.Context, user *domain.User, roleID uint) error
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	FindByID(ctx context.Context, id uint) (*domain.User, error)
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) CreateWithRole(ctx context.Context, user *domain.User, roleID uint) error {
	if user == nil || roleID == 0 {
		return errors.New("user and role are required")
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return tx.Create(&domain.UserRole{UserID: user.ID, RoleID: roleID}).Error
	})
}

// FindByEmail passes gorm.ErrRecordNotFound through so callers can tell
// a missing account from a broken database.
func (r *userRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("find user by email")
		}
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByID(ctx context.Context, id uint) (*domain.User, error) {
	var user domain.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.WithError(err).Error("find user by id")
		}
		return nil, err
	}
	return &user, nil
}
