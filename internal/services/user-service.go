package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"gorm.io/gorm"
)

type UserService interface {
	// Auth
	Login(ctx context.Context, input dto.UserLogin) (*dto.LoginResponse, error)
	ResolveCaller(ctx context.Context, claims dto.AuthResponse) (dto.Caller, error)

	// Admin
	CreateUser(ctx context.Context, input dto.CreateUserRequest) (*dto.UserProfileResponse, error)
	GetProfile(ctx context.Context, userID uint) (*dto.UserProfileResponse, error)
}

type userService struct {
	repo         repository.UserRepository
	roleRepo     repository.RoleRepository
	userRoleRepo repository.UserRoleRepository
	institutions repository.InstitutionRepository
	auth         helper.Auth
}

func NewUserService(
	repo repository.UserRepository,
	roleRepo repository.RoleRepository,
	userRoleRepo repository.UserRoleRepository,
	institutions repository.InstitutionRepository,
	auth helper.Auth,
) UserService {
	return &userService{
		repo:         repo,
		roleRepo:     roleRepo,
		userRoleRepo: userRoleRepo,
		institutions: institutions,
		auth:         auth,
	}
}

// AUTH
func (u *userService) Login(ctx context.Context, input dto.UserLogin) (*dto.LoginResponse, error) {
	email := utils.NormalizeEmail(input.Email)
	password := strings.TrimSpace(input.Password)

	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := u.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if user.Status != domain.UserActive {
		return nil, ErrAccountDisabled
	}

	if err := u.auth.VerifyPassword(password, user.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	profile, err := u.profile(ctx, user)
	if err != nil {
		return nil, err
	}

	institutionID := ""
	if profile.InstitutionID != nil {
		institutionID = *profile.InstitutionID
	}
	token, err := u.auth.GenerateToken(user.ID, user.Email, profile.Role, institutionID)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		Token:     token,
		ExpiresIn: int64(u.auth.TTL.Seconds()),
		User:      *profile,
	}, nil
}

// ResolveCaller turns verified session claims into a caller. The user row
// is authoritative: a disabled account or a changed role wins over
// whatever the token says.
func (u *userService) ResolveCaller(ctx context.Context, claims dto.AuthResponse) (dto.Caller, error) {
	if claims.UserID <= 0 {
		return dto.Caller{}, fmt.Errorf("%w: no user in session", ErrUnauthorized)
	}

	user, err := u.repo.FindByID(ctx, uint(claims.UserID))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.Caller{}, fmt.Errorf("%w: user no longer exists", ErrUnauthorized)
		}
		return dto.Caller{}, err
	}
	if user.Status != domain.UserActive {
		return dto.Caller{}, fmt.Errorf("%w: %v", ErrUnauthorized, ErrAccountDisabled)
	}

	role, err := u.userRoleRepo.RoleOf(ctx, user.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.Caller{}, fmt.Errorf("%w: user has no role", ErrUnauthorized)
		}
		return dto.Caller{}, err
	}

	caller := dto.Caller{
		UserID: user.ID,
		Email:  user.Email,
		Role:   role,
	}
	if user.InstitutionID != nil {
		caller.InstitutionID = *user.InstitutionID
	}
	if role == domain.RoleInstitution && caller.InstitutionID == "" {
		return dto.Caller{}, fmt.Errorf("%w: institution user without institution", ErrUnauthorized)
	}
	return caller, nil
}

func (u *userService) CreateUser(ctx context.Context, input dto.CreateUserRequest) (*dto.UserProfileResponse, error) {
	input.Email = utils.NormalizeEmail(input.Email)
	input.Role = strings.ToUpper(strings.TrimSpace(input.Role))
	input.FullName = strings.TrimSpace(input.FullName)

	if err := helper.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	var institutionID *string
	if input.Role == domain.RoleInstitution {
		if input.InstitutionID == nil || *input.InstitutionID == "" {
			return nil, fmt.Errorf("%w: institution_id is required for INSTITUTION users", ErrInvalidInput)
		}
		inst, err := u.institutions.FindByID(ctx, *input.InstitutionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: institution not found", ErrInvalidInput)
			}
			return nil, err
		}
		institutionID = &inst.ID
	}

	if existing, err := u.repo.FindByEmail(ctx, input.Email); err == nil && existing != nil {
		return nil, fmt.Errorf("%w: email already exists", ErrInvalidInput)
	} else if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := u.auth.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role, err := u.roleRepo.FindByCode(ctx, input.Role)
	if err != nil {
		return nil, fmt.Errorf("role %s: %w", input.Role, err)
	}

	usr := &domain.User{
		Email:         input.Email,
		PasswordHash:  hashed,
		FullName:      input.FullName,
		InstitutionID: institutionID,
		Status:        domain.UserActive,
	}
	if err := u.repo.CreateWithRole(ctx, usr, role.ID); err != nil {
		if helper.IsDuplicate(err, "") {
			return nil, fmt.Errorf("%w: email already exists", ErrInvalidInput)
		}
		return nil, err
	}

	return u.profile(ctx, usr)
}

func (u *userService) GetProfile(ctx context.Context, userID uint) (*dto.UserProfileResponse, error) {
	user, err := u.repo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return u.profile(ctx, user)
}

func (u *userService) profile(ctx context.Context, user *domain.User) (*dto.UserProfileResponse, error) {
	role, err := u.userRoleRepo.RoleOf(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &dto.UserProfileResponse{
		ID:            user.ID,
		Email:         user.Email,
		FullName:      user.FullName,
		Role:          role,
		InstitutionID: user.InstitutionID,
		Status:        user.Status,
	}, nil
}
