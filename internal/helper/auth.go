package helper

import (
	"errors"
	"strings"
	"time"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const sessionIssuer = "ims-is-session"

// CallerLocal is the fiber Locals key holding the resolved dto.Caller.
const CallerLocal = "caller"

var (
	ErrMissingToken = errors.New("missing token")
	ErrTokenFormat  = errors.New("invalid token format")
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token parse error")
)

// sessionClaims is the payload of an operator session token.
type sessionClaims struct {
	UserID        uint   `json:"user_id"`
	Email         string `json:"email"`
	Role          string `json:"role"`
	InstitutionID string `json:"institution_id,omitempty"`
	jwt.RegisteredClaims
}

type Auth struct {
	Secret string
	TTL    time.Duration
}

func SetupAuth(s string, ttl time.Duration) Auth {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return Auth{Secret: s, TTL: ttl}
}

func (a Auth) GenerateToken(userID uint, email, role, institutionID string) (string, error) {
	if userID == 0 || email == "" || role == "" {
		return "", errors.New("required inputs are missing to generate token")
	}

	now := time.Now()
	claims := sessionClaims{
		UserID:        userID,
		Email:         email,
		Role:          role,
		InstitutionID: institutionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    sessionIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.TTL)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.Secret))
	if err != nil {
		return "", errors.New("unable to sign the token")
	}
	return signed, nil
}

// VerifyToken accepts a bare token or an Authorization header value.
func (a Auth) VerifyToken(raw string) (dto.AuthResponse, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return dto.AuthResponse{}, ErrMissingToken
	}
	if scheme, rest, ok := strings.Cut(raw, " "); ok && strings.EqualFold(scheme, "bearer") {
		raw = strings.TrimSpace(rest)
		if raw == "" {
			return dto.AuthResponse{}, ErrTokenFormat
		}
	}

	var claims sessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(a.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return dto.AuthResponse{}, ErrTokenExpired
		}
		return dto.AuthResponse{}, ErrTokenInvalid
	}
	if claims.UserID == 0 {
		return dto.AuthResponse{}, errors.New("invalid user_id claim")
	}
	if claims.Role == "" {
		return dto.AuthResponse{}, errors.New("invalid role claim")
	}

	res := dto.AuthResponse{
		UserID:        int(claims.UserID),
		Email:         claims.Email,
		Role:          claims.Role,
		InstitutionID: claims.InstitutionID,
		Expiry:        float64(claims.ExpiresAt.Unix()),
	}
	if claims.IssuedAt != nil {
		res.Iat = float64(claims.IssuedAt.Unix())
	}
	return res, nil
}

func (a Auth) GetCurrentUser(ctx *fiber.Ctx) (dto.Caller, error) {
	u := ctx.Locals(CallerLocal)
	caller, ok := u.(dto.Caller)
	if !ok || caller.UserID == 0 {
		return dto.Caller{}, errors.New("missing auth user in context")
	}
	return caller, nil
}

func (a Auth) HashPassword(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.New("failed to hash password")
	}
	return string(hashed), nil
}

func (a Auth) VerifyPassword(plain, hashed string) error {
	if err := bcrypt.CompareHashAndPassword(
		[]byte(hashed),
		[]byte(plain),
	); err != nil {
		return errors.New("invalid email or password")
	}
	return nil
}
