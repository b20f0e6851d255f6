// Package cardtoken mints and checks the short-lived HS256 tokens that a
// digital student card shows in its QR code.
//
// A token proves that a card, at a given token version, was active when
// the token was minted. It is never stored: validity is decided purely
// by signature, expiry, audience and issuer here, and by comparing the
// embedded version with the live card at verification time.
package cardtoken

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	Audience = "ims-is-verify"
	Issuer   = "ims-is"
	TTL      = 15 * time.Minute
)

var (
	ErrMissingSecret = errors.New("cardtoken: signing secret is empty")
	ErrMissingCardID = errors.New("cardtoken: card_id is required")
	ErrInvalidToken  = errors.New("cardtoken: invalid or expired token")
)

// Claims is the token payload. Audience is a plain string on the wire.
type Claims struct {
	CardID       string           `json:"card_id"`
	TokenVersion int              `json:"token_version"`
	IssuedAt     *jwt.NumericDate `json:"iat"`
	ExpiresAt    *jwt.NumericDate `json:"exp"`
	Audience     string           `json:"aud"`
	Issuer       string           `json:"iss"`
}

func (c Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c Claims) GetSubject() (string, error)                  { return "", nil }

func (c Claims) GetAudience() (jwt.ClaimStrings, error) {
	if c.Audience == "" {
		return nil, nil
	}
	return jwt.ClaimStrings{c.Audience}, nil
}

// Signer holds the process-wide secret. It is immutable after New.
type Signer struct {
	secret []byte
	now    func() time.Time
}

type Option func(*Signer)

// WithClock overrides the time source used for iat/exp and validation.
func WithClock(now func() time.Time) Option {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

func New(secret string, opts ...Option) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	s := &Signer{
		secret: []byte(secret),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mint signs a token for cardID at version. It returns the compact token
// and its expiry.
func (s *Signer) Mint(cardID string, version int) (string, time.Time, error) {
	if strings.TrimSpace(cardID) == "" {
		return "", time.Time{}, ErrMissingCardID
	}

	iat := s.now().Truncate(time.Second)
	exp := iat.Add(TTL)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		CardID:       cardID,
		TokenVersion: version,
		IssuedAt:     jwt.NewNumericDate(iat),
		ExpiresAt:    jwt.NewNumericDate(exp),
		Audience:     Audience,
		Issuer:       Issuer,
	})

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("cardtoken: sign: %w", err)
	}
	return signed, exp, nil
}

// Parse checks signature, algorithm, expiry, audience and issuer. Every
// failure is reported as ErrInvalidToken wrapping the parser's reason.
func (s *Signer) Parse(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(Audience),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)

	claims := &Claims{}
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.CardID == "" {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, ErrMissingCardID)
	}
	return claims, nil
}
