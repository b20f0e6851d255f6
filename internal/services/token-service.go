package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/pkg/cardtoken"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// TokenService mints the QR verification tokens shown on a digital card.
type TokenService interface {
	MintCardToken(ctx context.Context, caller dto.Caller, cardID string) (*dto.MintTokenResponse, error)
}

type TokenServiceConfig struct {
	// EnforceOwnership limits INSTITUTION callers to their own cards.
	EnforceOwnership bool
}

type tokenService struct {
	cards   repository.CardRepository
	signer  *cardtoken.Signer
	cfg     TokenServiceConfig
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewTokenService(
	cards repository.CardRepository,
	signer *cardtoken.Signer,
	cfg TokenServiceConfig,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) TokenService {
	return &tokenService{
		cards:   cards,
		signer:  signer,
		cfg:     cfg,
		metrics: m,
		log:     logger.WithField("component", "token-minter"),
	}
}

func (s *tokenService) MintCardToken(ctx context.Context, caller dto.Caller, cardID string) (*dto.MintTokenResponse, error) {
	if caller.UserID == 0 {
		s.metrics.MintRejected("unauthorized")
		return nil, ErrUnauthorized
	}

	cardID = strings.TrimSpace(cardID)
	if cardID == "" {
		s.metrics.MintRejected("card_id_required")
		return nil, ErrCardIDRequired
	}

	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.MintRejected("card_not_found")
			return nil, ErrCardNotFound
		}
		return nil, fmt.Errorf("load card: %w", err)
	}

	// Cards outside the caller's scope look exactly like missing ones.
	if s.cfg.EnforceOwnership && !caller.CanAccessInstitution(card.InstitutionID) {
		s.metrics.MintRejected("card_not_found")
		s.log.WithFields(logrus.Fields{
			"card_id": card.ID,
			"user_id": caller.UserID,
		}).Warn("mint refused for card outside caller scope")
		return nil, ErrCardNotFound
	}

	if card.Status != domain.CardActive {
		s.metrics.MintRejected("card_not_active")
		return nil, ErrCardNotActive
	}

	token, _, err := s.signer.Mint(card.ID, card.TokenVersion)
	if err != nil {
		return nil, err
	}
	s.metrics.TokenMinted()

	return &dto.MintTokenResponse{
		Token:     token,
		ExpiresIn: int(cardtoken.TTL.Seconds()),
	}, nil
}
