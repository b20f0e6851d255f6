package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/pkg/cardtoken"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const unknownVisaStatus = "UNKNOWN"

// Verdict is the outcome of one scan. Reason is empty when the request
// got as far as the integrity check; Response is then set.
type Verdict struct {
	Reason   string
	Response *dto.VerifyResponse
}

func (v *Verdict) Valid() bool {
	return v != nil && v.Response != nil && v.Response.Valid
}

// VerifyService answers public QR scans.
type VerifyService interface {
	VerifyCard(ctx context.Context, token string, meta dto.ScanMeta) (*Verdict, error)
}

type verifyService struct {
	cards   repository.CardRepository
	ledger  repository.LedgerRepository
	audit   AuditService
	signer  *cardtoken.Signer
	metrics *metrics.Metrics
	events  eventEmitter
	log     logrus.FieldLogger
}

func NewVerifyService(
	cards repository.CardRepository,
	ledger repository.LedgerRepository,
	audit AuditService,
	signer *cardtoken.Signer,
	producer interfaces.ProducerHandler,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) VerifyService {
	log := logger.WithField("component", "card-verifier")
	return &verifyService{
		cards:   cards,
		ledger:  ledger,
		audit:   audit,
		signer:  signer,
		metrics: m,
		events:  eventEmitter{producer: producer, metrics: m, log: log, now: time.Now},
		log:     log,
	}
}

func (s *verifyService) VerifyCard(ctx context.Context, token string, meta dto.ScanMeta) (*Verdict, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		s.metrics.Verification(domain.ScanInvalid, dto.ReasonMissingToken)
		return &Verdict{Reason: dto.ReasonMissingToken}, nil
	}

	claims, err := s.signer.Parse(token)
	if err != nil {
		s.log.WithError(err).Debug("token rejected")
		s.metrics.Verification(domain.ScanInvalid, dto.ReasonInvalidOrExpired)
		return &Verdict{Reason: dto.ReasonInvalidOrExpired}, nil
	}

	scan := newScan(claims.CardID, meta)

	card, err := s.cards.FindForVerification(ctx, claims.CardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.finish(ctx, scan, dto.ReasonCardNotFound)
			return &Verdict{Reason: dto.ReasonCardNotFound}, nil
		}
		s.finish(ctx, scan, dto.ReasonServerError)
		return nil, fmt.Errorf("load card: %w", err)
	}
	scan.StudentID = strPtr(card.StudentID)
	scan.InstitutionID = strPtr(card.InstitutionID)

	if card.TokenVersion != claims.TokenVersion {
		s.finish(ctx, scan, dto.ReasonTokenVersionMismatch)
		return &Verdict{Reason: dto.ReasonTokenVersionMismatch}, nil
	}

	if card.Status != domain.CardActive {
		s.finish(ctx, scan, "card_"+card.Status.Lower())
		return &Verdict{Reason: dto.ReasonCardNotActive}, nil
	}

	entry, err := s.ledger.Latest(ctx, card.ID)
	if err != nil {
		s.log.WithError(err).WithField("card_id", card.ID).Warn("ledger lookup failed, integrity not proven")
	}
	integrityOK := err == nil && entry.Matches(card)

	resp := publicView(card)
	resp.Valid = integrityOK
	resp.IntegrityOK = integrityOK

	if integrityOK {
		s.finish(ctx, scan, "")
	} else {
		s.finish(ctx, scan, dto.ReasonIntegrityFailed)
	}
	return &Verdict{Response: resp}, nil
}

// finish writes the audit row and the side-channel signals for a scan
// that reached card lookup. An empty reason means VALID.
func (s *verifyService) finish(ctx context.Context, scan *domain.VerificationRequest, reason string) {
	scan.Result = domain.ScanValid
	if reason != "" {
		scan.Result = domain.ScanInvalid
		scan.Reason = strPtr(reason)
	}

	s.audit.RecordScan(ctx, scan)
	s.metrics.Verification(scan.Result, reason)
	s.events.emit(dto.CardEvent{
		Type:          dto.EventCardVerified,
		CardID:        deref(scan.CardID),
		StudentID:     deref(scan.StudentID),
		InstitutionID: deref(scan.InstitutionID),
		Result:        scan.Result,
		Reason:        reason,
	})
}

func newScan(cardID string, meta dto.ScanMeta) *domain.VerificationRequest {
	return &domain.VerificationRequest{
		CardID:    strPtr(cardID),
		UserAgent: strPtr(meta.UserAgent),
		DeviceID:  strPtr(meta.DeviceID),
		ClientIP:  strPtr(meta.ClientIP),
	}
}

// publicView is everything a scanner may learn about a card holder.
func publicView(card *domain.StudentCard) *dto.VerifyResponse {
	resp := &dto.VerifyResponse{VisaStatus: unknownVisaStatus}
	if card.Institution != nil {
		resp.Institution = strPtr(card.Institution.Name)
	}
	if card.Student != nil {
		resp.StudentNationality = strPtr(card.Student.Nationality)
		if visa := card.Student.CurrentVisa(); visa != nil {
			resp.VisaStatus = string(visa.Status)
			end := visa.EndDate.Format(time.DateOnly)
			resp.VisaEndDate = &end
		}
	}
	return resp
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
