package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/sirupsen/logrus"
)

const auditWriteTimeout = 3 * time.Second

// AuditService owns the verification_requests trail.
type AuditService interface {
	// RecordScan writes one audit row. It never fails: errors go to the
	// diagnostic log and the audit failure counter.
	RecordScan(ctx context.Context, rec *domain.VerificationRequest)
	ListVerifications(ctx context.Context, caller dto.Caller, q dto.VerificationLogQuery) ([]dto.VerificationLogResponse, error)
}

type auditService struct {
	repo    repository.VerificationRepository
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

func NewAuditService(repo repository.VerificationRepository, m *metrics.Metrics, logger logrus.FieldLogger) AuditService {
	return &auditService{
		repo:    repo,
		metrics: m,
		log:     logger.WithField("component", "scan-audit"),
	}
}

func (a *auditService) RecordScan(ctx context.Context, rec *domain.VerificationRequest) {
	// the scanner hanging up must not cost us the audit row
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			a.metrics.AuditWriteFailed()
			a.log.WithField("panic", r).Error("audit write panicked")
		}
	}()

	if err := a.repo.Create(wctx, rec); err != nil {
		a.metrics.AuditWriteFailed()
		entry := a.log.WithError(err).WithField("result", rec.Result)
		if rec.CardID != nil {
			entry = entry.WithField("card_id", *rec.CardID)
		}
		if rec.Reason != nil {
			entry = entry.WithField("reason", *rec.Reason)
		}
		entry.Error("audit write failed")
	}
}

func (a *auditService) ListVerifications(ctx context.Context, caller dto.Caller, q dto.VerificationLogQuery) ([]dto.VerificationLogResponse, error) {
	if caller.UserID == 0 {
		return nil, ErrUnauthorized
	}
	if err := helper.Validate(q); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	filter := repository.VerificationFilter{
		StudentID: q.StudentID,
		CardID:    q.CardID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if !caller.IsImmigration() {
		filter.InstitutionID = caller.InstitutionID
	}

	rows, err := a.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]dto.VerificationLogResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, dto.VerificationLogResponse{
			ID:            r.ID,
			CardID:        r.CardID,
			StudentID:     r.StudentID,
			InstitutionID: r.InstitutionID,
			Result:        r.Result,
			Reason:        r.Reason,
			ClientIP:      r.ClientIP,
			CreatedAt:     r.CreatedAt,
		})
	}
	return out, nil
}
