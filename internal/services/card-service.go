package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/interfaces"
	"github.com/SundayYogurt/ims_service/internal/metrics"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const cardNumberAttempts = 3

// CardService manages the card lifecycle. Every change that alters the
// attested data bumps token_version and appends a ledger entry, so all
// previously minted tokens stop verifying.
type CardService interface {
	IssueCard(ctx context.Context, caller dto.Caller, input dto.IssueCardRequest) (*dto.CardResponse, error)
	GetStudentCard(ctx context.Context, caller dto.Caller, studentID string) (*dto.CardResponse, error)
	ReissueCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)
	ReinstateCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)
	ReanchorCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)
	RevokeCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)
	ExpireCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error)
	LedgerHistory(ctx context.Context, caller dto.Caller, cardID string) ([]domain.LedgerEntry, error)
}

type cardService struct {
	cards    repository.CardRepository
	ledger   repository.LedgerRepository
	students repository.StudentRepository
	events   eventEmitter
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewCardService(
	cards repository.CardRepository,
	ledger repository.LedgerRepository,
	students repository.StudentRepository,
	producer interfaces.ProducerHandler,
	m *metrics.Metrics,
	logger logrus.FieldLogger,
) CardService {
	log := logger.WithField("component", "card-lifecycle")
	return &cardService{
		cards:    cards,
		ledger:   ledger,
		students: students,
		events:   eventEmitter{producer: producer, metrics: m, log: log, now: time.Now},
		log:      log,
		now:      time.Now,
	}
}

func (s *cardService) IssueCard(ctx context.Context, caller dto.Caller, input dto.IssueCardRequest) (*dto.CardResponse, error) {
	if caller.UserID == 0 {
		return nil, ErrUnauthorized
	}
	if err := helper.Validate(input); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	student, err := s.students.FindByID(ctx, input.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		return nil, err
	}
	if !caller.CanAccessInstitution(student.InstitutionID) {
		return nil, ErrStudentNotFound
	}

	var card *domain.StudentCard
	for attempt := 1; ; attempt++ {
		card, err = s.newCard(student)
		if err != nil {
			return nil, err
		}
		err = s.cards.CreateAnchored(ctx, card, anchorFor(card, s.now()))
		if err == nil {
			break
		}
		if errors.Is(err, repository.ErrLiveCardExists) {
			return nil, ErrCardAlreadyIssued
		}
		if !helper.IsDuplicate(err, "") {
			return nil, err
		}
		// a concurrent issue for the same student and a card number clash
		// both surface as a unique violation
		live, cerr := s.cards.CountLiveByStudent(ctx, student.ID)
		if cerr != nil {
			return nil, cerr
		}
		if live > 0 {
			return nil, ErrCardAlreadyIssued
		}
		if attempt >= cardNumberAttempts {
			return nil, err
		}
		s.log.WithField("attempt", attempt).Warn("card number collision, retrying")
	}

	s.log.WithFields(logrus.Fields{
		"card_id":    card.ID,
		"student_id": card.StudentID,
		"user_id":    caller.UserID,
	}).Info("card issued")
	s.events.emit(cardEvent(dto.EventCardIssued, card, caller))

	return toCardResponse(card), nil
}

func (s *cardService) GetStudentCard(ctx context.Context, caller dto.Caller, studentID string) (*dto.CardResponse, error) {
	if caller.UserID == 0 {
		return nil, ErrUnauthorized
	}
	card, err := s.cards.FindLatestByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if !caller.CanAccessInstitution(card.InstitutionID) {
		return nil, ErrCardNotFound
	}
	return toCardResponse(card), nil
}

// ReissueCard replaces the physical card: new issue date, new version.
func (s *cardService) ReissueCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error) {
	allowed := []domain.CardStatus{domain.CardActive, domain.CardPending, domain.CardExpired}
	return s.rewrite(ctx, caller, cardID, allowed, dto.EventCardReissued, func(card *domain.StudentCard, _ string) bool {
		card.Status = domain.CardActive
		card.IssuedAt = s.now().UTC().Truncate(time.Second)
		return true
	})
}

// ReinstateCard reactivates a suspended card. The version bump keeps
// tokens minted before the suspension dead.
func (s *cardService) ReinstateCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error) {
	allowed := []domain.CardStatus{domain.CardRevoked, domain.CardExpired, domain.CardPending}
	return s.rewrite(ctx, caller, cardID, allowed, dto.EventCardStatusChanged, func(card *domain.StudentCard, _ string) bool {
		card.Status = domain.CardActive
		return true
	})
}

// ReanchorCard recomputes the record hash from the current student data
// and appends a ledger entry. The version only moves when the data did.
func (s *cardService) ReanchorCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error) {
	allowed := []domain.CardStatus{domain.CardActive, domain.CardPending, domain.CardRevoked, domain.CardExpired}
	return s.rewrite(ctx, caller, cardID, allowed, dto.EventCardAnchored, func(card *domain.StudentCard, freshHash string) bool {
		return freshHash != card.RecordHash
	})
}

func (s *cardService) RevokeCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error) {
	return s.transition(ctx, caller, cardID, []domain.CardStatus{domain.CardActive, domain.CardPending}, domain.CardRevoked)
}

func (s *cardService) ExpireCard(ctx context.Context, caller dto.Caller, cardID string) (*dto.CardResponse, error) {
	return s.transition(ctx, caller, cardID, []domain.CardStatus{domain.CardActive}, domain.CardExpired)
}

func (s *cardService) LedgerHistory(ctx context.Context, caller dto.Caller, cardID string) ([]domain.LedgerEntry, error) {
	if _, err := s.load(ctx, caller, cardID); err != nil {
		return nil, err
	}
	return s.ledger.ListByCard(ctx, cardID)
}

func (s *cardService) load(ctx context.Context, caller dto.Caller, cardID string) (*domain.StudentCard, error) {
	if caller.UserID == 0 {
		return nil, ErrUnauthorized
	}
	if cardID == "" {
		return nil, ErrCardIDRequired
	}
	card, err := s.cards.FindByID(ctx, cardID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	if !caller.CanAccessInstitution(card.InstitutionID) {
		return nil, ErrCardNotFound
	}
	return card, nil
}

// rewrite applies mutate and re-anchors the card. mutate receives the
// hash of the card's current data and returns whether the version must
// move.
func (s *cardService) rewrite(
	ctx context.Context,
	caller dto.Caller,
	cardID string,
	allowed []domain.CardStatus,
	eventType string,
	mutate func(card *domain.StudentCard, freshHash string) bool,
) (*dto.CardResponse, error) {
	card, err := s.load(ctx, caller, cardID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(allowed, card.Status) {
		return nil, ErrInvalidTransition
	}

	student, err := s.students.FindByID(ctx, card.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load student: %w", err)
	}

	expect := repository.CardState{Status: card.Status, TokenVersion: card.TokenVersion}

	freshHash, err := RecordHash(card, student)
	if err != nil {
		return nil, err
	}
	if mutate(card, freshHash) {
		card.TokenVersion++
	}
	if card.RecordHash, err = RecordHash(card, student); err != nil {
		return nil, err
	}

	if err := s.cards.UpdateAnchored(ctx, card, expect, anchorFor(card, s.now())); err != nil {
		switch {
		case errors.Is(err, repository.ErrStaleCard):
			return nil, ErrCardChanged
		case helper.IsDuplicate(err, ""):
			// reviving a card while the student holds a newer live one
			return nil, ErrCardAlreadyIssued
		}
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"card_id":       card.ID,
		"token_version": card.TokenVersion,
		"status":        card.Status,
		"user_id":       caller.UserID,
	}).Info(eventType)
	s.events.emit(cardEvent(eventType, card, caller))

	return toCardResponse(card), nil
}

func (s *cardService) transition(
	ctx context.Context,
	caller dto.Caller,
	cardID string,
	from []domain.CardStatus,
	to domain.CardStatus,
) (*dto.CardResponse, error) {
	card, err := s.load(ctx, caller, cardID)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(from, card.Status) {
		return nil, ErrInvalidTransition
	}

	expect := repository.CardState{Status: card.Status, TokenVersion: card.TokenVersion}
	if err := s.cards.UpdateStatus(ctx, card.ID, expect, to); err != nil {
		if errors.Is(err, repository.ErrStaleCard) {
			return nil, ErrCardChanged
		}
		return nil, err
	}
	card.Status = to

	s.log.WithFields(logrus.Fields{
		"card_id": card.ID,
		"status":  to,
		"user_id": caller.UserID,
	}).Info("card status changed")
	s.events.emit(cardEvent(dto.EventCardStatusChanged, card, caller))

	return toCardResponse(card), nil
}

func (s *cardService) newCard(student *domain.Student) (*domain.StudentCard, error) {
	code, err := utils.RandomCode(5)
	if err != nil {
		return nil, fmt.Errorf("card number: %w", err)
	}
	card := &domain.StudentCard{
		ID:            uuid.NewString(),
		StudentID:     student.ID,
		InstitutionID: student.InstitutionID,
		CardNumber:    "IMS-" + code,
		Status:        domain.CardActive,
		TokenVersion:  1,
		IssuedAt:      s.now().UTC().Truncate(time.Second),
	}
	if card.RecordHash, err = RecordHash(card, student); err != nil {
		return nil, err
	}
	return card, nil
}

func cardEvent(eventType string, card *domain.StudentCard, caller dto.Caller) dto.CardEvent {
	return dto.CardEvent{
		Type:          eventType,
		CardID:        card.ID,
		StudentID:     card.StudentID,
		InstitutionID: card.InstitutionID,
		Status:        string(card.Status),
		TokenVersion:  card.TokenVersion,
		ActorID:       caller.UserID,
	}
}

func toCardResponse(card *domain.StudentCard) *dto.CardResponse {
	return &dto.CardResponse{
		ID:             card.ID,
		StudentID:      card.StudentID,
		InstitutionID:  card.InstitutionID,
		CardNumber:     card.CardNumber,
		Status:         string(card.Status),
		TokenVersion:   card.TokenVersion,
		RecordHash:     card.RecordHash,
		BlockchainTxID: card.BlockchainTxID,
		IssuedAt:       card.IssuedAt,
		UpdatedAt:      card.UpdatedAt,
	}
}
