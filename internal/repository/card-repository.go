package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AnchorFunc builds the ledger entry for a card given the card's
// previous entry (nil for the first one).
type AnchorFunc func(prev *domain.LedgerEntry) (*domain.LedgerEntry, error)

// CardState is the expected state of a card row for optimistic updates.
type CardState struct {
	Status       domain.CardStatus
	TokenVersion int
}

type CardRepository interface {
	FindByID(ctx context.Context, id string) (*domain.StudentCard, error)
	FindForVerification(ctx context.Context, id string) (*domain.StudentCard, error)
	FindLatestByStudent(ctx context.Context, studentID string) (*domain.StudentCard, error)
	CountLiveByStudent(ctx context.Context, studentID string) (int64, error)

	CreateAnchored(ctx context.Context, card *domain.StudentCard, anchor AnchorFunc) error
	UpdateAnchored(ctx context.Context, card *domain.StudentCard, expect CardState, anchor AnchorFunc) error
	UpdateStatus(ctx context.Context, id string, expect CardState, to domain.CardStatus) error
}

type cardRepository struct {
	db *gorm.DB
}

func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

func (r *cardRepository) FindByID(ctx context.Context, id string) (*domain.StudentCard, error) {
	var card domain.StudentCard
	if err := r.db.WithContext(ctx).First(&card, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// FindForVerification loads the card with its student, institution and
// the student's most recently created visa.
func (r *cardRepository) FindForVerification(ctx context.Context, id string) (*domain.StudentCard, error) {
	var card domain.StudentCard
	err := r.db.WithContext(ctx).
		Preload("Student").
		Preload("Student.Visas", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC").Limit(1)
		}).
		Preload("Institution").
		First(&card, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

func (r *cardRepository) FindLatestByStudent(ctx context.Context, studentID string) (*domain.StudentCard, error) {
	var card domain.StudentCard
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		First(&card).Error
	if err != nil {
		return nil, err
	}
	return &card, nil
}

// CountLiveByStudent counts cards that are not revoked.
func (r *cardRepository) CountLiveByStudent(ctx context.Context, studentID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.StudentCard{}).
		Where("student_id = ? AND status <> ?", studentID, domain.CardRevoked).
		Count(&count).Error
	return count, err
}

// CreateAnchored inserts a new card with its first ledger entry. It
// returns ErrLiveCardExists when the student already holds a card that is
// not revoked. On Postgres the student row is locked for the check;
// uidx_student_cards_live enforces the same rule on every driver.
func (r *cardRepository) CreateAnchored(ctx context.Context, card *domain.StudentCard, anchor AnchorFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if card.Status != domain.CardRevoked {
			if err := lockStudent(tx, card.StudentID); err != nil {
				return err
			}
			var live int64
			err := tx.Model(&domain.StudentCard{}).
				Where("student_id = ? AND status <> ?", card.StudentID, domain.CardRevoked).
				Count(&live).Error
			if err != nil {
				return err
			}
			if live > 0 {
				return ErrLiveCardExists
			}
		}

		entry, err := buildEntry(tx, card, anchor)
		if err != nil {
			return err
		}
		card.BlockchainTxID = entry.BlockchainTxID
		if err := tx.Create(card).Error; err != nil {
			return err
		}
		return tx.Create(entry).Error
	})
}

func (r *cardRepository) UpdateAnchored(ctx context.Context, card *domain.StudentCard, expect CardState, anchor AnchorFunc) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		entry, err := buildEntry(tx, card, anchor)
		if err != nil {
			return err
		}
		card.BlockchainTxID = entry.BlockchainTxID

		res := tx.Model(&domain.StudentCard{}).
			Where("id = ? AND status = ? AND token_version = ?", card.ID, expect.Status, expect.TokenVersion).
			Updates(map[string]any{
				"status":           card.Status,
				"token_version":    card.TokenVersion,
				"record_hash":      card.RecordHash,
				"blockchain_tx_id": card.BlockchainTxID,
				"issued_at":        card.IssuedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrStaleCard
		}
		return tx.Create(entry).Error
	})
}

func (r *cardRepository) UpdateStatus(ctx context.Context, id string, expect CardState, to domain.CardStatus) error {
	res := r.db.WithContext(ctx).
		Model(&domain.StudentCard{}).
		Where("id = ? AND status = ? AND token_version = ?", id, expect.Status, expect.TokenVersion).
		Update("status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleCard
	}
	return nil
}

func buildEntry(tx *gorm.DB, card *domain.StudentCard, anchor AnchorFunc) (*domain.LedgerEntry, error) {
	prev, err := latestLedgerEntry(tx, card.ID)
	if err != nil {
		return nil, err
	}
	return anchor(prev)
}

// lockStudent serialises card issuance per student. sqlite already
// serialises writers, so only Postgres needs the row lock.
func lockStudent(tx *gorm.DB, studentID string) error {
	if tx.Dialector.Name() != "postgres" {
		return nil
	}
	var student domain.Student
	return tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&student, "id = ?", studentID).Error
}
