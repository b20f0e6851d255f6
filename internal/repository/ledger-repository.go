package repository

import (
	"context"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"gorm.io/gorm"
)

type LedgerRepository interface {
	// Latest returns the newest entry for the card, or nil when the card
	// was never anchored.
	Latest(ctx context.Context, cardID string) (*domain.LedgerEntry, error)
	ListByCard(ctx context.Context, cardID string) ([]domain.LedgerEntry, error)
}

type ledgerRepository struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

func (r *ledgerRepository) Latest(ctx context.Context, cardID string) (*domain.LedgerEntry, error) {
	return latestLedgerEntry(r.db.WithContext(ctx), cardID)
}

func (r *ledgerRepository) ListByCard(ctx context.Context, cardID string) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := r.db.WithContext(ctx).
		Where("card_id = ?", cardID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func latestLedgerEntry(db *gorm.DB, cardID string) (*domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	err := db.Where("card_id = ?", cardID).
		Order("created_at DESC, id DESC").
		Limit(1).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &entries[0], nil
}
