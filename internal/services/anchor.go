package services

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/helper/utils"
	"github.com/SundayYogurt/ims_service/internal/repository"
)

// cardRecord is the canonical data a card's record hash covers. Field
// order is fixed by the struct, so the JSON encoding is stable.
type cardRecord struct {
	CardID          string `json:"card_id"`
	CardNumber      string `json:"card_number"`
	StudentID       string `json:"student_id"`
	StudentIDNumber string `json:"student_id_number"`
	FullName        string `json:"full_name"`
	Nationality     string `json:"nationality"`
	PassportNumber  string `json:"passport_number"`
	DateOfBirth     string `json:"date_of_birth"`
	InstitutionID   string `json:"institution_id"`
	TokenVersion    int    `json:"token_version"`
	IssuedAt        string `json:"issued_at"`
}

// RecordHash is the SHA-256 hex digest of the card's canonical record.
// Status is deliberately not covered: revoking a card does not alter the
// data it attests to.
func RecordHash(card *domain.StudentCard, student *domain.Student) (string, error) {
	if card == nil || student == nil {
		return "", fmt.Errorf("record hash: card and student are required")
	}
	rec := cardRecord{
		CardID:          card.ID,
		CardNumber:      card.CardNumber,
		StudentID:       student.ID,
		StudentIDNumber: student.StudentIDNumber,
		FullName:        student.FullName,
		Nationality:     student.Nationality,
		DateOfBirth:     student.DateOfBirth.UTC().Format(time.DateOnly),
		InstitutionID:   card.InstitutionID,
		TokenVersion:    card.TokenVersion,
		IssuedAt:        card.IssuedAt.UTC().Format(time.RFC3339),
	}
	if student.PassportNumber != nil {
		rec.PassportNumber = *student.PassportNumber
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return "", err
	}
	return utils.Sha256Hex(string(b)), nil
}

// LedgerTxID chains an entry to its predecessor.
func LedgerTxID(prevTxID, recordHash, cardID string, at time.Time) string {
	return "0x" + utils.Sha256Hex(prevTxID+"|"+recordHash+"|"+cardID+"|"+strconv.FormatInt(at.UTC().UnixNano(), 10))
}

func anchorFor(card *domain.StudentCard, at time.Time) repository.AnchorFunc {
	return func(prev *domain.LedgerEntry) (*domain.LedgerEntry, error) {
		prevTx := ""
		if prev != nil {
			prevTx = prev.BlockchainTxID
		}
		return &domain.LedgerEntry{
			CardID:         card.ID,
			RecordHash:     card.RecordHash,
			BlockchainTxID: LedgerTxID(prevTx, card.RecordHash, card.ID, at),
			PrevTxID:       prevTx,
			CreatedAt:      at.UTC(),
		}, nil
	}
}
