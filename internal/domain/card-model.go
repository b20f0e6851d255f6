package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CardStatus string

const (
	CardActive  CardStatus = "ACTIVE"
	CardPending CardStatus = "PENDING"
	CardRevoked CardStatus = "REVOKED"
	CardExpired CardStatus = "EXPIRED"
)

func (s CardStatus) Valid() bool {
	switch s {
	case CardActive, CardPending, CardRevoked, CardExpired:
		return true
	}
	return false
}

// Lower is the status as used in audit reasons, e.g. "revoked".
func (s CardStatus) Lower() string {
	return strings.ToLower(string(s))
}

// StudentCard is one issued identity card. Rows are never deleted;
// retirement happens through Status.
type StudentCard struct {
	ID             string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	StudentID      string     `gorm:"type:varchar(36);not null;index" json:"student_id"`
	InstitutionID  string     `gorm:"type:varchar(36);not null;index" json:"institution_id"`
	CardNumber     string     `gorm:"type:varchar(32);not null;uniqueIndex:uidx_student_cards_number" json:"card_number"`
	Status         CardStatus `gorm:"type:varchar(20);not null;default:PENDING;index" json:"status"`
	TokenVersion   int        `gorm:"not null;default:1" json:"token_version"`
	RecordHash     string     `gorm:"type:varchar(64)" json:"record_hash"`
	BlockchainTxID string     `gorm:"type:varchar(80);column:blockchain_tx_id" json:"blockchain_tx_id"`
	IssuedAt       time.Time  `gorm:"not null" json:"issued_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`

	Student     *Student     `gorm:"foreignKey:StudentID" json:"student,omitempty"`
	Institution *Institution `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
}

func (StudentCard) TableName() string {
	return "student_cards"
}

func (c *StudentCard) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

// LedgerEntry anchors a card's record hash at a point in time. Entries
// are appended, never updated.
type LedgerEntry struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CardID         string    `gorm:"type:varchar(36);not null;index:idx_ledger_card_created,priority:1" json:"card_id"`
	RecordHash     string    `gorm:"type:varchar(64);not null" json:"record_hash"`
	BlockchainTxID string    `gorm:"type:varchar(80);not null;column:blockchain_tx_id" json:"blockchain_tx_id"`
	PrevTxID       string    `gorm:"type:varchar(80)" json:"prev_tx_id"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index:idx_ledger_card_created,priority:2" json:"created_at"`
}

func (LedgerEntry) TableName() string {
	return "blockchain_ledger"
}

// Matches reports whether this entry anchors the card's current data.
func (e *LedgerEntry) Matches(card *StudentCard) bool {
	if e == nil || card == nil {
		return false
	}
	return e.RecordHash == card.RecordHash && e.BlockchainTxID == card.BlockchainTxID
}
