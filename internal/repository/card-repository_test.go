package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/SundayYogurt/ims_service/internal/db"
	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/helper"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gdb))
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

func seedStudent(t *testing.T, gdb *gorm.DB) *domain.Student {
	t.Helper()
	inst := &domain.Institution{Name: "Chiang Mai University"}
	require.NoError(t, repository.NewInstitutionRepository(gdb).Create(context.Background(), inst))
	student := &domain.Student{
		InstitutionID:   inst.ID,
		StudentIDNumber: "640610001",
		FullName:        "Anan Sukjai",
		Nationality:     "Laos",
		DateOfBirth:     time.Date(2001, 4, 12, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, repository.NewStudentRepository(gdb).Create(context.Background(), student))
	return student
}

func newCard(student *domain.Student) *domain.StudentCard {
	return &domain.StudentCard{
		ID:            uuid.NewString(),
		StudentID:     student.ID,
		InstitutionID: student.InstitutionID,
		CardNumber:    "IMS-" + uuid.NewString()[:8],
		Status:        domain.CardActive,
		TokenVersion:  1,
		RecordHash:    "hash-1",
		IssuedAt:      time.Now().UTC().Truncate(time.Second),
	}
}

func TestCreateAnchored(t *testing.T) {
	gdb := openDB(t)
	cards := repository.NewCardRepository(gdb)
	ledger := repository.NewLedgerRepository(gdb)
	ctx := context.Background()
	student := seedStudent(t, gdb)

	card := newCard(student)
	var anchored *domain.LedgerEntry
	err := cards.CreateAnchored(ctx, card, func(prev *domain.LedgerEntry) (*domain.LedgerEntry, error) {
		assert.Nil(t, prev)
		anchored = &domain.LedgerEntry{CardID: card.ID, RecordHash: card.RecordHash, BlockchainTxID: "0xfirst"}
		return anchored, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "0xfirst", card.BlockchainTxID)

	latest, err := ledger.Latest(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.True(t, latest.Matches(card))

	loaded, err := cards.FindForVerification(ctx, card.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded.Student)
	require.NotNil(t, loaded.Institution)
	assert.Equal(t, "Chiang Mai University", loaded.Institution.Name)

	none, err := ledger.Latest(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCardNumberIsUnique(t *testing.T) {
	gdb := openDB(t)
	cards := repository.NewCardRepository(gdb)
	student := seedStudent(t, gdb)

	first := newCard(student)
	require.NoError(t, cards.CreateAnchored(context.Background(), first, cardAnchor(first)))

	dup := newCard(seedStudent(t, gdb))
	dup.CardNumber = first.CardNumber
	err := cards.CreateAnchored(context.Background(), dup, cardAnchor(dup))
	assert.True(t, helper.IsDuplicate(err, "uidx_student_cards_number"), err)

	var entries int64
	require.NoError(t, gdb.Model(&domain.LedgerEntry{}).Count(&entries).Error)
	assert.Equal(t, int64(1), entries, "failed create leaves no ledger entry")
}

func TestOneLiveCardPerStudent(t *testing.T) {
	gdb := openDB(t)
	cards := repository.NewCardRepository(gdb)
	ctx := context.Background()
	student := seedStudent(t, gdb)

	first := newCard(student)
	require.NoError(t, cards.CreateAnchored(ctx, first, cardAnchor(first)))

	second := newCard(student)
	err := cards.CreateAnchored(ctx, second, cardAnchor(second))
	assert.ErrorIs(t, err, repository.ErrLiveCardExists)

	// the index holds even for writers that skip the check
	sneaky := newCard(student)
	sneaky.Status = domain.CardExpired
	err = gdb.Create(sneaky).Error
	require.Error(t, err)
	assert.True(t, helper.IsDuplicate(err, "uidx_student_cards_live"), err)

	revokedToo := newCard(student)
	revokedToo.Status = domain.CardRevoked
	require.NoError(t, gdb.Create(revokedToo).Error, "revoked cards are not live")

	expect := repository.CardState{Status: domain.CardActive, TokenVersion: 1}
	require.NoError(t, cards.UpdateStatus(ctx, first.ID, expect, domain.CardRevoked))
	require.NoError(t, cards.CreateAnchored(ctx, second, cardAnchor(second)))

	live, err := cards.CountLiveByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}

func TestUpdateAnchoredIsConditional(t *testing.T) {
	gdb := openDB(t)
	cards := repository.NewCardRepository(gdb)
	ledger := repository.NewLedgerRepository(gdb)
	ctx := context.Background()
	student := seedStudent(t, gdb)

	card := newCard(student)
	require.NoError(t, cards.CreateAnchored(ctx, card, cardAnchor(card)))

	expect := repository.CardState{Status: card.Status, TokenVersion: card.TokenVersion}
	card.TokenVersion = 2
	card.RecordHash = "hash-2"
	require.NoError(t, cards.UpdateAnchored(ctx, card, expect, cardAnchor(card)))

	// a second writer still holding version 1 loses
	err := cards.UpdateAnchored(ctx, card, expect, cardAnchor(card))
	assert.ErrorIs(t, err, repository.ErrStaleCard)

	entries, err := ledger.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].BlockchainTxID, entries[1].PrevTxID)

	stored, err := cards.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.TokenVersion)
	assert.Equal(t, "hash-2", stored.RecordHash)
}

func TestUpdateStatusAndCountLive(t *testing.T) {
	gdb := openDB(t)
	cards := repository.NewCardRepository(gdb)
	ctx := context.Background()
	student := seedStudent(t, gdb)

	card := newCard(student)
	require.NoError(t, cards.CreateAnchored(ctx, card, cardAnchor(card)))

	live, err := cards.CountLiveByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)

	expect := repository.CardState{Status: domain.CardActive, TokenVersion: 1}
	require.NoError(t, cards.UpdateStatus(ctx, card.ID, expect, domain.CardRevoked))
	assert.ErrorIs(t, cards.UpdateStatus(ctx, card.ID, expect, domain.CardExpired), repository.ErrStaleCard)

	live, err = cards.CountLiveByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Zero(t, live)

	latest, err := cards.FindLatestByStudent(ctx, student.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardRevoked, latest.Status)
}

func cardAnchor(card *domain.StudentCard) repository.AnchorFunc {
	return func(prev *domain.LedgerEntry) (*domain.LedgerEntry, error) {
		entry := &domain.LedgerEntry{
			CardID:         card.ID,
			RecordHash:     card.RecordHash,
			BlockchainTxID: "0x" + uuid.NewString(),
		}
		if prev != nil {
			entry.PrevTxID = prev.BlockchainTxID
		}
		return entry, nil
	}
}
