package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/SundayYogurt/ims_service/pkg/logger"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// interleavedCards runs before ahead of every insert, standing in for a
// writer that commits between the issuer's check and its insert.
type interleavedCards struct {
	repository.CardRepository
	calls  int
	before func(call int) error
}

func (c *interleavedCards) CreateAnchored(ctx context.Context, card *domain.StudentCard, anchor repository.AnchorFunc) error {
	c.calls++
	if err := c.before(c.calls); err != nil {
		return err
	}
	return c.CardRepository.CreateAnchored(ctx, card, anchor)
}

func TestIssueCard(t *testing.T) {
	env := newTestEnv(t)
	inst := env.seedInstitution(t, "Chiang Mai University")
	student := env.seedStudent(t, inst, true)
	ctx := context.Background()

	card, err := env.lifecycle.IssueCard(ctx, institutionCaller(inst), dto.IssueCardRequest{StudentID: student.ID})
	require.NoError(t, err)
	assert.Equal(t, string(domain.CardActive), card.Status)
	assert.Equal(t, 1, card.TokenVersion)
	assert.Equal(t, inst.ID, card.InstitutionID)
	assert.Regexp(t, `^IMS-[0-9A-F]{10}$`, card.CardNumber)
	assert.Len(t, card.RecordHash, 64)
	assert.Regexp(t, `^0x[0-9a-f]{64}$`, card.BlockchainTxID)

	entries, err := env.ledger.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, card.RecordHash, entries[0].RecordHash)
	assert.Equal(t, card.BlockchainTxID, entries[0].BlockchainTxID)
	assert.Empty(t, entries[0].PrevTxID)

	_, err = env.lifecycle.IssueCard(ctx, immigration, dto.IssueCardRequest{StudentID: student.ID})
	assert.ErrorIs(t, err, services.ErrCardAlreadyIssued)

	assert.Equal(t, []string{dto.EventCardIssued}, env.producer.types())
}

func TestIssueCardRejections(t *testing.T) {
	env := newTestEnv(t)
	inst := env.seedInstitution(t, "Chiang Mai University")
	other := env.seedInstitution(t, "Kasetsart University")
	student := env.seedStudent(t, inst, false)
	ctx := context.Background()

	_, err := env.lifecycle.IssueCard(ctx, dto.Caller{}, dto.IssueCardRequest{StudentID: student.ID})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = env.lifecycle.IssueCard(ctx, immigration, dto.IssueCardRequest{StudentID: "not-a-uuid"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)

	_, err = env.lifecycle.IssueCard(ctx, immigration, dto.IssueCardRequest{StudentID: uuid.NewString()})
	assert.ErrorIs(t, err, services.ErrStudentNotFound)

	_, err = env.lifecycle.IssueCard(ctx, institutionCaller(other), dto.IssueCardRequest{StudentID: student.ID})
	assert.ErrorIs(t, err, services.ErrStudentNotFound)
}

func TestIssueAfterRevoke(t *testing.T) {
	env := newTestEnv(t)
	_, student, card := env.seedCard(t)
	ctx := context.Background()

	_, err := env.lifecycle.RevokeCard(ctx, immigration, card.ID)
	require.NoError(t, err)

	replacement, err := env.lifecycle.IssueCard(ctx, immigration, dto.IssueCardRequest{StudentID: student.ID})
	require.NoError(t, err)
	assert.NotEqual(t, card.ID, replacement.ID)
	assert.NotEqual(t, card.CardNumber, replacement.CardNumber)

	_, err = env.lifecycle.ReinstateCard(ctx, immigration, card.ID)
	assert.ErrorIs(t, err, services.ErrCardAlreadyIssued)

	stored, err := env.cards.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CardRevoked, stored.Status)
}

func TestIssueCardLosesRace(t *testing.T) {
	env := newTestEnv(t)
	inst := env.seedInstitution(t, "Chiang Mai University")
	student := env.seedStudent(t, inst, true)

	cards := &interleavedCards{CardRepository: env.cards, before: func(int) error {
		require.NoError(t, env.db.Create(&domain.StudentCard{
			StudentID:     student.ID,
			InstitutionID: inst.ID,
			CardNumber:    "IMS-WINNER0001",
			Status:        domain.CardActive,
			TokenVersion:  1,
			IssuedAt:      time.Now().UTC(),
		}).Error)
		return gorm.ErrDuplicatedKey
	}}
	lifecycle := services.NewCardService(cards, env.ledger, env.students, nil, env.metrics, logger.Discard())

	_, err := lifecycle.IssueCard(context.Background(), immigration, dto.IssueCardRequest{StudentID: student.ID})
	assert.ErrorIs(t, err, services.ErrCardAlreadyIssued)
	assert.Equal(t, 1, cards.calls, "a lost race is not retried")
}

func TestIssueCardRetriesNumberClash(t *testing.T) {
	env := newTestEnv(t)
	inst := env.seedInstitution(t, "Chiang Mai University")
	student := env.seedStudent(t, inst, true)

	cards := &interleavedCards{CardRepository: env.cards, before: func(call int) error {
		if call == 1 {
			return gorm.ErrDuplicatedKey
		}
		return nil
	}}
	lifecycle := services.NewCardService(cards, env.ledger, env.students, nil, env.metrics, logger.Discard())

	card, err := lifecycle.IssueCard(context.Background(), immigration, dto.IssueCardRequest{StudentID: student.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, cards.calls)
	assert.Equal(t, student.ID, card.StudentID)
}

func TestConcurrentIssueLeavesOneLiveCard(t *testing.T) {
	env := newTestEnv(t)
	inst := env.seedInstitution(t, "Chiang Mai University")
	student := env.seedStudent(t, inst, true)

	const writers = 5
	errs := make([]error, writers)
	var wg sync.WaitGroup
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = env.lifecycle.IssueCard(context.Background(), immigration, dto.IssueCardRequest{StudentID: student.ID})
		}()
	}
	wg.Wait()

	issued := 0
	for _, err := range errs {
		if err == nil {
			issued++
			continue
		}
		assert.ErrorIs(t, err, services.ErrCardAlreadyIssued)
	}
	assert.Equal(t, 1, issued)

	live, err := env.cards.CountLiveByStudent(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), live)
}

func TestReissueChainsLedger(t *testing.T) {
	env := newTestEnv(t)
	_, _, card := env.seedCard(t)
	ctx := context.Background()

	reissued, err := env.lifecycle.ReissueCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, reissued.TokenVersion)
	assert.NotEqual(t, card.RecordHash, reissued.RecordHash)
	assert.Equal(t, card.CardNumber, reissued.CardNumber)

	entries, err := env.ledger.ListByCard(ctx, card.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].BlockchainTxID, entries[1].PrevTxID)
	assert.Equal(t, reissued.BlockchainTxID, entries[1].BlockchainTxID)

	stored, err := env.cards.FindByID(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, reissued.RecordHash, stored.RecordHash)
	assert.Equal(t, 2, stored.TokenVersion)
}

func TestStatusTransitions(t *testing.T) {
	env := newTestEnv(t)
	_, _, card := env.seedCard(t)
	ctx := context.Background()

	revoked, err := env.lifecycle.RevokeCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CardRevoked), revoked.Status)
	assert.Equal(t, card.TokenVersion, revoked.TokenVersion)

	_, err = env.lifecycle.RevokeCard(ctx, immigration, card.ID)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = env.lifecycle.ExpireCard(ctx, immigration, card.ID)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
	_, err = env.lifecycle.ReissueCard(ctx, immigration, card.ID)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)

	reinstated, err := env.lifecycle.ReinstateCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CardActive), reinstated.Status)
	assert.Equal(t, card.TokenVersion+1, reinstated.TokenVersion)

	expired, err := env.lifecycle.ExpireCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, string(domain.CardExpired), expired.Status)

	_, err = env.lifecycle.ReinstateCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.ReinstateCard(ctx, immigration, card.ID)
	assert.ErrorIs(t, err, services.ErrInvalidTransition)
}

func TestReinstatedCardVerifies(t *testing.T) {
	env := newTestEnv(t)
	_, _, card := env.seedCard(t)
	ctx := context.Background()
	stale := env.mint(t, card.ID)

	_, err := env.lifecycle.RevokeCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.ReinstateCard(ctx, immigration, card.ID)
	require.NoError(t, err)

	verdict, err := env.verifier.VerifyCard(ctx, stale, dto.ScanMeta{})
	require.NoError(t, err)
	assert.Equal(t, dto.ReasonTokenVersionMismatch, verdict.Reason)

	verdict, err = env.verifier.VerifyCard(ctx, env.mint(t, card.ID), dto.ScanMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid())
}

func TestReanchorCard(t *testing.T) {
	env := newTestEnv(t)
	_, student, card := env.seedCard(t)
	ctx := context.Background()

	same, err := env.lifecycle.ReanchorCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.TokenVersion, same.TokenVersion)
	assert.Equal(t, card.RecordHash, same.RecordHash)
	assert.NotEqual(t, card.BlockchainTxID, same.BlockchainTxID)

	require.NoError(t, env.db.Model(&domain.Student{}).
		Where("id = ?", student.ID).
		Update("full_name", "Anan Sukjai-Phommachanh").Error)

	changed, err := env.lifecycle.ReanchorCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.TokenVersion+1, changed.TokenVersion)
	assert.NotEqual(t, card.RecordHash, changed.RecordHash)

	history, err := env.lifecycle.LedgerHistory(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Len(t, history, 3)

	verdict, err := env.verifier.VerifyCard(ctx, env.mint(t, card.ID), dto.ScanMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid())
}

func TestReanchorRepairsTamperedHash(t *testing.T) {
	env := newTestEnv(t)
	_, _, card := env.seedCard(t)
	ctx := context.Background()

	require.NoError(t, env.db.Model(&domain.StudentCard{}).
		Where("id = ?", card.ID).
		Update("record_hash", "tampered").Error)

	repaired, err := env.lifecycle.ReanchorCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	assert.Equal(t, card.TokenVersion+1, repaired.TokenVersion)

	verdict, err := env.verifier.VerifyCard(ctx, env.mint(t, card.ID), dto.ScanMeta{})
	require.NoError(t, err)
	assert.True(t, verdict.Valid())
}

func TestLifecycleOwnership(t *testing.T) {
	env := newTestEnv(t)
	inst, student, card := env.seedCard(t)
	other := env.seedInstitution(t, "Kasetsart University")
	ctx := context.Background()

	_, err := env.lifecycle.RevokeCard(ctx, institutionCaller(other), card.ID)
	assert.ErrorIs(t, err, services.ErrCardNotFound)
	_, err = env.lifecycle.GetStudentCard(ctx, institutionCaller(other), student.ID)
	assert.ErrorIs(t, err, services.ErrCardNotFound)
	_, err = env.lifecycle.LedgerHistory(ctx, institutionCaller(other), card.ID)
	assert.ErrorIs(t, err, services.ErrCardNotFound)

	got, err := env.lifecycle.GetStudentCard(ctx, institutionCaller(inst), student.ID)
	require.NoError(t, err)
	assert.Equal(t, card.ID, got.ID)

	_, err = env.lifecycle.RevokeCard(ctx, institutionCaller(inst), card.ID)
	assert.NoError(t, err)
}

func TestLifecycleEvents(t *testing.T) {
	env := newTestEnv(t)
	_, _, card := env.seedCard(t)
	ctx := context.Background()

	_, err := env.lifecycle.ReissueCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.RevokeCard(ctx, immigration, card.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.ReanchorCard(ctx, immigration, card.ID)
	require.NoError(t, err)

	assert.Equal(t, []string{
		dto.EventCardIssued,
		dto.EventCardReissued,
		dto.EventCardStatusChanged,
		dto.EventCardAnchored,
	}, env.producer.types())

	for _, ev := range env.producer.events {
		assert.Equal(t, card.ID, ev.CardID)
		assert.Equal(t, immigration.UserID, ev.ActorID)
		assert.False(t, ev.OccurredAt.IsZero())
	}
}
