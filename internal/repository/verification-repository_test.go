package repository_test

import (
	"context"
	"testing"

	"github.com/SundayYogurt/ims_service/internal/domain"
	"github.com/SundayYogurt/ims_service/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerificationList(t *testing.T) {
	gdb := openDB(t)
	repo := repository.NewVerificationRepository(gdb)
	ctx := context.Background()

	card, student, instA, instB := "card-1", "student-1", "inst-a", "inst-b"
	reason := "card_revoked"
	rows := []*domain.VerificationRequest{
		{CardID: &card, StudentID: &student, InstitutionID: &instA, Result: domain.ScanValid},
		{CardID: &card, StudentID: &student, InstitutionID: &instA, Result: domain.ScanInvalid, Reason: &reason},
		{InstitutionID: &instB, Result: domain.ScanInvalid},
	}
	for _, r := range rows {
		require.NoError(t, repo.Create(ctx, r))
	}

	all, err := repo.List(ctx, repository.VerificationFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, rows[2].ID, all[0].ID)

	scoped, err := repo.List(ctx, repository.VerificationFilter{InstitutionID: instA})
	require.NoError(t, err)
	assert.Len(t, scoped, 2)

	byCard, err := repo.List(ctx, repository.VerificationFilter{CardID: card, Limit: 1})
	require.NoError(t, err)
	require.Len(t, byCard, 1)
	assert.Equal(t, reason, *byCard[0].Reason)

	page, err := repo.List(ctx, repository.VerificationFilter{StudentID: student, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Nil(t, page[0].Reason)
}
