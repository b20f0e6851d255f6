package services_test

import (
	"context"
	"testing"

	"github.com/SundayYogurt/ims_service/internal/dto"
	"github.com/SundayYogurt/ims_service/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListVerificationsScopesInstitutions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instA, _, cardA := env.seedCard(t)
	instB, _, cardB := env.seedCard(t)

	for _, id := range []string{cardA.ID, cardA.ID, cardB.ID} {
		_, err := env.verifier.VerifyCard(ctx, env.mint(t, id), dto.ScanMeta{ClientIP: "10.0.0.1"})
		require.NoError(t, err)
	}

	all, err := env.audit.ListVerifications(ctx, immigration, dto.VerificationLogQuery{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
	assert.Equal(t, cardB.ID, *all[0].CardID, "newest first")

	own, err := env.audit.ListVerifications(ctx, institutionCaller(instA), dto.VerificationLogQuery{})
	require.NoError(t, err)
	assert.Len(t, own, 2)
	for _, row := range own {
		assert.Equal(t, instA.ID, *row.InstitutionID)
	}

	byCard, err := env.audit.ListVerifications(ctx, institutionCaller(instB), dto.VerificationLogQuery{CardID: cardA.ID})
	require.NoError(t, err)
	assert.Empty(t, byCard)

	limited, err := env.audit.ListVerifications(ctx, immigration, dto.VerificationLogQuery{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListVerificationsValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.audit.ListVerifications(ctx, dto.Caller{}, dto.VerificationLogQuery{})
	assert.ErrorIs(t, err, services.ErrUnauthorized)

	_, err = env.audit.ListVerifications(ctx, immigration, dto.VerificationLogQuery{Limit: 1000})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
	_, err = env.audit.ListVerifications(ctx, immigration, dto.VerificationLogQuery{CardID: "nope"})
	assert.ErrorIs(t, err, services.ErrInvalidInput)
}
