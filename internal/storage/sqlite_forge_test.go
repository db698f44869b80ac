package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForgeLifecycle(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	forgeID := uuid.NewString()

	forge := Forge{
		ID:   forgeID,
		Goal: "Ship the onboarding flow",
		Members: []ForgeMember{
			{UserID: uuid.NewString(), Role: MemberRoleOwner},
			{UserID: uuid.NewString(), Role: MemberRoleMember},
		},
	}

	err := store.CreateForge(ctx, forge)
	assert.NoError(t, err)

	got, err := store.GetForge(ctx, forgeID)
	require.NoError(t, err)
	assert.Equal(t, "Ship the onboarding flow", got.Goal)
	assert.Equal(t, ForgeStatusActive, got.Status)
	assert.Nil(t, got.LastSynthesisID)
	require.Len(t, got.Members, 2)
	assert.Equal(t, MemberRoleOwner, got.Members[0].Role)

	goal, err := store.GetForgeGoal(ctx, forgeID)
	assert.NoError(t, err)
	assert.Equal(t, "Ship the onboarding flow", goal)

	synthesisID := uuid.NewString()
	err = store.UpdateForgeLastSynthesis(ctx, forgeID, synthesisID)
	assert.NoError(t, err)

	got, err = store.GetForge(ctx, forgeID)
	require.NoError(t, err)
	require.NotNil(t, got.LastSynthesisID)
	assert.Equal(t, synthesisID, *got.LastSynthesisID)
}

func TestGetForgeNotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	_, err := store.GetForge(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = store.GetForgeGoal(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.UpdateForgeLastSynthesis(ctx, uuid.NewString(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
