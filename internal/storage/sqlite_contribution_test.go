package storage

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContributionRoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	forgeID := uuid.NewString()
	contributionID := uuid.NewString()

	err := store.CreateContribution(ctx, Contribution{
		ID:       contributionID,
		ForgeID:  forgeID,
		AuthorID: uuid.NewString(),
		Type:     ContributionTypeUserMessage,
		Content:  ContributionContent{Text: "We should target mobile first"},
	})
	assert.NoError(t, err)

	got, err := store.GetContribution(ctx, contributionID)
	require.NoError(t, err)
	assert.Equal(t, forgeID, got.ForgeID)
	assert.Equal(t, ContributionTypeUserMessage, got.Type)
	assert.Equal(t, "We should target mobile first", got.Content.Text)
	assert.Empty(t, got.SourceContributionIDs)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestContributionSynthesisContent(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	contributionID := uuid.NewString()
	sourceID := uuid.NewString()

	err := store.CreateContribution(ctx, Contribution{
		ID:       contributionID,
		ForgeID:  uuid.NewString(),
		AuthorID: "ai-facilitator",
		Type:     ContributionTypeAISynthesis,
		Content: ContributionContent{
			Structured: &SynthesisContent{
				CurrentState:         "Team converging on mobile-first scope",
				EmergingConsensus:    "Mobile first",
				OutstandingQuestions: []string{"Which platforms at launch?"},
				NextStepsNeeded:      "Decide platform list",
			},
		},
		SourceContributionIDs: []string{sourceID},
	})
	require.NoError(t, err)

	got, err := store.GetContribution(ctx, contributionID)
	require.NoError(t, err)
	require.NotNil(t, got.Content.Structured)
	assert.Equal(t, "Team converging on mobile-first scope", got.Content.Structured.CurrentState)
	assert.Equal(t, []string{sourceID}, got.SourceContributionIDs)
	assert.Equal(t, "Current State: Team converging on mobile-first scope", got.Text())
}

func TestGetContributionNotFound(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	_, err := store.GetContribution(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestContributionOrdering(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	forgeID := uuid.NewString()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	// 12 contributions, the last two sharing one timestamp to exercise
	// the insertion-order tie-break
	var ids []string
	for i := 0; i < 12; i++ {
		createdAt := base.Add(time.Duration(i) * time.Minute)
		if i == 11 {
			createdAt = base.Add(10 * time.Minute)
		}
		id := uuid.NewString()
		ids = append(ids, id)
		err := store.CreateContribution(ctx, Contribution{
			ID:        id,
			ForgeID:   forgeID,
			AuthorID:  "user-1",
			Type:      ContributionTypeUserMessage,
			Content:   ContributionContent{Text: fmt.Sprintf("message %d", i)},
			CreatedAt: createdAt,
		})
		require.NoError(t, err)
	}

	all, err := store.GetForgeContributions(ctx, forgeID)
	require.NoError(t, err)
	require.Len(t, all, 12)
	assert.Equal(t, "message 0", all[0].Content.Text)
	// Same-timestamp rows keep insertion order
	assert.Equal(t, ids[10], all[10].ID)
	assert.Equal(t, ids[11], all[11].ID)

	latest, err := store.GetLatestContributions(ctx, forgeID, 10)
	require.NoError(t, err)
	require.Len(t, latest, 10)
	// Oldest two drop off, result stays chronological
	assert.Equal(t, "message 2", latest[0].Content.Text)
	assert.Equal(t, ids[11], latest[9].ID)
}
