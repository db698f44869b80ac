package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetStateCreatesInitialDocument(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	forgeID := uuid.NewString()

	doc, err := store.GetState(ctx, forgeID)
	require.NoError(t, err)
	assert.Len(t, doc.Roles, 2)
	assert.NotEmpty(t, doc.Goal)
	assert.Empty(t, doc.Contributions)

	// Second read returns the persisted document, not a fresh one
	doc.Goal = "Revised goal"
	require.NoError(t, store.PutState(ctx, forgeID, doc))

	doc2, err := store.GetState(ctx, forgeID)
	require.NoError(t, err)
	assert.Equal(t, "Revised goal", doc2.Goal)
}

func TestPutStateLastWriterWins(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	forgeID := uuid.NewString()

	base, err := store.GetState(ctx, forgeID)
	require.NoError(t, err)

	// Two writers start from the same snapshot; the second write
	// silently discards the first's change
	docA := *base
	docA.Contributions = append(docA.Contributions, StateContribution{ID: "a", Text: "from A"})

	docB := *base
	docB.Syntheses = append(docB.Syntheses, StateSynthesis{ID: "b", Content: "from B"})

	require.NoError(t, store.PutState(ctx, forgeID, &docA))
	require.NoError(t, store.PutState(ctx, forgeID, &docB))

	final, err := store.GetState(ctx, forgeID)
	require.NoError(t, err)
	assert.Empty(t, final.Contributions)
	require.Len(t, final.Syntheses, 1)
	assert.Equal(t, "from B", final.Syntheses[0].Content)
}

func TestBriefings(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()
	synthesisID := uuid.NewString()

	err := store.AddBriefings(ctx, synthesisID, []Briefing{
		{RoleID: "1", Briefing: "Focus on the launch checklist"},
		{RoleID: "2", Briefing: "Review open legal questions"},
	})
	require.NoError(t, err)

	briefings, err := store.GetBriefings(ctx, synthesisID)
	require.NoError(t, err)
	require.Len(t, briefings, 2)
	assert.Equal(t, "1", briefings[0].RoleID)
	assert.Equal(t, synthesisID, briefings[0].SynthesisID)

	// Unknown synthesis has no briefings
	briefings, err = store.GetBriefings(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, briefings)
}
