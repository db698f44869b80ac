package storage

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrompt(name string, version int, status string) AIPrompt {
	return AIPrompt{
		ID:          uuid.NewString(),
		Name:        name,
		Version:     version,
		Status:      status,
		Description: "test prompt",
		Parameters: PromptParameters{
			Model:       "google/gemini-2.5-flash",
			Temperature: 0.3,
			MaxTokens:   500,
		},
		ExpectedVars: []string{"goal"},
		Template:     "Goal: {{ goal }}",
	}
}

func TestActivePromptResolution(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 1, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 2, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 3, PromptStatusInactive)))

	// Highest active version wins, inactive rows never resolve
	prompt, err := store.GetActivePrompt(ctx, "contribution_triage_agent")
	require.NoError(t, err)
	assert.Equal(t, 2, prompt.Version)
	assert.Equal(t, "google/gemini-2.5-flash", prompt.Parameters.Model)
	assert.Equal(t, []string{"goal"}, prompt.ExpectedVars)
}

func TestGetPromptByNameAndVersion(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	require.NoError(t, store.CreatePrompt(ctx, testPrompt("direct_response_agent", 1, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("direct_response_agent", 2, PromptStatusActive)))

	v1 := 1
	prompt, err := store.GetPromptByNameAndVersion(ctx, "direct_response_agent", &v1)
	require.NoError(t, err)
	assert.Equal(t, 1, prompt.Version)

	// nil version falls back to active resolution
	prompt, err = store.GetPromptByNameAndVersion(ctx, "direct_response_agent", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, prompt.Version)

	v9 := 9
	_, err = store.GetPromptByNameAndVersion(ctx, "direct_response_agent", &v9)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListActivePrompts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 1, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 2, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("direct_response_agent", 1, PromptStatusActive)))
	require.NoError(t, store.CreatePrompt(ctx, testPrompt("old_prompt", 1, PromptStatusDeprecated)))

	prompts, err := store.ListActivePrompts(ctx)
	require.NoError(t, err)
	require.Len(t, prompts, 2)
	assert.Equal(t, "contribution_triage_agent", prompts[0].Name)
	assert.Equal(t, 2, prompts[0].Version)
	assert.Equal(t, "direct_response_agent", prompts[1].Name)
}

func TestPromptVersionUniqueness(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 1, PromptStatusActive)))
	err := store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 1, PromptStatusActive))
	assert.Error(t, err)
}

func TestDeleteAllPrompts(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	require.NoError(t, store.CreatePrompt(ctx, testPrompt("contribution_triage_agent", 1, PromptStatusActive)))
	require.NoError(t, store.DeleteAllPrompts(ctx))

	_, err := store.GetActivePrompt(ctx, "contribution_triage_agent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPromptResponseFormatRoundTrip(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	require.NoError(t, store.Init())

	ctx := context.Background()

	prompt := testPrompt("contribution_triage_agent", 1, PromptStatusActive)
	prompt.Parameters.ResponseFormat = &ResponseFormat{Type: "json_object"}
	level := 7
	prompt.AssertivenessLevel = &level
	require.NoError(t, store.CreatePrompt(ctx, prompt))

	got, err := store.GetActivePrompt(ctx, "contribution_triage_agent")
	require.NoError(t, err)
	require.NotNil(t, got.Parameters.ResponseFormat)
	assert.Equal(t, "json_object", got.Parameters.ResponseFormat.Type)
	require.NotNil(t, got.AssertivenessLevel)
	assert.Equal(t, 7, *got.AssertivenessLevel)
}
