package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/storage"
	"github.com/eike-heimpel/forge/internal/testutil"
)

func directResponsePrompt() *storage.AIPrompt {
	return &storage.AIPrompt{
		ID:      uuid.NewString(),
		Name:    directResponsePromptName,
		Version: 1,
		Status:  storage.PromptStatusActive,
		Parameters: storage.PromptParameters{
			Model:       "test-model",
			Temperature: 0.7,
			MaxTokens:   500,
		},
		ExpectedVars: []string{"context"},
		Template:     "Answer helpfully.\n\n{{ context }}",
	}
}

func recentContributions(forgeID string, n int) []storage.Contribution {
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	contributions := make([]storage.Contribution, n)
	for i := range contributions {
		contributions[i] = storage.Contribution{
			ID:        uuid.NewString(),
			ForgeID:   forgeID,
			AuthorID:  "user-1",
			Type:      storage.ContributionTypeUserMessage,
			Content:   storage.ContributionContent{Text: fmt.Sprintf("message %d", i)},
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
	}
	return contributions
}

func TestGenerateDirectResponse(t *testing.T) {
	store := new(testutil.MockStore)
	client := new(testutil.MockClient)
	engine := newTestEngine(store, client)

	forgeID := uuid.NewString()
	triggerID := uuid.NewString()

	store.On("GetActivePrompt", mock.Anything, directResponsePromptName).Return(directResponsePrompt(), nil)
	store.On("GetLatestContributions", mock.Anything, forgeID, 10).
		Return(recentContributions(forgeID, 3), nil)
	store.On("GetForgeGoal", mock.Anything, forgeID).Return("Ship the MVP", nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse("  Here is my answer.  "), nil)
	store.On("CreateContribution", mock.Anything, mock.MatchedBy(func(c storage.Contribution) bool {
		return c.Type == storage.ContributionTypeAIResponse &&
			c.ForgeID == forgeID &&
			c.AuthorID == systemAuthorID &&
			len(c.SourceContributionIDs) == 1 &&
			c.SourceContributionIDs[0] == triggerID &&
			c.Content.Text == "Here is my answer."
	})).Return(nil)

	err := engine.GenerateDirectResponse(context.Background(), forgeID, triggerID)
	require.NoError(t, err)
	store.AssertExpectations(t)

	// The rendered context carries the goal line, the header, and
	// timestamped conversation lines
	req := client.Calls[0].Arguments.Get(1).(openrouter.ChatCompletionRequest)
	assert.Contains(t, req.Messages[1].Content, "Goal: Ship the MVP")
	assert.Contains(t, req.Messages[1].Content, "Recent conversation:")
	assert.Contains(t, req.Messages[1].Content, "[09:00] User: message 0")
	assert.Contains(t, req.Messages[1].Content, "[09:02] User: message 2")
	assert.Equal(t, directResponseSystemMessage, req.Messages[0].Content)
}

func TestGenerateDirectResponseMissingPromptAbortsSilently(t *testing.T) {
	store := new(testutil.MockStore)
	client := new(testutil.MockClient)
	engine := newTestEngine(store, client)

	store.On("GetActivePrompt", mock.Anything, directResponsePromptName).
		Return(nil, fmt.Errorf("active prompt: %w", storage.ErrNotFound))

	err := engine.GenerateDirectResponse(context.Background(), uuid.NewString(), uuid.NewString())
	assert.NoError(t, err)
	client.AssertNotCalled(t, "CreateChatCompletion")
	store.AssertNotCalled(t, "CreateContribution")
}

func TestGenerateDirectResponseModelFailureAborts(t *testing.T) {
	store := new(testutil.MockStore)
	client := new(testutil.MockClient)
	engine := newTestEngine(store, client)

	forgeID := uuid.NewString()

	store.On("GetActivePrompt", mock.Anything, directResponsePromptName).Return(directResponsePrompt(), nil)
	store.On("GetLatestContributions", mock.Anything, forgeID, 10).
		Return(recentContributions(forgeID, 1), nil)
	store.On("GetForgeGoal", mock.Anything, forgeID).Return("Ship the MVP", nil)
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(openrouter.ChatCompletionResponse{}, fmt.Errorf("connection refused"))

	err := engine.GenerateDirectResponse(context.Background(), forgeID, uuid.NewString())
	assert.Error(t, err)
	store.AssertNotCalled(t, "CreateContribution")
}

func TestGenerateDirectResponseGoalLookupFailureAborts(t *testing.T) {
	store := new(testutil.MockStore)
	client := new(testutil.MockClient)
	engine := newTestEngine(store, client)

	forgeID := uuid.NewString()

	store.On("GetActivePrompt", mock.Anything, directResponsePromptName).Return(directResponsePrompt(), nil)
	store.On("GetLatestContributions", mock.Anything, forgeID, 10).
		Return(recentContributions(forgeID, 1), nil)
	store.On("GetForgeGoal", mock.Anything, forgeID).
		Return("", fmt.Errorf("database is locked"))

	err := engine.GenerateDirectResponse(context.Background(), forgeID, uuid.NewString())
	assert.Error(t, err)
	client.AssertNotCalled(t, "CreateChatCompletion")
	store.AssertNotCalled(t, "CreateContribution")
}

func TestGenerateDirectResponseMissingForgeDegradesToEmptyGoal(t *testing.T) {
	store := new(testutil.MockStore)
	client := new(testutil.MockClient)
	engine := newTestEngine(store, client)

	forgeID := uuid.NewString()

	store.On("GetActivePrompt", mock.Anything, directResponsePromptName).Return(directResponsePrompt(), nil)
	store.On("GetLatestContributions", mock.Anything, forgeID, 10).
		Return(recentContributions(forgeID, 1), nil)
	store.On("GetForgeGoal", mock.Anything, forgeID).
		Return("", fmt.Errorf("forge %s: %w", forgeID, storage.ErrNotFound))
	client.On("CreateChatCompletion", mock.Anything, mock.Anything).
		Return(testutil.ChatResponse("Answer without a goal."), nil)
	store.On("CreateContribution", mock.Anything, mock.Anything).Return(nil)

	err := engine.GenerateDirectResponse(context.Background(), forgeID, uuid.NewString())
	require.NoError(t, err)

	req := client.Calls[0].Arguments.Get(1).(openrouter.ChatCompletionRequest)
	assert.NotContains(t, req.Messages[1].Content, "Goal:")
}

func TestConversationContextWithoutGoal(t *testing.T) {
	contributions := recentContributions("f", 1)

	context := conversationContext(contributions, "")
	assert.NotContains(t, context, "Goal:")
	assert.Contains(t, context, "Recent conversation:")
}
