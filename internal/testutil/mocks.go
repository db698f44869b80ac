// Package testutil provides centralized test mocks, fixtures, and helpers.
// All test files should import mocks from here instead of defining their own.
package testutil

import (
	"context"

	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/storage"
	"github.com/stretchr/testify/mock"
)

// MockClient implements openrouter.Client for tests.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateChatCompletion(ctx context.Context, req openrouter.ChatCompletionRequest) (openrouter.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(openrouter.ChatCompletionResponse), args.Error(1)
}

// MockStore implements all storage repository interfaces for tests.
// This is a composite mock covering ForgeRepository,
// ContributionRepository, PromptRepository, BriefingRepository, and
// StateRepository.
type MockStore struct {
	mock.Mock
}

// ForgeRepository methods

func (m *MockStore) CreateForge(ctx context.Context, forge storage.Forge) error {
	args := m.Called(ctx, forge)
	return args.Error(0)
}

func (m *MockStore) GetForge(ctx context.Context, forgeID string) (*storage.Forge, error) {
	args := m.Called(ctx, forgeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Forge), args.Error(1)
}

func (m *MockStore) GetForgeGoal(ctx context.Context, forgeID string) (string, error) {
	args := m.Called(ctx, forgeID)
	return args.String(0), args.Error(1)
}

func (m *MockStore) UpdateForgeLastSynthesis(ctx context.Context, forgeID, synthesisID string) error {
	args := m.Called(ctx, forgeID, synthesisID)
	return args.Error(0)
}

// ContributionRepository methods

func (m *MockStore) CreateContribution(ctx context.Context, contribution storage.Contribution) error {
	args := m.Called(ctx, contribution)
	return args.Error(0)
}

func (m *MockStore) GetContribution(ctx context.Context, contributionID string) (*storage.Contribution, error) {
	args := m.Called(ctx, contributionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Contribution), args.Error(1)
}

func (m *MockStore) GetForgeContributions(ctx context.Context, forgeID string) ([]storage.Contribution, error) {
	args := m.Called(ctx, forgeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Contribution), args.Error(1)
}

func (m *MockStore) GetLatestContributions(ctx context.Context, forgeID string, limit int) ([]storage.Contribution, error) {
	args := m.Called(ctx, forgeID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Contribution), args.Error(1)
}

// PromptRepository methods

func (m *MockStore) GetActivePrompt(ctx context.Context, name string) (*storage.AIPrompt, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AIPrompt), args.Error(1)
}

func (m *MockStore) GetPromptByNameAndVersion(ctx context.Context, name string, version *int) (*storage.AIPrompt, error) {
	args := m.Called(ctx, name, version)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.AIPrompt), args.Error(1)
}

func (m *MockStore) ListActivePrompts(ctx context.Context) ([]storage.AIPrompt, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.AIPrompt), args.Error(1)
}

func (m *MockStore) CreatePrompt(ctx context.Context, prompt storage.AIPrompt) error {
	args := m.Called(ctx, prompt)
	return args.Error(0)
}

func (m *MockStore) DeleteAllPrompts(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// BriefingRepository methods

func (m *MockStore) AddBriefings(ctx context.Context, synthesisID string, briefings []storage.Briefing) error {
	args := m.Called(ctx, synthesisID, briefings)
	return args.Error(0)
}

func (m *MockStore) GetBriefings(ctx context.Context, synthesisID string) ([]storage.Briefing, error) {
	args := m.Called(ctx, synthesisID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.Briefing), args.Error(1)
}

// StateRepository methods

func (m *MockStore) GetState(ctx context.Context, forgeID string) (*storage.StateDocument, error) {
	args := m.Called(ctx, forgeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.StateDocument), args.Error(1)
}

func (m *MockStore) PutState(ctx context.Context, forgeID string, doc *storage.StateDocument) error {
	args := m.Called(ctx, forgeID, doc)
	return args.Error(0)
}
