package storage

import "context"

type ForgeRepository interface {
	CreateForge(ctx context.Context, forge Forge) error
	GetForge(ctx context.Context, forgeID string) (*Forge, error)
	GetForgeGoal(ctx context.Context, forgeID string) (string, error)
	UpdateForgeLastSynthesis(ctx context.Context, forgeID, synthesisID string) error
}

type ContributionRepository interface {
	CreateContribution(ctx context.Context, contribution Contribution) error
	GetContribution(ctx context.Context, contributionID string) (*Contribution, error)
	// GetForgeContributions returns the full history in chronological
	// order, ties broken by insertion order.
	GetForgeContributions(ctx context.Context, forgeID string) ([]Contribution, error)
	// GetLatestContributions returns the newest limit contributions in
	// chronological order.
	GetLatestContributions(ctx context.Context, forgeID string, limit int) ([]Contribution, error)
}

type PromptRepository interface {
	// GetActivePrompt resolves the highest active version for a name.
	GetActivePrompt(ctx context.Context, name string) (*AIPrompt, error)
	// GetPromptByNameAndVersion resolves a specific version, or the
	// active one when version is nil.
	GetPromptByNameAndVersion(ctx context.Context, name string, version *int) (*AIPrompt, error)
	// ListActivePrompts returns one prompt per name, the highest active
	// version each.
	ListActivePrompts(ctx context.Context) ([]AIPrompt, error)
	CreatePrompt(ctx context.Context, prompt AIPrompt) error
	// DeleteAllPrompts is used by the seed CLI only.
	DeleteAllPrompts(ctx context.Context) error
}

type BriefingRepository interface {
	AddBriefings(ctx context.Context, synthesisID string, briefings []Briefing) error
	GetBriefings(ctx context.Context, synthesisID string) ([]Briefing, error)
}

// StateRepository is the legacy whole-document flow. Callers read the full
// document, mutate it in memory, and write it back; concurrent writers
// race and the last one wins.
type StateRepository interface {
	GetState(ctx context.Context, forgeID string) (*StateDocument, error)
	PutState(ctx context.Context, forgeID string, doc *StateDocument) error
}
