// Package pipeline implements the contribution-processing pipeline:
// triage decides what to do with a new contribution, then the matching
// executor generates a direct response or a full synthesis.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/storage"
)

// Action is a triage decision.
type Action string

const (
	ActionLogOnly        Action = "LOG_ONLY"
	ActionAnswerDirectly Action = "ANSWER_DIRECTLY"
	ActionSynthesize     Action = "SYNTHESIZE"
)

// systemAuthorID marks contributions authored by the facilitator itself.
const systemAuthorID = "00000000-0000-0000-0000-000000000000"

// Prompt names resolved against the prompt table.
const (
	triagePromptName         = "contribution_triage_agent"
	directResponsePromptName = "direct_response_agent"
	synthesisPromptName      = "synthesis_facilitator_default"
)

type Engine struct {
	prompts       storage.PromptRepository
	forges        storage.ForgeRepository
	contributions storage.ContributionRepository
	client        openrouter.Client
	logger        *slog.Logger
}

func NewEngine(
	prompts storage.PromptRepository,
	forges storage.ForgeRepository,
	contributions storage.ContributionRepository,
	client openrouter.Client,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		prompts:       prompts,
		forges:        forges,
		contributions: contributions,
		client:        client,
		logger:        logger.With("component", "pipeline"),
	}
}

// ProcessContribution runs the full pipeline for one new contribution:
// triage, then dispatch to the matching executor.
func (e *Engine) ProcessContribution(ctx context.Context, forgeID, contributionID string) error {
	e.logger.Info("Processing contribution", "forge_id", forgeID, "contribution_id", contributionID)

	action, err := e.Triage(ctx, forgeID, contributionID)
	if err != nil {
		return fmt.Errorf("triage: %w", err)
	}

	e.logger.Info("Triage decision", "contribution_id", contributionID, "action", string(action))
	RecordTriageDecision(string(action))

	switch action {
	case ActionLogOnly:
		e.logger.Info("Contribution logged only, no further action", "contribution_id", contributionID)
		return nil
	case ActionAnswerDirectly:
		return e.GenerateDirectResponse(ctx, forgeID, contributionID)
	case ActionSynthesize:
		return e.GenerateSynthesis(ctx, forgeID, contributionID)
	}
	return nil
}

// chatRequest builds a completion request from a prompt's stored
// parameters plus a fixed system instruction.
func chatRequest(p *storage.AIPrompt, systemMessage, userMessage string) openrouter.ChatCompletionRequest {
	temperature := p.Parameters.Temperature
	req := openrouter.ChatCompletionRequest{
		Model: p.Parameters.Model,
		Messages: []openrouter.Message{
			{Role: "system", Content: systemMessage},
			{Role: "user", Content: userMessage},
		},
		Temperature: &temperature,
		MaxTokens:   p.Parameters.MaxTokens,
	}
	if p.Parameters.ResponseFormat != nil {
		req.ResponseFormat = &openrouter.ResponseFormat{Type: p.Parameters.ResponseFormat.Type}
	}
	return req
}

func responseText(resp openrouter.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
