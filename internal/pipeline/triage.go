package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eike-heimpel/forge/internal/prompt"
)

const triageSystemMessage = "You are a triage agent for a collaboration tool. Always respond with valid JSON."

// Triage decides what to do with a new contribution. Structural
// prerequisites (prompt, contribution, forge goal) fail hard; a present
// but malformed model response degrades to LOG_ONLY so transient model
// misbehavior never blocks the pipeline.
func (e *Engine) Triage(ctx context.Context, forgeID, contributionID string) (Action, error) {
	triagePrompt, err := e.prompts.GetActivePrompt(ctx, triagePromptName)
	if err != nil {
		return "", fmt.Errorf("load triage prompt: %w", err)
	}

	contribution, err := e.contributions.GetContribution(ctx, contributionID)
	if err != nil {
		return "", fmt.Errorf("load contribution: %w", err)
	}

	goal, err := e.forges.GetForgeGoal(ctx, forgeID)
	if err != nil {
		return "", fmt.Errorf("load forge goal: %w", err)
	}
	if goal == "" {
		return "", fmt.Errorf("forge %s has no goal", forgeID)
	}

	rendered := prompt.Render(triagePrompt.Template, prompt.Vars{
		"goal":                     prompt.String(goal),
		"latest_contribution_text": prompt.String(contribution.Text()),
	})

	resp, err := e.client.CreateChatCompletion(ctx, chatRequest(triagePrompt, triageSystemMessage, rendered))
	if err != nil {
		return "", fmt.Errorf("triage model call: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return "", err
	}
	e.logger.Debug("Triage response", "response", text)

	var decision struct {
		Action string `json:"action"`
	}
	if err := json.Unmarshal([]byte(text), &decision); err != nil {
		e.logger.Error("Invalid triage response, defaulting to LOG_ONLY", "response", text, "error", err)
		return ActionLogOnly, nil
	}

	switch Action(decision.Action) {
	case ActionLogOnly, ActionAnswerDirectly, ActionSynthesize:
		return Action(decision.Action), nil
	default:
		e.logger.Error("Unknown triage action, defaulting to LOG_ONLY", "action", decision.Action)
		return ActionLogOnly, nil
	}
}
