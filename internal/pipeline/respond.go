package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/storage"
)

const directResponseSystemMessage = "You are Forge, an AI facilitator helping teams collaborate effectively."

// directResponseContext is the number of recent contributions fed to the
// direct responder.
const directResponseContext = 10

// GenerateDirectResponse answers the triggering contribution with an
// AI_RESPONSE built from the recent conversation. A missing prompt aborts
// silently; the pipeline has already committed to acting, so there is
// nothing useful to fail toward.
func (e *Engine) GenerateDirectResponse(ctx context.Context, forgeID, contributionID string) error {
	e.logger.Info("Generating direct response", "contribution_id", contributionID)

	responsePrompt, err := e.prompts.GetActivePrompt(ctx, directResponsePromptName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Error("No active direct response prompt found")
			return nil
		}
		return fmt.Errorf("load direct response prompt: %w", err)
	}

	recent, err := e.contributions.GetLatestContributions(ctx, forgeID, directResponseContext)
	if err != nil {
		return fmt.Errorf("load recent contributions: %w", err)
	}

	goal, err := e.forges.GetForgeGoal(ctx, forgeID)
	if err != nil {
		// Only a missing forge degrades to an empty goal; infrastructure
		// failures abort the action
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load forge goal: %w", err)
		}
		e.logger.Warn("Forge goal unavailable for direct response", "forge_id", forgeID, "error", err)
		goal = ""
	}

	rendered := prompt.Render(responsePrompt.Template, prompt.Vars{
		"context": prompt.String(conversationContext(recent, goal)),
	})

	resp, err := e.client.CreateChatCompletion(ctx, chatRequest(responsePrompt, directResponseSystemMessage, rendered))
	if err != nil {
		return fmt.Errorf("direct response model call: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return err
	}

	response := storage.Contribution{
		ID:                    uuid.NewString(),
		ForgeID:               forgeID,
		AuthorID:              systemAuthorID,
		Type:                  storage.ContributionTypeAIResponse,
		Content:               storage.ContributionContent{Text: text},
		SourceContributionIDs: []string{contributionID},
	}
	if err := e.contributions.CreateContribution(ctx, response); err != nil {
		return fmt.Errorf("persist AI response: %w", err)
	}

	e.logger.Info("Created AI response", "response_id", response.ID, "contribution_id", contributionID)
	return nil
}

// conversationContext builds the direct responder's view of the recent
// conversation: an optional goal line, then one timestamped line per
// contribution in chronological order.
func conversationContext(contributions []storage.Contribution, goal string) string {
	var parts []string

	if goal != "" {
		parts = append(parts, "Goal: "+goal)
	}
	parts = append(parts, "Recent conversation:")

	for _, c := range contributions {
		author := "AI"
		if c.Type == storage.ContributionTypeUserMessage {
			author = "User"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", c.CreatedAt.Format("15:04"), author, c.Text()))
	}

	return strings.Join(parts, "\n")
}
