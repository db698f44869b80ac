package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/storage"
)

const synthesisSystemMessage = "You are Forge, an AI facilitator. Generate a structured synthesis as requested."

// GenerateSynthesis condenses the full contribution history into a
// structured AI_SYNTHESIS contribution. Synthesis always produces some
// persisted record: an unparsable model response yields a fixed fallback
// structure instead of an error.
func (e *Engine) GenerateSynthesis(ctx context.Context, forgeID, contributionID string) error {
	e.logger.Info("Generating full synthesis", "forge_id", forgeID)

	synthesisPrompt, err := e.prompts.GetActivePrompt(ctx, synthesisPromptName)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.Error("No active synthesis prompt found")
			return nil
		}
		return fmt.Errorf("load synthesis prompt: %w", err)
	}

	history, err := e.contributions.GetForgeContributions(ctx, forgeID)
	if err != nil {
		return fmt.Errorf("load contribution history: %w", err)
	}

	goal, err := e.forges.GetForgeGoal(ctx, forgeID)
	if err != nil {
		// Only a missing forge degrades to an empty goal; infrastructure
		// failures abort the action
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("load forge goal: %w", err)
		}
		e.logger.Warn("Forge goal unavailable for synthesis", "forge_id", forgeID, "error", err)
		goal = ""
	}

	rendered := prompt.Render(synthesisPrompt.Template, prompt.Vars{
		"goal":    prompt.String(goal),
		"history": prompt.String(conversationHistory(history)),
	})

	resp, err := e.client.CreateChatCompletion(ctx, chatRequest(synthesisPrompt, synthesisSystemMessage, rendered))
	if err != nil {
		return fmt.Errorf("synthesis model call: %w", err)
	}

	text, err := responseText(resp)
	if err != nil {
		return err
	}
	e.logger.Debug("Synthesis response", "response", text)

	structured := e.parseSynthesis(text)

	synthesis := storage.Contribution{
		ID:                    uuid.NewString(),
		ForgeID:               forgeID,
		AuthorID:              systemAuthorID,
		Type:                  storage.ContributionTypeAISynthesis,
		Content:               storage.ContributionContent{Structured: &structured},
		SourceContributionIDs: []string{contributionID},
	}
	if err := e.contributions.CreateContribution(ctx, synthesis); err != nil {
		return fmt.Errorf("persist synthesis: %w", err)
	}

	if err := e.forges.UpdateForgeLastSynthesis(ctx, forgeID, synthesis.ID); err != nil {
		return fmt.Errorf("update last synthesis reference: %w", err)
	}

	e.logger.Info("Created synthesis", "synthesis_id", synthesis.ID, "forge_id", forgeID)
	return nil
}

func (e *Engine) parseSynthesis(text string) storage.SynthesisContent {
	var raw struct {
		CurrentState         string   `json:"currentState"`
		EmergingConsensus    string   `json:"emergingConsensus"`
		OutstandingQuestions []string `json:"outstandingQuestions"`
		NextStepsNeeded      string   `json:"nextStepsNeeded"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		e.logger.Error("Failed to parse synthesis JSON", "error", err)
		return storage.SynthesisContent{
			CurrentState:         "Unable to parse synthesis response",
			OutstandingQuestions: []string{},
		}
	}

	// Missing fields stay at their zero values; questions normalize to an
	// empty list rather than null
	questions := raw.OutstandingQuestions
	if questions == nil {
		questions = []string{}
	}
	return storage.SynthesisContent{
		CurrentState:         raw.CurrentState,
		EmergingConsensus:    raw.EmergingConsensus,
		OutstandingQuestions: questions,
		NextStepsNeeded:      raw.NextStepsNeeded,
	}
}

// conversationHistory builds the synthesis view of the whole
// conversation: one dated line per contribution.
func conversationHistory(contributions []storage.Contribution) string {
	var parts []string
	for _, c := range contributions {
		author := "AI"
		if c.Type == storage.ContributionTypeUserMessage {
			author = "User"
		}
		parts = append(parts, fmt.Sprintf("[%s] %s: %s", c.CreatedAt.Format("2006-01-02 15:04"), author, c.Text()))
	}
	return strings.Join(parts, "\n")
}
