package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/storage"
)

type individualBriefing struct {
	Briefing   string   `json:"briefing"`
	Questions  []string `json:"questions"`
	Todos      []string `json:"todos"`
	Priorities string   `json:"priorities"`
}

type briefingPackage struct {
	OverallContext      string                        `json:"overallContext"`
	IndividualBriefings map[string]individualBriefing `json:"individualBriefings"`
}

// Synthesize condenses the whole conversation into a synthesis record
// plus one briefing per role. Roles the model skips get a placeholder
// briefing rather than being omitted.
func (s *Service) Synthesize(ctx context.Context, forgeID string) (string, error) {
	s.logger.Info("Starting synthesis", "forge_id", forgeID)

	state, err := s.states.GetState(ctx, forgeID)
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}
	if len(state.Contributions) == 0 {
		return "", ErrNoContributions
	}

	synthesisPrompt, err := s.prompts.GetActivePrompt(ctx, synthesisPromptName)
	if err != nil {
		return "", fmt.Errorf("load synthesis prompt: %w", err)
	}

	var contributionLines []string
	for _, c := range state.Contributions {
		contributionLines = append(contributionLines, fmt.Sprintf("%s (%s): %s", c.AuthorName, c.AuthorTitle, c.Text))
	}

	var roleLines []string
	for _, r := range state.Roles {
		roleLines = append(roleLines, fmt.Sprintf("- %s: %s (ID: %s)", r.Name, r.Title, r.ID))
	}

	rendered := prompt.Render(synthesisPrompt.Template, prompt.Vars{
		"goal":               prompt.String(state.Goal),
		"roles_text":         prompt.String(strings.Join(roleLines, "\n")),
		"contributions_text": prompt.String(strings.Join(contributionLines, "\n\n")),
	})

	resp, err := s.client.CreateChatCompletion(ctx, s.completionRequest(synthesisPrompt, rendered, s.defaults.SynthMaxTokens))
	if err != nil {
		s.logger.Error("Synthesis model call failed", "error", err)
		return "", fmt.Errorf("%w: %s", ErrSynthesisFailed, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: model returned no choices", ErrSynthesisFailed)
	}

	var pkg briefingPackage
	if err := json.Unmarshal([]byte(stripCodeFences(resp.Choices[0].Message.Content)), &pkg); err != nil {
		s.logger.Error("Failed to parse synthesis JSON", "error", err)
		return "", fmt.Errorf("%w: %s", ErrSynthesisFailed, err)
	}

	synthesisID := uuid.NewString()
	sourceIDs := make([]string, 0, len(state.Contributions))
	for _, c := range state.Contributions {
		sourceIDs = append(sourceIDs, c.ID)
	}

	if err := s.appendSynthesis(ctx, forgeID, storage.StateSynthesis{
		ID:                  synthesisID,
		Content:             pkg.OverallContext,
		SourceContributions: sourceIDs,
		Timestamp:           time.Now().Format(time.RFC3339),
	}); err != nil {
		return "", fmt.Errorf("save synthesis: %w", err)
	}

	briefings := make([]storage.Briefing, 0, len(state.Roles))
	for _, role := range state.Roles {
		briefings = append(briefings, storage.Briefing{
			RoleID:   role.ID,
			Briefing: s.briefingText(role, pkg.IndividualBriefings),
		})
	}
	if err := s.briefings.AddBriefings(ctx, synthesisID, briefings); err != nil {
		return "", fmt.Errorf("save briefings: %w", err)
	}

	s.logger.Info("Synthesis completed", "forge_id", forgeID, "synthesis_id", synthesisID)
	return synthesisID, nil
}

// briefingText assembles one role's briefing: the model's text plus any
// non-empty sub-fields as labeled blocks in the fixed order questions,
// todos, priorities.
func (s *Service) briefingText(role storage.StateRole, briefings map[string]individualBriefing) string {
	individual, ok := briefings[role.ID]
	if !ok {
		s.logger.Warn("No briefing found for role", "role_id", role.ID)
		return fmt.Sprintf("Hi %s, no specific briefing was generated for your role. Please check the overall context.", role.Name)
	}

	text := individual.Briefing

	if len(individual.Questions) > 0 {
		var items []string
		for _, q := range individual.Questions {
			items = append(items, "- "+q)
		}
		text += "\n\n**Questions:**\n" + strings.Join(items, "\n")
	}

	if len(individual.Todos) > 0 {
		var items []string
		for _, todo := range individual.Todos {
			items = append(items, "- "+todo)
		}
		text += "\n\n**Next Steps:**\n" + strings.Join(items, "\n")
	}

	if individual.Priorities != "" {
		text += "\n\n**Priority:** " + individual.Priorities
	}

	return text
}

// appendSynthesis adds a synthesis record to the state document with the
// usual read-modify-write.
func (s *Service) appendSynthesis(ctx context.Context, forgeID string, synthesis storage.StateSynthesis) error {
	state, err := s.states.GetState(ctx, forgeID)
	if err != nil {
		return err
	}
	state.Syntheses = append(state.Syntheses, synthesis)
	return s.states.PutState(ctx, forgeID, state)
}

// stripCodeFences removes markdown code block wrappers some models add
// despite instructions.
func stripCodeFences(response string) string {
	clean := strings.TrimSpace(response)
	if strings.HasPrefix(clean, "```json") {
		clean = strings.ReplaceAll(clean, "```json", "")
		clean = strings.ReplaceAll(clean, "```", "")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.ReplaceAll(clean, "```", "")
	}
	return strings.TrimSpace(clean)
}
