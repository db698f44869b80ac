// Package session implements the legacy whole-document chat and
// synthesis flow. State lives in one JSON document per forge; every
// mutation is an unguarded read-modify-write, so concurrent writers race
// and the last one wins.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eike-heimpel/forge/internal/config"
	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/storage"
)

// Prompt names for the legacy flow.
const (
	chatPromptName      = "role_chat_response"
	synthesisPromptName = "synthesis_facilitator_briefings"
)

var (
	ErrRoleNotFound    = errors.New("role not found")
	ErrNoContributions = errors.New("no contributions found to synthesize")
	ErrSynthesisFailed = errors.New("failed to generate synthesis")
)

type Service struct {
	states    storage.StateRepository
	briefings storage.BriefingRepository
	prompts   storage.PromptRepository
	client    openrouter.Client
	defaults  config.SessionConfig
	logger    *slog.Logger
}

func NewService(
	states storage.StateRepository,
	briefings storage.BriefingRepository,
	prompts storage.PromptRepository,
	client openrouter.Client,
	defaults config.SessionConfig,
	logger *slog.Logger,
) *Service {
	return &Service{
		states:    states,
		briefings: briefings,
		prompts:   prompts,
		client:    client,
		defaults:  defaults,
		logger:    logger.With("component", "session"),
	}
}

// completionRequest builds the model call for a legacy prompt. Prompt rows
// for this flow predate per-prompt parameters and may carry none, so gaps
// fall back to the session config defaults.
func (s *Service) completionRequest(p *storage.AIPrompt, rendered string, defaultMaxTokens int) openrouter.ChatCompletionRequest {
	model := p.Parameters.Model
	if model == "" {
		model = s.defaults.Model
	}
	temperature := p.Parameters.Temperature
	if temperature == 0 {
		temperature = s.defaults.Temperature
	}
	maxTokens := p.Parameters.MaxTokens
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}
	return openrouter.ChatCompletionRequest{
		Model:       model,
		Messages:    []openrouter.Message{{Role: "user", Content: rendered}},
		Temperature: &temperature,
		MaxTokens:   maxTokens,
	}
}

// Chat handles one role chat message. Questions get an AI reply; plain
// context additions do not. Either way the message lands in the
// contribution log for the next synthesis.
func (s *Service) Chat(ctx context.Context, forgeID, roleID, message string, isQuestion bool) (string, error) {
	s.logger.Info("Processing chat", "forge_id", forgeID, "role_id", roleID, "is_question", isQuestion)

	state, err := s.states.GetState(ctx, forgeID)
	if err != nil {
		return "", fmt.Errorf("load state: %w", err)
	}

	role := findRole(state, roleID)
	if role == nil {
		return "", fmt.Errorf("role %s: %w", roleID, ErrRoleNotFound)
	}

	roleChat, err := s.appendChatMessage(ctx, forgeID, roleID, message, "user")
	if err != nil {
		return "", fmt.Errorf("save chat message: %w", err)
	}

	var aiResponse string
	if isQuestion {
		aiResponse = s.answerQuestion(ctx, forgeID, state, role, roleChat)
		if aiResponse != "" {
			if _, err := s.appendChatMessage(ctx, forgeID, roleID, aiResponse, "ai"); err != nil {
				s.logger.Warn("Failed to save AI chat message", "error", err)
			}
		}
	}

	contributionText := message
	if isQuestion && aiResponse != "" {
		contributionText = fmt.Sprintf("Question: %s\n\nAI Facilitator Response: %s", message, aiResponse)
	}
	if err := s.appendContribution(ctx, forgeID, roleID, contributionText); err != nil {
		s.logger.Warn("Failed to add contribution", "error", err)
	}

	return aiResponse, nil
}

// answerQuestion generates the facilitator reply for a question. Any
// failure degrades to no reply; the question itself is still logged.
func (s *Service) answerQuestion(ctx context.Context, forgeID string, state *storage.StateDocument, role *storage.StateRole, roleChat *storage.RoleChat) string {
	chatPrompt, err := s.prompts.GetActivePrompt(ctx, chatPromptName)
	if err != nil {
		s.logger.Error("No active chat response prompt", "error", err)
		return ""
	}

	synthesisContent := "No current project context"
	currentBriefing := "No current briefing"

	if len(state.Syntheses) > 0 {
		latest := state.Syntheses[len(state.Syntheses)-1]
		synthesisContent = latest.Content

		briefings, err := s.briefings.GetBriefings(ctx, latest.ID)
		if err != nil {
			s.logger.Warn("Failed to load briefings", "synthesis_id", latest.ID, "error", err)
		}
		for _, b := range briefings {
			if b.RoleID == role.ID {
				currentBriefing = b.Briefing
				break
			}
		}
	}

	rendered := prompt.Render(chatPrompt.Template, prompt.Vars{
		"role":              prompt.Map(map[string]string{"name": role.Name, "title": role.Title}),
		"current_briefing":  prompt.String(currentBriefing),
		"synthesis":         prompt.String(synthesisContent),
		"chat_history_text": prompt.String(chatHistory(roleChat, role.Name)),
	})

	resp, err := s.client.CreateChatCompletion(ctx, s.completionRequest(chatPrompt, rendered, s.defaults.ChatMaxTokens))
	if err != nil {
		s.logger.Error("Chat response model call failed", "error", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// chatHistory renders the role chat as name-attributed lines.
func chatHistory(roleChat *storage.RoleChat, roleName string) string {
	var lines []string
	for _, msg := range roleChat.Messages {
		author := "AI"
		if msg.Author == "user" {
			author = roleName
		}
		lines = append(lines, author+": "+msg.Content)
	}
	return strings.Join(lines, "\n")
}

func findRole(state *storage.StateDocument, roleID string) *storage.StateRole {
	for i := range state.Roles {
		if state.Roles[i].ID == roleID {
			return &state.Roles[i]
		}
	}
	return nil
}

// appendChatMessage reads the document, appends one message to the
// role's chat (creating the chat if needed), and writes the whole
// document back.
func (s *Service) appendChatMessage(ctx context.Context, forgeID, roleID, content, author string) (*storage.RoleChat, error) {
	state, err := s.states.GetState(ctx, forgeID)
	if err != nil {
		return nil, err
	}

	var roleChat *storage.RoleChat
	for i := range state.RoleChats {
		if state.RoleChats[i].RoleID == roleID {
			roleChat = &state.RoleChats[i]
			break
		}
	}
	if roleChat == nil {
		state.RoleChats = append(state.RoleChats, storage.RoleChat{
			RoleID:   roleID,
			Messages: []storage.ChatMessage{},
		})
		roleChat = &state.RoleChats[len(state.RoleChats)-1]
	}

	roleChat.Messages = append(roleChat.Messages, storage.ChatMessage{
		ID:        uuid.NewString(),
		Author:    author,
		Content:   content,
		Timestamp: time.Now().Format(time.RFC3339),
	})

	if err := s.states.PutState(ctx, forgeID, state); err != nil {
		return nil, err
	}
	return roleChat, nil
}

// appendContribution logs a contribution attributed to a role.
func (s *Service) appendContribution(ctx context.Context, forgeID, roleID, text string) error {
	state, err := s.states.GetState(ctx, forgeID)
	if err != nil {
		return err
	}

	author := findRole(state, roleID)
	if author == nil {
		return fmt.Errorf("author role %s: %w", roleID, ErrRoleNotFound)
	}

	state.Contributions = append(state.Contributions, storage.StateContribution{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().Format(time.RFC3339),
		AuthorID:    roleID,
		AuthorName:  author.Name,
		AuthorTitle: author.Title,
		Text:        text,
		Role:        author.Name + " - " + author.Title,
	})

	return s.states.PutState(ctx, forgeID, state)
}
