// Package prompttest runs prompts against the model with caller-supplied
// variables, for evaluating prompt versions before activating them.
package prompttest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/prompt"
	"github.com/eike-heimpel/forge/internal/storage"
)

const harnessSystemMessage = "You are an AI assistant helping to test prompt responses."

// MissingVariablesError reports caller input that lacks variables the
// prompt declares. It is the one recoverable error kind the harness
// surfaces; everything else is embedded in the result.
type MissingVariablesError struct {
	Names []string
}

func (e *MissingVariablesError) Error() string {
	return "missing required variables: " + strings.Join(e.Names, ", ")
}

// Result is the outcome of one prompt test run. ExecutionTimeMS is
// measured in every case, including failures.
type Result struct {
	PromptName      string `json:"prompt_name"`
	PromptVersion   int    `json:"prompt_version"`
	RenderedPrompt  string `json:"rendered_prompt"`
	ModelResponse   string `json:"model_response"`
	ExecutionTimeMS int    `json:"execution_time_ms"`
	ModelUsed       string `json:"model_used"`
	TokensUsed      *int   `json:"tokens_used,omitempty"`
}

type Harness struct {
	client openrouter.Client
	logger *slog.Logger
}

func NewHarness(client openrouter.Client, logger *slog.Logger) *Harness {
	return &Harness{
		client: client,
		logger: logger.With("component", "prompttest"),
	}
}

// Test validates, renders, and executes a prompt. Missing variables
// return a MissingVariablesError; any later failure still yields a
// populated result with the error embedded in it, so the harness never
// raises past its own boundary.
func (h *Harness) Test(ctx context.Context, p *storage.AIPrompt, vars prompt.Vars) (*Result, error) {
	start := time.Now()

	if missing := prompt.Validate(p.Template, p.ExpectedVars, vars); len(missing) > 0 {
		return nil, &MissingVariablesError{Names: missing}
	}

	rendered := prompt.Render(p.Template, vars)

	temperature := p.Parameters.Temperature
	req := openrouter.ChatCompletionRequest{
		Model: p.Parameters.Model,
		Messages: []openrouter.Message{
			{Role: "system", Content: harnessSystemMessage},
			{Role: "user", Content: rendered},
		},
		Temperature: &temperature,
		MaxTokens:   p.Parameters.MaxTokens,
	}
	if p.Parameters.ResponseFormat != nil {
		req.ResponseFormat = &openrouter.ResponseFormat{Type: p.Parameters.ResponseFormat.Type}
	}

	resp, err := h.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return h.errorResult(p, start, err), nil
	}
	if len(resp.Choices) == 0 {
		return h.errorResult(p, start, fmt.Errorf("model returned no choices")), nil
	}

	var tokensUsed *int
	if resp.Usage.TotalTokens > 0 {
		total := resp.Usage.TotalTokens
		tokensUsed = &total
	}

	return &Result{
		PromptName:      p.Name,
		PromptVersion:   p.Version,
		RenderedPrompt:  rendered,
		ModelResponse:   strings.TrimSpace(resp.Choices[0].Message.Content),
		ExecutionTimeMS: int(time.Since(start).Milliseconds()),
		ModelUsed:       p.Parameters.Model,
		TokensUsed:      tokensUsed,
	}, nil
}

func (h *Harness) errorResult(p *storage.AIPrompt, start time.Time, err error) *Result {
	h.logger.Error("Error testing prompt", "prompt", p.Name, "error", err)
	return &Result{
		PromptName:      p.Name,
		PromptVersion:   p.Version,
		RenderedPrompt:  "Error occurred during rendering",
		ModelResponse:   fmt.Sprintf("Error: %s", err),
		ExecutionTimeMS: int(time.Since(start).Milliseconds()),
		ModelUsed:       p.Parameters.Model,
	}
}
