package testutil

import (
	"io"
	"log/slog"

	"github.com/eike-heimpel/forge/internal/config"
	"github.com/eike-heimpel/forge/internal/openrouter"
)

// TestLogger returns a discarding logger for tests.
func TestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestConfig returns a config with sensible test defaults.
func TestConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Log.Level = "error"
	cfg.Server.ListenPort = "0"
	cfg.Server.APIToken = "test-token"
	cfg.OpenRouter.APIKey = "test-key"
	cfg.Database.Path = ":memory:"
	cfg.Session.Model = "test-model"
	cfg.Session.Temperature = 0.6
	cfg.Session.ChatMaxTokens = 300
	cfg.Session.SynthMaxTokens = 2000
	return cfg
}

// ChatResponse builds a completion response carrying a single assistant
// message, the common fixture for agent tests.
func ChatResponse(content string) openrouter.ChatCompletionResponse {
	return openrouter.ChatCompletionResponse{
		Model: "test-model",
		Choices: []openrouter.Choice{
			{Message: openrouter.Message{Role: "assistant", Content: content}},
		},
		Usage: openrouter.Usage{
			PromptTokens:     50,
			CompletionTokens: 25,
			TotalTokens:      75,
		},
	}
}

// Ptr returns a pointer to the given value. Useful for optional fields.
func Ptr[T any](v T) *T {
	return &v
}
