package config

import (
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultConfig []byte

// OpenRouterConfig holds credentials and transport settings for the
// chat-completion API.
type OpenRouterConfig struct {
	APIKey   string `yaml:"api_key" env:"FORGE_OPENROUTER_API_KEY"`
	ProxyURL string `yaml:"proxy_url" env:"FORGE_OPENROUTER_PROXY_URL"`
	BaseURL  string `yaml:"base_url" env:"FORGE_OPENROUTER_BASE_URL"`
}

// SessionConfig holds model defaults for the legacy whole-document
// chat/synthesis flow. The contribution pipeline does not use these:
// its parameters come from the prompt records in the database.
type SessionConfig struct {
	Model          string  `yaml:"model" env:"FORGE_SESSION_MODEL"`
	Temperature    float64 `yaml:"temperature"`
	ChatMaxTokens  int     `yaml:"chat_max_tokens"`
	SynthMaxTokens int     `yaml:"synth_max_tokens"`
}

type Config struct {
	Log struct {
		Level string `yaml:"level" env:"FORGE_LOG_LEVEL"`
	} `yaml:"log"`
	Server struct {
		ListenPort string `yaml:"listen_port" env:"FORGE_SERVER_PORT"`
		// APIToken is the bearer token required on the webhook and the
		// legacy chat/synthesize endpoints.
		APIToken  string `yaml:"api_token" env:"FORGE_API_TOKEN"`
		DebugMode bool   `yaml:"debug_mode" env:"FORGE_SERVER_DEBUG"`
	} `yaml:"server"`
	OpenRouter OpenRouterConfig `yaml:"openrouter"`
	Session    SessionConfig    `yaml:"session"`
	Database   struct {
		Path string `yaml:"path" env:"FORGE_DATABASE_PATH"`
	} `yaml:"database"`
}

// Load loads configuration from the specified file path.
// It first loads the embedded default configuration, then merges the user
// config on top. Finally, it overrides values with environment variables.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(defaultConfig, &cfg); err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
			slog.Warn("config file not found, using defaults", "path", path)
		} else {
			expandedData := []byte(os.ExpandEnv(string(data)))
			if err := yaml.Unmarshal(expandedData, &cfg); err != nil {
				return nil, err
			}
			slog.Info("loaded user config", "path", path)
		}
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDefault loads the embedded default configuration.
func LoadDefault() (*Config, error) {
	return Load("")
}

// Validate checks configuration for required fields and valid ranges.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []error

	if c.OpenRouter.APIKey == "" {
		errs = append(errs, errors.New("openrouter.api_key is required"))
	}
	if c.Server.APIToken == "" {
		errs = append(errs, errors.New("server.api_token is required"))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	if c.Session.Model == "" {
		errs = append(errs, errors.New("session.model is required"))
	}
	if c.Session.Temperature < 0 || c.Session.Temperature > 2 {
		errs = append(errs, fmt.Errorf("session.temperature must be between 0 and 2, got %f", c.Session.Temperature))
	}
	if c.Session.ChatMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("session.chat_max_tokens must be positive, got %d", c.Session.ChatMaxTokens))
	}
	if c.Session.SynthMaxTokens <= 0 {
		errs = append(errs, fmt.Errorf("session.synth_max_tokens must be positive, got %d", c.Session.SynthMaxTokens))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
