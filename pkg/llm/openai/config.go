package openai

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config describes one OpenAI-compatible endpoint (OpenAI itself, DeepSeek,
// or any other provider speaking the same wire protocol).
type Config struct {
	// Provider is the rate-limit bucket key ("openai", "deepseek", ...).
	Provider    string
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	// JSONMode constrains every response from this client to a JSON
	// object. Used by the classification client; tool-using agents must
	// leave it off.
	JSONMode bool
	Logger   *logrus.Logger
}

// NewConfig creates a Config for a provider with the API key read from the
// given environment variable. A .env file is honored when present.
func NewConfig(provider, apiKeyEnv, baseURL, model string, logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist in production
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Provider:    provider,
		APIKey:      os.Getenv(apiKeyEnv),
		BaseURL:     baseURL,
		Model:       model,
		Temperature: 0.7,
		Logger:      logger,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API key is required for provider %q", c.Provider)
	}
	if c.Logger == nil {
		return fmt.Errorf("logger is required")
	}
	if c.Provider == "" {
		return fmt.Errorf("provider name is required")
	}
	// Set default values if not provided
	if c.Model == "" {
		c.Model = "deepseek-chat"
	}
	return nil
}
