package tools

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Default timeouts for the enrichment services.
const (
	// DefaultProfileTimeout bounds a single profile fetch.
	DefaultProfileTimeout = 60 * time.Second
	// DefaultBatchTimeout bounds the HTTP client shared by all tool calls.
	DefaultBatchTimeout = 5 * time.Minute
)

// Config holds the enrichment service endpoints and credentials.
// Environment variables:
//   - PROFILE_API_ENDPOINT: profile enrichment service URL
//   - PROFILE_API_KEY: bearer token for the profile service
//   - SEARCH_API_ENDPOINT: web search service URL
//   - SEARCH_API_KEY: bearer token for the search service
type Config struct {
	ProfileEndpoint string
	ProfileAPIKey   string
	SearchEndpoint  string
	SearchAPIKey    string
	ProfileTimeout  time.Duration
	Logger          *logrus.Logger
}

// NewConfig reads the tool service configuration from the environment.
// The .env file is loaded if present, but its absence is not an error.
func NewConfig(logger *logrus.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		ProfileEndpoint: os.Getenv("PROFILE_API_ENDPOINT"),
		ProfileAPIKey:   os.Getenv("PROFILE_API_KEY"),
		SearchEndpoint:  os.Getenv("SEARCH_API_ENDPOINT"),
		SearchAPIKey:    os.Getenv("SEARCH_API_KEY"),
		ProfileTimeout:  DefaultProfileTimeout,
		Logger:          logger,
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate checks the configuration. Endpoints are optional (a deployment
// may run without enrichment), but a configured endpoint needs a key.
func (c *Config) Validate() error {
	if c.Logger == nil {
		return fmt.Errorf("tools: logger is required")
	}
	if c.ProfileEndpoint != "" && c.ProfileAPIKey == "" {
		return fmt.Errorf("tools: PROFILE_API_KEY is required when PROFILE_API_ENDPOINT is set")
	}
	if c.SearchEndpoint != "" && c.SearchAPIKey == "" {
		return fmt.Errorf("tools: SEARCH_API_KEY is required when SEARCH_API_ENDPOINT is set")
	}
	if c.ProfileTimeout < time.Second {
		return fmt.Errorf("tools: profile timeout must be at least 1 second, got %v", c.ProfileTimeout)
	}
	return nil
}

// NewHTTPClient builds the HTTP client shared by every tool. Connections
// are established once and reused read-only by all workers.
func (c *Config) NewHTTPClient() *http.Client {
	return &http.Client{
		Timeout: DefaultBatchTimeout,
	}
}
