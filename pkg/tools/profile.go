package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// ProfileClient fetches public profile data for a lead from the enrichment
// service. Each fetch is bounded by its own timeout so one slow profile
// cannot consume the whole batch budget.
type ProfileClient struct {
	endpoint string
	apiKey   string
	timeout  time.Duration
	client   *http.Client
	logger   *logrus.Logger
}

type profileRequest struct {
	URL string `json:"url"`
}

type profileArgs struct {
	ProfileURL string `json:"profile_url"`
}

func NewProfileClient(config *Config, client *http.Client) *ProfileClient {
	return &ProfileClient{
		endpoint: config.ProfileEndpoint,
		apiKey:   config.ProfileAPIKey,
		timeout:  config.ProfileTimeout,
		client:   client,
		logger:   config.Logger,
	}
}

func (p *ProfileClient) Name() string { return "fetch_profile" }

func (p *ProfileClient) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        p.Name(),
			Description: "Fetch public profile data (experience, headline, recent activity) for a LinkedIn profile URL.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"profile_url": map[string]any{
						"type":        "string",
						"description": "Full URL of the profile to fetch",
					},
				},
				"required": []string{"profile_url"},
			},
		},
	}
}

// Call implements Tool. The argument payload is the model's JSON.
func (p *ProfileClient) Call(ctx context.Context, args string) (string, error) {
	var parsed profileArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid fetch_profile arguments: %w", err)
	}
	if parsed.ProfileURL == "" {
		return "", fmt.Errorf("fetch_profile: profile_url is required")
	}
	return p.Fetch(ctx, parsed.ProfileURL)
}

// Fetch retrieves the raw profile document for a URL.
func (p *ProfileClient) Fetch(ctx context.Context, profileURL string) (string, error) {
	if p.endpoint == "" {
		return "", fmt.Errorf("profile service is not configured")
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	jsonBody, err := json.Marshal(profileRequest{URL: profileURL})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	p.logger.WithFields(logrus.Fields{
		"profile_url": profileURL,
	}).Debug("Fetching profile")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("profile request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading profile response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("profile service rate limit (429)")
		}
		return "", fmt.Errorf("profile service returned status %d", resp.StatusCode)
	}

	return string(body), nil
}
