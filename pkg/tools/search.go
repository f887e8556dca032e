package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// SearchClient runs web searches for company and prospect research.
type SearchClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
	logger   *logrus.Logger
}

type searchRequest struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

type searchArgs struct {
	Query string `json:"query"`
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// resultsPerQuery keeps tool output small enough for the agent context.
const resultsPerQuery = 5

func NewSearchClient(config *Config, client *http.Client) *SearchClient {
	return &SearchClient{
		endpoint: config.SearchEndpoint,
		apiKey:   config.SearchAPIKey,
		client:   client,
		logger:   config.Logger,
	}
}

func (s *SearchClient) Name() string { return "web_search" }

func (s *SearchClient) Definition() llms.Tool {
	return llms.Tool{
		Type: "function",
		Function: &llms.FunctionDefinition{
			Name:        s.Name(),
			Description: "Search the web for recent news, company information, or market context.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type":        "string",
						"description": "Search query",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

func (s *SearchClient) Call(ctx context.Context, args string) (string, error) {
	var parsed searchArgs
	if err := json.Unmarshal([]byte(args), &parsed); err != nil {
		return "", fmt.Errorf("invalid web_search arguments: %w", err)
	}
	if parsed.Query == "" {
		return "", fmt.Errorf("web_search: query is required")
	}
	return s.Search(ctx, parsed.Query)
}

// Search runs a query and renders the results as a compact text block.
func (s *SearchClient) Search(ctx context.Context, query string) (string, error) {
	if s.endpoint == "" {
		return "", fmt.Errorf("search service is not configured")
	}

	jsonBody, err := json.Marshal(searchRequest{Query: query, Count: resultsPerQuery})
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	s.logger.WithFields(logrus.Fields{
		"query": query,
	}).Debug("Running web search")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode == http.StatusTooManyRequests {
			return "", fmt.Errorf("search service rate limit (429)")
		}
		return "", fmt.Errorf("search service returned status %d", resp.StatusCode)
	}

	var response struct {
		Results []searchResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", fmt.Errorf("error decoding search response: %w", err)
	}

	if len(response.Results) == 0 {
		return "No results found.", nil
	}

	var b strings.Builder
	for i, r := range response.Results {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n\n", i+1, r.Title, r.URL, r.Snippet)
	}
	return strings.TrimSpace(b.String()), nil
}
