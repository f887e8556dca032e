package openai

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/leadforge/outreach-orchestrator/pkg/llm"
	"github.com/leadforge/outreach-orchestrator/pkg/ratelimit"
)

// Client is an OpenAI-compatible chat client. Every call goes through the
// provider's shared token bucket and the throttle retry policy.
type Client struct {
	logger *logrus.Logger
	model  llms.Model
	config *Config
}

// NewClient builds a client for the configured endpoint, wrapping the
// underlying langchaingo model with the provider's rate limiter from the
// injected registry.
func NewClient(config *Config, registry *ratelimit.Registry) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	opts := []openai.Option{
		openai.WithToken(config.APIKey),
		openai.WithModel(config.Model),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}
	if config.JSONMode {
		opts = append(opts, openai.WithResponseFormat(openai.ResponseFormatJSON))
	}

	base, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s client: %w", config.Provider, err)
	}

	return &Client{
		logger: config.Logger,
		model:  llm.NewRateLimited(base, registry.Limiter(config.Provider), config.Provider, config.Logger),
		config: config,
	}, nil
}

// Model returns the rate-limited langchaingo model for callers that need
// tool calling (agent loops).
func (c *Client) Model() llms.Model {
	return c.model
}

// ModelName returns the configured model identifier (for pricing).
func (c *Client) ModelName() string {
	return c.config.Model
}

// Generate runs a single-prompt completion and reports token usage.
func (c *Client) Generate(ctx context.Context, prompt string, opts ...llm.Option) (*llm.Completion, error) {
	options := &llm.Options{
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
		Model:       c.config.Model,
	}
	for _, opt := range opts {
		opt(options)
	}

	c.logger.WithFields(logrus.Fields{
		"provider":    c.config.Provider,
		"model":       options.Model,
		"temperature": options.Temperature,
	}).Debug("Generating completion")

	callOpts := []llms.CallOption{
		llms.WithTemperature(options.Temperature),
	}
	if options.MaxTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(options.MaxTokens))
	}
	if options.Model != "" {
		callOpts = append(callOpts, llms.WithModel(options.Model))
	}
	if options.JSONMode {
		callOpts = append(callOpts, llms.WithJSONMode())
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := c.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("provider returned no choices")
	}

	choice := resp.Choices[0]
	return &llm.Completion{
		Text:  choice.Content,
		Usage: llm.UsageFromGenerationInfo(choice.GenerationInfo),
	}, nil
}
