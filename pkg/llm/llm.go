package llm

import (
	"context"
)

// Completion is the outcome of one LLM call: the generated text plus the
// token usage the provider reported for it.
type Completion struct {
	Text  string
	Usage Usage
}

// LLM defines the interface for single-prompt language model interactions.
// Agent loops that need tool calling use langchaingo's llms.Model directly;
// this narrower interface is what the classifier and summarizer depend on.
type LLM interface {
	Generate(ctx context.Context, prompt string, opts ...Option) (*Completion, error)
}

// Option defines functional options for LLM configuration
type Option func(*Options)

// Options holds configuration for LLM calls
type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string
	JSONMode    bool
}

// WithTemperature sets the temperature for generation
func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

// WithMaxTokens sets the maximum tokens for generation
func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// WithModel sets the model to use
func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// WithJSONMode constrains the response format to a JSON object
func WithJSONMode() Option {
	return func(o *Options) {
		o.JSONMode = true
	}
}
