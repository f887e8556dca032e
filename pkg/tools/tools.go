// Package tools exposes the enrichment services (profile fetch, web search)
// to tool-calling agents. Clients share one HTTP connection pool; a tool
// failure is reported back into the conversation rather than aborting it.
package tools

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// Tool is one callable capability offered to an agent.
type Tool interface {
	// Name is the function name the model calls.
	Name() string
	// Definition describes the tool for the provider's tool-calling API.
	Definition() llms.Tool
	// Call executes the tool with the model's JSON argument payload.
	Call(ctx context.Context, args string) (string, error)
}

// Registry holds the tools available to agents and dispatches calls by name.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Tool
	logger *logrus.Logger
}

func NewRegistry(logger *logrus.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]Tool),
		logger: logger,
	}
}

func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[t.Name()] = t
}

// Definitions returns tool definitions for the named tools. Unknown names
// are skipped; an empty list selects every registered tool.
func (r *Registry) Definitions(names []string) []llms.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(names) == 0 {
		defs := make([]llms.Tool, 0, len(r.tools))
		for _, t := range r.tools {
			defs = append(defs, t.Definition())
		}
		return defs
	}

	var defs []llms.Tool
	for _, name := range names {
		t, ok := r.tools[name]
		if !ok {
			r.logger.WithField("tool", name).Warn("Requested tool is not registered")
			continue
		}
		defs = append(defs, t.Definition())
	}
	return defs
}

// Call dispatches a tool call by name.
func (r *Registry) Call(ctx context.Context, name, args string) (string, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", name)
	}

	r.logger.WithFields(logrus.Fields{
		"tool": name,
	}).Debug("Dispatching tool call")

	return t.Call(ctx, args)
}
