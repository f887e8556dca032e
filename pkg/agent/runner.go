package agent

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadforge/outreach-orchestrator/pkg/llm"
	"github.com/leadforge/outreach-orchestrator/pkg/tools"
)

// RunStatus is the outcome class of an agent run.
type RunStatus string

const (
	// StatusSuccess means the agent produced a final text response.
	StatusSuccess RunStatus = "success"
	// StatusPartial means the iteration ceiling was hit before the agent
	// produced a final response.
	StatusPartial RunStatus = "partial"
)

// RunResult is the outcome of one agent run.
type RunResult struct {
	Output      string
	Status      RunStatus
	Usage       llm.Usage
	Compression CompressionStats
}

// Runner drives a tool-calling loop: call the model, execute any requested
// tools, feed results back, repeat until the model answers in plain text or
// the iteration ceiling is reached.
type Runner struct {
	model         llms.Model
	registry      *tools.Registry
	toolNames     []string
	temperature   float64
	maxIterations int
	compactor     *Compactor
	logger        *logrus.Logger
}

// RunnerConfig wires a Runner.
type RunnerConfig struct {
	Model         llms.Model
	Registry      *tools.Registry
	ToolNames     []string
	Temperature   float64
	MaxIterations int
	Compactor     *Compactor
	Logger        *logrus.Logger
}

func NewRunner(config RunnerConfig) (*Runner, error) {
	if config.Model == nil {
		return nil, fmt.Errorf("agent: model is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("agent: logger is required")
	}
	if config.MaxIterations < 1 {
		return nil, fmt.Errorf("agent: max iterations must be positive, got %d", config.MaxIterations)
	}
	return &Runner{
		model:         config.Model,
		registry:      config.Registry,
		toolNames:     config.ToolNames,
		temperature:   config.Temperature,
		maxIterations: config.MaxIterations,
		compactor:     config.Compactor,
		logger:        config.Logger,
	}, nil
}

// Run executes the task. Tool failures are reported back into the
// conversation as tool results, not returned as errors; only provider
// failures abort the run.
func (r *Runner) Run(ctx context.Context, task string) (*RunResult, error) {
	history := NewHistory()
	if err := history.AppendUser(task); err != nil {
		return nil, err
	}

	var defs []llms.Tool
	if r.registry != nil {
		defs = r.registry.Definitions(r.toolNames)
	}

	callOpts := []llms.CallOption{llms.WithTemperature(r.temperature)}
	if len(defs) > 0 {
		callOpts = append(callOpts, llms.WithTools(defs))
	}

	var usage llm.Usage
	var compression CompressionStats

	for iteration := 1; iteration <= r.maxIterations; iteration++ {
		compacted, stats, compactUsage, err := r.compactor.MaybeCompact(ctx, history)
		if err != nil {
			return nil, fmt.Errorf("context compaction failed: %w", err)
		}
		history = compacted
		compression.Add(stats)
		usage.Add(compactUsage)

		r.logger.WithFields(logrus.Fields{
			"iteration": iteration,
			"messages":  history.Len(),
		}).Debug("Agent iteration")

		resp, err := r.model.GenerateContent(ctx, history.Messages(), callOpts...)
		if err != nil {
			return nil, fmt.Errorf("agent model call failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("agent model returned no choices")
		}

		choice := resp.Choices[0]
		usage.Add(llm.UsageFromGenerationInfo(choice.GenerationInfo))

		if err := history.AppendAssistant(choice); err != nil {
			return nil, err
		}

		if len(choice.ToolCalls) == 0 {
			return &RunResult{
				Output:      choice.Content,
				Status:      StatusSuccess,
				Usage:       usage,
				Compression: compression,
			}, nil
		}

		for _, tc := range choice.ToolCalls {
			result := r.executeTool(ctx, tc)
			name := ""
			if tc.FunctionCall != nil {
				name = tc.FunctionCall.Name
			}
			if err := history.AppendToolResult(tc.ID, name, result); err != nil {
				return nil, err
			}
		}
	}

	r.logger.WithField("max_iterations", r.maxIterations).Warn("Agent reached max iterations without final output")

	return &RunResult{
		Output:      "Max iterations reached - agent did not produce final output",
		Status:      StatusPartial,
		Usage:       usage,
		Compression: compression,
	}, nil
}

func (r *Runner) executeTool(ctx context.Context, tc llms.ToolCall) string {
	if tc.FunctionCall == nil {
		return "Error: malformed tool call"
	}
	if r.registry == nil {
		return fmt.Sprintf("Error: Tool '%s' not found", tc.FunctionCall.Name)
	}

	result, err := r.registry.Call(ctx, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
	if err != nil {
		r.logger.WithFields(logrus.Fields{
			"tool":  tc.FunctionCall.Name,
			"error": err.Error(),
		}).Warn("Tool execution failed")
		return fmt.Sprintf("Error executing tool: %s", err)
	}
	return result
}
