// Package generate runs the second pipeline stage: write a personalized
// outreach letter for a relevant lead, either with a single tool-using
// agent or a research/write/review multi-agent workflow.
package generate

import (
	"context"

	"github.com/leadforge/outreach-orchestrator/pkg/agent"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/llm"
)

// Outcome tags the generation result variant.
type Outcome string

const (
	// OutcomeAccepted means a letter was produced.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeRejected means the agent declined the lead after research.
	// A business outcome, not an error.
	OutcomeRejected Outcome = "rejected"
	// OutcomeErrored means the output could not be coerced into a usable
	// result (parse failure, empty response, iteration ceiling). The task
	// still completes so the lead is not retried forever.
	OutcomeErrored Outcome = "errored"
)

// Letter is a generated outreach email.
type Letter struct {
	Subject                string   `json:"subject"`
	Body                   string   `json:"body"`
	SendTime               string   `json:"send_time"`
	PersonalizationSignals []string `json:"personalization_signals"`
}

// Result is the tagged stage 2 outcome. Exactly one variant is populated
// according to Outcome.
type Result struct {
	Outcome Outcome `json:"outcome"`

	// Letter is set when Outcome is accepted.
	Letter *Letter `json:"letter,omitempty"`
	// Reason is set when Outcome is rejected.
	Reason string `json:"reason,omitempty"`
	// Message is set when Outcome is errored.
	Message string `json:"message,omitempty"`

	RelevanceAssessment string `json:"relevance_assessment,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

func Accepted(letter *Letter, assessment, notes string) *Result {
	return &Result{
		Outcome:             OutcomeAccepted,
		Letter:              letter,
		RelevanceAssessment: assessment,
		Notes:               notes,
	}
}

func Rejected(reason, assessment, notes string) *Result {
	return &Result{
		Outcome:             OutcomeRejected,
		Reason:              reason,
		RelevanceAssessment: assessment,
		Notes:               notes,
	}
}

func Errored(message, notes string) *Result {
	return &Result{
		Outcome:             OutcomeErrored,
		Message:             message,
		RelevanceAssessment: "ERROR",
		Notes:               notes,
	}
}

// Output couples a generation result with the resources it consumed.
type Output struct {
	Result      *Result
	Usage       llm.Usage
	Compression agent.CompressionStats
}

// Generator produces a stage 2 result for a lead. Implemented by the
// single-agent generator and the multi-agent orchestrator.
type Generator interface {
	Generate(ctx context.Context, lead leads.Lead, workerID string) (*Output, error)
}
