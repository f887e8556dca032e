package generate

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadforge/outreach-orchestrator/pkg/agent"
	"github.com/leadforge/outreach-orchestrator/pkg/icp"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/tools"
)

const singleAgentTaskTemplate = `# Task: Cold Outreach Letter Generation

## Lead Information
- **Name:** %s
- **Company:** %s
- **Job Title:** %s
- **LinkedIn:** %s

## Instructions

**STEP 1: Research the person**
- Fetch the LinkedIn profile with the fetch_profile tool
- LINKEDIN URL: %s
- If the fetch fails or returns nothing, retry once; after two failures fall back to web_search for information about the person
- If no data can be found at all, reject the lead with reason "Could not obtain profile data"

**Look for SPECIFICS:**
- Recent posts, activity, certifications (last 3-6 months)
- Conferences, talks, publications
- Concrete projects, achievements, technology mentions
- Career changes, promotions

**STEP 2: Research the company**
- Use web_search for company research
- Recent news (last 3-6 months), products, customers, case studies
- Industry, competitors, challenges
- Size, growth stage, funding

**STEP 3: Write the letter**

**The OBSERVATION must be:**
- Specific and recent (last 3-6 months)
- Evidence of real research (not "I saw you work at X")
- NOT a generic fact ("you're a manager")

**The INSIGHT must be:**
- Non-obvious, demonstrating real understanding of their challenges
- Connected to a pain point we solve
- NOT superficial ("you want to optimize processes")

**POV Framework - STRICT:**
- Observation (1 sentence), specific and recent
- Insight (2-3 sentences), deep and tied to their pain
- Soft question (1 sentence), open-ended, not pushy

Also assess the lead's relevance to the project (BRIEFLY) and recommend a
send time for the email.

## Output Format

Return ONLY valid JSON (no markdown, no extra text).

If the lead is relevant:
{
  "rejected": false,
  "reason": null,
  "letter": {
    "subject": "Email subject",
    "body": "Email body (POV Framework)",
    "send_time": "Tuesday, 19:00",
    "personalization_signals": ["signal 1", "signal 2", "signal 3"]
  },
  "relevance_assessment": "BRIEF relevance assessment",
  "notes": "Any additional notes"
}

If the lead is NOT relevant after deep research:
{
  "rejected": true,
  "reason": "Specific reason",
  "letter": null,
  "relevance_assessment": "NOT RELEVANT - brief explanation"
}

---

%s`

// SingleAgent generates letters with one autonomous tool-using agent run
// per lead.
type SingleAgent struct {
	model         llms.Model
	registry      *tools.Registry
	context       *icp.Context
	temperature   float64
	maxIterations int
	compactor     *agent.Compactor
	logger        *logrus.Logger
}

// SingleAgentConfig wires a SingleAgent.
type SingleAgentConfig struct {
	Model         llms.Model
	Registry      *tools.Registry
	Context       *icp.Context
	Temperature   float64
	MaxIterations int
	Compactor     *agent.Compactor
	Logger        *logrus.Logger
}

func NewSingleAgent(config SingleAgentConfig) (*SingleAgent, error) {
	if config.Model == nil {
		return nil, fmt.Errorf("generate: model is required")
	}
	if config.Context == nil {
		return nil, fmt.Errorf("generate: agent context is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("generate: logger is required")
	}
	if config.MaxIterations < 1 {
		return nil, fmt.Errorf("generate: max iterations must be positive, got %d", config.MaxIterations)
	}
	return &SingleAgent{
		model:         config.Model,
		registry:      config.Registry,
		context:       config.Context,
		temperature:   config.Temperature,
		maxIterations: config.MaxIterations,
		compactor:     config.Compactor,
		logger:        config.Logger,
	}, nil
}

// Generate runs the agent for one lead. An iteration-ceiling run produces
// an errored result, not an error; the lead still completes.
func (s *SingleAgent) Generate(ctx context.Context, lead leads.Lead, workerID string) (*Output, error) {
	task := fmt.Sprintf(singleAgentTaskTemplate,
		orNA(lead.Name),
		orNA(lead.Company),
		orNA(lead.JobTitle),
		orNA(lead.LinkedInURL),
		orNA(lead.LinkedInURL),
		s.context.Format(),
	)

	runner, err := agent.NewRunner(agent.RunnerConfig{
		Model:         s.model,
		Registry:      s.registry,
		Temperature:   s.temperature,
		MaxIterations: s.maxIterations,
		Compactor:     s.compactor,
		Logger:        s.logger,
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"email":     lead.Email,
	}).Debug("Running single-agent generation")

	run, err := runner.Run(ctx, task)
	if err != nil {
		return nil, err
	}

	output := &Output{
		Usage:       run.Usage,
		Compression: run.Compression,
	}
	if run.Status == agent.StatusPartial {
		output.Result = Errored("Agent exceeded maximum iterations without completing task", "")
		return output, nil
	}

	output.Result = Parse(run.Output)
	return output, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
