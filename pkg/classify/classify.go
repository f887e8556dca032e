// Package classify runs the first pipeline stage: does this lead match the
// ideal customer profile. The verdict is a value, never an error; provider
// failures are the only errors this stage returns.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/prompts"

	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/llm"
)

const classificationTemplate = `You are an expert ICP researcher analyzing if this person matches our target profile.

## Target ICP Context:
{{.gtm_context}}

## Profile to Analyze:
Email: {{.email}}
Name: {{.name}}
Company: {{.company}}
Job Title: {{.job_title}}
LinkedIn URL: {{.linkedin_url}}

## Your Analysis Task:
Based on the provided ICP context, analyze if this lead matches the target profile.

Consider:
1. **Role & Seniority**: Does their position match decision-making criteria?
2. **Company Context**: Company size, industry, growth stage
3. **Pain Points**: Do they likely face the problems we solve?
4. **Decision Authority**: Can they influence purchasing decisions?

Return ONLY valid JSON:
{
  "relevant": true,
  "reason": "Specific signals found (role context, pain points, company size, decision authority)"
}

or

{
  "relevant": false,
  "reason": "Why they don't match (wrong seniority, company size, or function)"
}`

// Result is the stage 1 verdict.
type Result struct {
	Relevant bool   `json:"relevant"`
	Reason   string `json:"reason"`
}

// Model is the LLM surface the classifier needs.
type Model interface {
	Generate(ctx context.Context, prompt string, opts ...llm.Option) (*llm.Completion, error)
}

// Classifier scores leads against the ICP description.
type Classifier struct {
	model    Model
	template prompts.PromptTemplate
	gtm      string
	logger   *logrus.Logger
}

// New builds a classifier. gtmContext is the ICP description the verdict
// is judged against.
func New(model Model, gtmContext string, logger *logrus.Logger) *Classifier {
	return &Classifier{
		model: model,
		template: prompts.NewPromptTemplate(classificationTemplate, []string{
			"gtm_context", "email", "name", "company", "job_title", "linkedin_url",
		}),
		gtm:    gtmContext,
		logger: logger,
	}
}

// Classify scores one lead. The response must be a JSON object with
// relevant and reason fields; anything else is a stage failure.
func (c *Classifier) Classify(ctx context.Context, lead leads.Lead) (*Result, llm.Usage, error) {
	prompt, err := c.template.Format(map[string]any{
		"gtm_context":  c.gtm,
		"email":        orNA(lead.Email),
		"name":         orNA(lead.Name),
		"company":      orNA(lead.Company),
		"job_title":    orNA(lead.JobTitle),
		"linkedin_url": orNA(lead.LinkedInURL),
	})
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("failed to format classification prompt: %w", err)
	}

	completion, err := c.model.Generate(ctx, prompt, llm.WithJSONMode())
	if err != nil {
		return nil, llm.Usage{}, fmt.Errorf("classification call failed: %w", err)
	}

	var result Result
	text := strings.TrimSpace(completion.Text)
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, completion.Usage, fmt.Errorf("classification response is not valid JSON: %w", err)
	}

	c.logger.WithFields(logrus.Fields{
		"email":    lead.Email,
		"relevant": result.Relevant,
	}).Debug("Classified lead")

	return &result, completion.Usage, nil
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
