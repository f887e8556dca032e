package generate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
	"golang.org/x/sync/errgroup"

	"github.com/leadforge/outreach-orchestrator/pkg/agent"
	"github.com/leadforge/outreach-orchestrator/pkg/agentdef"
	"github.com/leadforge/outreach-orchestrator/pkg/icp"
	"github.com/leadforge/outreach-orchestrator/pkg/leads"
	"github.com/leadforge/outreach-orchestrator/pkg/tools"
)

// ModelFactory builds a model for an agent definition's provider/model
// pair. Injected so the orchestrator stays decoupled from client wiring.
type ModelFactory func(provider, model string) (llms.Model, error)

var researchFocuses = []string{
	"LinkedIn profile and recent personal activity",
	"Company news, funding, and growth signals",
}

// MultiAgent runs the 3-phase workflow: parallel researchers gather
// insights, parallel writers draft variants from different angles, one
// reviewer picks the variant to send.
type MultiAgent struct {
	loader      *agentdef.Loader
	factory     ModelFactory
	registry    *tools.Registry
	context     *icp.Context
	compactor   *agent.Compactor
	researchers int
	writers     int
	parallel    bool
	logger      *logrus.Logger

	// mu guards the shared Output while writers run in parallel.
	mu sync.Mutex
}

// MultiAgentConfig wires a MultiAgent.
type MultiAgentConfig struct {
	Loader      *agentdef.Loader
	Factory     ModelFactory
	Registry    *tools.Registry
	Context     *icp.Context
	Compactor   *agent.Compactor
	Researchers int
	Writers     int
	Parallel    bool
	Logger      *logrus.Logger
}

func NewMultiAgent(config MultiAgentConfig) (*MultiAgent, error) {
	if config.Loader == nil {
		return nil, fmt.Errorf("generate: agent loader is required")
	}
	if config.Factory == nil {
		return nil, fmt.Errorf("generate: model factory is required")
	}
	if config.Context == nil {
		return nil, fmt.Errorf("generate: agent context is required")
	}
	if config.Logger == nil {
		return nil, fmt.Errorf("generate: logger is required")
	}
	if config.Researchers < 1 {
		config.Researchers = 2
	}
	if config.Writers < 1 {
		config.Writers = 2
	}
	return &MultiAgent{
		loader:      config.Loader,
		factory:     config.Factory,
		registry:    config.Registry,
		context:     config.Context,
		compactor:   config.Compactor,
		researchers: config.Researchers,
		writers:     config.Writers,
		parallel:    config.Parallel,
		logger:      config.Logger,
	}, nil
}

// variant is one writer's draft plus its validation state.
type variant struct {
	ID     int
	Result *Result
}

// Generate runs research, writing, and review for one lead.
func (m *MultiAgent) Generate(ctx context.Context, lead leads.Lead, workerID string) (*Output, error) {
	output := &Output{}

	log := m.logger.WithFields(logrus.Fields{
		"worker_id": workerID,
		"email":     lead.Email,
	})

	log.Debug("Phase 1: research")
	research, err := m.phaseResearch(ctx, lead, output)
	if err != nil {
		return nil, err
	}
	if research == nil {
		output.Result = Rejected("All research agents failed or rejected lead", "", "")
		return output, nil
	}
	if rejected, reason := researchRejection(research); rejected {
		log.WithField("reason", reason).Debug("Lead rejected in research phase")
		output.Result = Rejected(reason, "", "")
		return output, nil
	}

	log.Debug("Phase 2: writing")
	variants, err := m.phaseWriting(ctx, lead, research, output)
	if err != nil {
		return nil, err
	}

	var valid []variant
	for _, v := range variants {
		if v.Result.Outcome == OutcomeAccepted {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		reason := "All writer variants failed validation"
		for _, v := range variants {
			if v.Result.Reason != "" {
				reason = v.Result.Reason
				break
			}
			if v.Result.Message != "" {
				reason = v.Result.Message
				break
			}
		}
		output.Result = Rejected(reason, "", "")
		return output, nil
	}

	log.Debug("Phase 3: review")
	selected, err := m.phaseReview(ctx, research, valid, output)
	if err != nil {
		return nil, err
	}
	output.Result = selected
	return output, nil
}

func (m *MultiAgent) phaseResearch(ctx context.Context, lead leads.Lead, output *Output) (map[string]any, error) {
	config, err := m.loader.Load("researcher")
	if err != nil {
		return nil, err
	}

	if m.researchers == 1 {
		run, err := m.runAgent(ctx, config, lead, "", output)
		if err != nil {
			return nil, err
		}
		obj, ok := ExtractJSON(run.Output)
		if !ok {
			return nil, nil
		}
		return obj, nil
	}

	results := make([]map[string]any, m.researchers)
	runOne := func(i int) error {
		focus := researchFocuses[i%len(researchFocuses)]
		run, err := m.runAgent(ctx, config, lead, "\nPRIORITY FOCUS: "+focus, output)
		if err != nil {
			m.logger.WithError(err).WithField("researcher", i+1).Warn("Researcher failed")
			return nil
		}
		if obj, ok := ExtractJSON(run.Output); ok {
			results[i] = obj
		}
		return nil
	}

	if m.parallel {
		g := new(errgroup.Group)
		for i := 0; i < m.researchers; i++ {
			i := i
			g.Go(func() error { return runOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < m.researchers; i++ {
			if err := runOne(i); err != nil {
				return nil, err
			}
		}
	}

	// First valid result wins; a rejecting researcher only counts when no
	// other researcher produced usable findings.
	for _, r := range results {
		if r != nil {
			if rejected, _ := researchRejection(r); !rejected {
				return r, nil
			}
		}
	}
	for _, r := range results {
		if r != nil {
			return r, nil
		}
	}
	return nil, nil
}

func (m *MultiAgent) phaseWriting(ctx context.Context, lead leads.Lead, research map[string]any, output *Output) ([]variant, error) {
	config, err := m.loader.Load("writer")
	if err != nil {
		return nil, err
	}

	researchJSON, err := json.MarshalIndent(research, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode research findings: %w", err)
	}

	variants := make([]variant, m.writers)
	runOne := func(i int) error {
		angle := writingAngle(i, research)
		extra := fmt.Sprintf("\nRESEARCH FINDINGS:\n%s\n\nSUGGESTED ANGLE: %s", researchJSON, angle)
		run, err := m.runAgent(ctx, config, lead, extra, output)
		if err != nil {
			m.logger.WithError(err).WithField("writer", i+1).Warn("Writer failed")
			variants[i] = variant{ID: i + 1, Result: Errored(fmt.Sprintf("Writer agent error: %s", err), "")}
			return nil
		}

		parsed := Parse(run.Output)
		if parsed.Outcome == OutcomeAccepted {
			if reason := ValidatePersonalization(parsed.Letter, lead); reason != "" {
				m.logger.WithFields(logrus.Fields{
					"writer": i + 1,
					"reason": reason,
				}).Debug("Variant failed personalization validation")
				parsed = Rejected(reason, "", "")
			}
		}
		variants[i] = variant{ID: i + 1, Result: parsed}
		return nil
	}

	if m.parallel {
		g := new(errgroup.Group)
		for i := 0; i < m.writers; i++ {
			i := i
			g.Go(func() error { return runOne(i) })
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i := 0; i < m.writers; i++ {
			if err := runOne(i); err != nil {
				return nil, err
			}
		}
	}

	return variants, nil
}

func (m *MultiAgent) phaseReview(ctx context.Context, research map[string]any, valid []variant, output *Output) (*Result, error) {
	config, err := m.loader.Load("reviewer")
	if err != nil {
		return nil, err
	}

	type reviewVariant struct {
		VariantID int      `json:"variant_id"`
		Letter    *Letter  `json:"letter"`
		Signals   []string `json:"personalization_signals"`
		Notes     string   `json:"notes"`
	}
	forReview := make([]reviewVariant, 0, len(valid))
	for _, v := range valid {
		forReview = append(forReview, reviewVariant{
			VariantID: v.ID,
			Letter:    v.Result.Letter,
			Signals:   v.Result.Letter.PersonalizationSignals,
			Notes:     v.Result.Notes,
		})
	}

	researchJSON, _ := json.MarshalIndent(research, "", "  ")
	variantsJSON, err := json.MarshalIndent(forReview, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode variants for review: %w", err)
	}

	reviewContext := fmt.Sprintf(`
RESEARCH SUMMARY:
%s

EMAIL VARIANTS TO REVIEW:
%s

Evaluate each variant and select the best one based on:
1. Personalization depth (uses specific research insights)
2. Insight quality (demonstrates understanding)
3. Authenticity (consultative, not sales-y)
4. Framework adherence (POV structure, word count, etc.)

Return JSON: {"selected_variant": <id>, "selection_reasoning": "..."}`,
		researchJSON, variantsJSON)

	run, err := m.runAgent(ctx, config, leads.Lead{}, reviewContext, output)
	if err != nil {
		return nil, err
	}

	selectedID := valid[0].ID
	reasoning := ""
	if obj, ok := ExtractJSON(run.Output); ok {
		if id, okID := asInt(obj["selected_variant"]); okID {
			selectedID = id
		}
		if s, okS := obj["selection_reasoning"].(string); okS {
			reasoning = s
		}
	}

	selected := valid[0]
	for _, v := range valid {
		if v.ID == selectedID {
			selected = v
			break
		}
	}

	result := selected.Result
	if reasoning != "" {
		if result.Notes != "" {
			result.Notes += "\n\n"
		}
		result.Notes += "Reviewer: " + reasoning
	}
	return result, nil
}

// runAgent executes one declarative agent and accumulates its usage into
// the shared output under a lock (writers run in parallel).
func (m *MultiAgent) runAgent(ctx context.Context, config *agentdef.AgentConfig, lead leads.Lead, extraContext string, output *Output) (*agent.RunResult, error) {
	model, err := m.factory(config.Provider, config.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to build model for agent %s: %w", config.Name, err)
	}

	runner, err := agent.NewRunner(agent.RunnerConfig{
		Model:         model,
		Registry:      m.registry,
		ToolNames:     config.Tools,
		Temperature:   config.Temperature,
		MaxIterations: config.MaxIterations,
		Compactor:     m.compactor,
		Logger:        m.logger,
	})
	if err != nil {
		return nil, err
	}

	task := m.buildTaskPrompt(config, lead, extraContext)
	run, err := runner.Run(ctx, task)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	output.Usage.Add(run.Usage)
	output.Compression.Add(run.Compression)
	m.mu.Unlock()

	if run.Status == agent.StatusPartial {
		return nil, fmt.Errorf("agent %s exceeded maximum iterations", config.Name)
	}
	return run, nil
}

func (m *MultiAgent) buildTaskPrompt(config *agentdef.AgentConfig, lead leads.Lead, extraContext string) string {
	parts := []string{config.Instructions}

	if lead.Email != "" || lead.Name != "" {
		parts = append(parts, fmt.Sprintf(`## LEAD INFORMATION

- **Name**: %s
- **Email**: %s
- **Company**: %s
- **Title**: %s
- **LinkedIn**: %s`,
			orNA(lead.Name), orNA(lead.Email), orNA(lead.Company),
			orNA(lead.JobTitle), orNA(lead.LinkedInURL)))
	}

	if config.Role == "writing" || config.Role == "review" {
		parts = append(parts, fmt.Sprintf(`## PROJECT CONTEXT

### ICP & Value Proposition
%s

### Writing Guides
%s`, m.context.GTM, m.context.Guides))
	}

	if extraContext != "" {
		parts = append(parts, extraContext)
	}

	return strings.Join(parts, "\n\n")
}

func researchRejection(research map[string]any) (bool, string) {
	rejected, _ := research["rejected"].(bool)
	if !rejected {
		return false, ""
	}
	reason, _ := research["rejection_reason"].(string)
	if reason == "" {
		reason, _ = research["reason"].(string)
	}
	if reason == "" {
		reason = "Lead rejected during research"
	}
	return true, reason
}

func writingAngle(index int, research map[string]any) string {
	primary, secondary := "", ""
	if insights, ok := research["insights"].(map[string]any); ok {
		primary, _ = insights["primary_insight"].(string)
		secondary, _ = insights["secondary_insight"].(string)
	}
	angles := []string{
		"Lead with primary insight: " + truncate(primary, 100),
		"Lead with secondary insight: " + truncate(secondary, 100),
	}
	return angles[index%len(angles)]
}

func asInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	default:
		return 0, false
	}
}
