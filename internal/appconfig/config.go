// Package appconfig loads the orchestrator's runtime configuration from
// config.json. API keys come from the environment (.env supported), never
// from the config file.
package appconfig

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// ModelConfig selects a model for one pipeline role.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
}

// Models maps pipeline roles to models.
type Models struct {
	Classification ModelConfig `json:"classification"`
	Generation     ModelConfig `json:"letter_generation"`
	Summarization  ModelConfig `json:"summarization"`
}

// Provider describes one OpenAI-compatible endpoint.
type Provider struct {
	BaseURL   string `json:"base_url"`
	APIKeyEnv string `json:"api_key_env"`
}

// RateLimit is the token bucket for one provider.
type RateLimit struct {
	RequestsPerSecond float64 `json:"requests_per_second"`
	Burst             int     `json:"burst"`
}

// WorkerPool sizes the concurrent processing.
type WorkerPool struct {
	NumWorkers         int `json:"num_workers"`
	MaxAgentIterations int `json:"max_agent_iterations"`
	TaskDelayMS        int `json:"task_delay_ms"`
}

// AgentOrchestration selects and sizes the stage 2 workflow.
type AgentOrchestration struct {
	// Mode is "single" or "multi".
	Mode              string `json:"mode"`
	ResearchAgents    int    `json:"research_agents"`
	WriterAgents      int    `json:"writer_agents"`
	ParallelExecution bool   `json:"parallel_execution"`
	AgentsDir         string `json:"agents_dir"`
}

// AutoCompact controls agent context compression.
type AutoCompact struct {
	Enabled              bool   `json:"enabled"`
	TriggerAtMessages    int    `json:"trigger_at_messages"`
	PreserveLastMessages int    `json:"preserve_last_messages"`
	SummarizationModel   string `json:"summarization_model"`
}

// Config is the full application configuration.
type Config struct {
	Models             Models               `json:"models"`
	Providers          map[string]Provider  `json:"providers"`
	RateLimiting       map[string]RateLimit `json:"rate_limiting"`
	WorkerPool         WorkerPool           `json:"worker_pool"`
	AgentOrchestration AgentOrchestration   `json:"agent_orchestration"`
	AutoCompact        AutoCompact          `json:"auto_compact"`
}

// Load reads config.json from path. A missing file yields the defaults;
// a malformed file is fatal.
func Load(path string, logger *logrus.Logger) (*Config, error) {
	config := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.WithField("path", path).Info("No config file, using defaults")
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("malformed config %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger.WithFields(logrus.Fields{
		"path":    path,
		"workers": config.WorkerPool.NumWorkers,
		"mode":    config.AgentOrchestration.Mode,
	}).Info("Loaded configuration")
	return config, nil
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	return &Config{
		Models: Models{
			Classification: ModelConfig{Provider: "deepseek", Model: "deepseek-chat", Temperature: 0},
			Generation:     ModelConfig{Provider: "deepseek", Model: "deepseek-chat", Temperature: 0.7},
			Summarization:  ModelConfig{Provider: "openai", Model: "gpt-4o-mini", Temperature: 0},
		},
		Providers: map[string]Provider{
			"deepseek": {BaseURL: "https://api.deepseek.com", APIKeyEnv: "DEEPSEEK_API_KEY"},
			"openai":   {BaseURL: "https://api.openai.com/v1", APIKeyEnv: "OPENAI_API_KEY"},
		},
		RateLimiting: map[string]RateLimit{
			"deepseek": {RequestsPerSecond: 3, Burst: 5},
			"openai":   {RequestsPerSecond: 3, Burst: 5},
		},
		WorkerPool: WorkerPool{
			NumWorkers:         5,
			MaxAgentIterations: 30,
			TaskDelayMS:        0,
		},
		AgentOrchestration: AgentOrchestration{
			Mode:              "single",
			ResearchAgents:    2,
			WriterAgents:      2,
			ParallelExecution: true,
			AgentsDir:         "agents",
		},
		AutoCompact: AutoCompact{
			Enabled:              true,
			TriggerAtMessages:    15,
			PreserveLastMessages: 5,
			SummarizationModel:   "gpt-4o-mini",
		},
	}
}

// Validate checks required fields and fills defaults for omitted ones.
func (c *Config) Validate() error {
	if c.WorkerPool.NumWorkers < 1 {
		c.WorkerPool.NumWorkers = 5
	}
	if c.WorkerPool.MaxAgentIterations < 1 {
		c.WorkerPool.MaxAgentIterations = 30
	}
	if c.WorkerPool.TaskDelayMS < 0 {
		return fmt.Errorf("worker_pool.task_delay_ms cannot be negative")
	}

	switch c.AgentOrchestration.Mode {
	case "", "single":
		c.AgentOrchestration.Mode = "single"
	case "multi":
		if c.AgentOrchestration.AgentsDir == "" {
			c.AgentOrchestration.AgentsDir = "agents"
		}
		if c.AgentOrchestration.ResearchAgents < 1 {
			c.AgentOrchestration.ResearchAgents = 2
		}
		if c.AgentOrchestration.WriterAgents < 1 {
			c.AgentOrchestration.WriterAgents = 2
		}
	default:
		return fmt.Errorf("agent_orchestration.mode must be \"single\" or \"multi\", got %q", c.AgentOrchestration.Mode)
	}

	if c.AutoCompact.TriggerAtMessages < 1 {
		c.AutoCompact.TriggerAtMessages = 15
	}
	if c.AutoCompact.PreserveLastMessages < 1 {
		c.AutoCompact.PreserveLastMessages = 5
	}
	if c.AutoCompact.SummarizationModel == "" {
		c.AutoCompact.SummarizationModel = "gpt-4o-mini"
	}

	for role, m := range map[string]ModelConfig{
		"classification":    c.Models.Classification,
		"letter_generation": c.Models.Generation,
		"summarization":     c.Models.Summarization,
	} {
		if m.Provider == "" || m.Model == "" {
			return fmt.Errorf("models.%s needs provider and model", role)
		}
		if _, ok := c.Providers[m.Provider]; !ok {
			return fmt.Errorf("models.%s references unknown provider %q", role, m.Provider)
		}
	}

	for name, p := range c.Providers {
		if p.APIKeyEnv == "" {
			return fmt.Errorf("providers.%s needs api_key_env", name)
		}
	}

	return nil
}

// ProviderFor returns the endpoint description for a model config.
func (c *Config) ProviderFor(m ModelConfig) Provider {
	return c.Providers[m.Provider]
}
