package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"

	"github.com/leadforge/outreach-orchestrator/internal/appconfig"
	"github.com/leadforge/outreach-orchestrator/pkg/agent"
	"github.com/leadforge/outreach-orchestrator/pkg/agentdef"
	"github.com/leadforge/outreach-orchestrator/pkg/classify"
	"github.com/leadforge/outreach-orchestrator/pkg/db"
	"github.com/leadforge/outreach-orchestrator/pkg/generate"
	"github.com/leadforge/outreach-orchestrator/pkg/icp"
	"github.com/leadforge/outreach-orchestrator/pkg/llm/openai"
	"github.com/leadforge/outreach-orchestrator/pkg/logging"
	"github.com/leadforge/outreach-orchestrator/pkg/orchestrator"
	"github.com/leadforge/outreach-orchestrator/pkg/queue"
	"github.com/leadforge/outreach-orchestrator/pkg/ratelimit"
	"github.com/leadforge/outreach-orchestrator/pkg/tools"
)

func main() {
	inputCSV := flag.String("input", "", "input CSV with leads (required unless -resume)")
	outputCSV := flag.String("output", "results.csv", "output CSV path")
	contextDir := flag.String("context", "context", "context directory (GTM.md, agent_instruction.md, guides/)")
	configPath := flag.String("config", "config.json", "configuration file")
	dbPath := flag.String("db", "data/progress.db", "SQLite database path")
	workers := flag.Int("workers", 0, "number of workers (overrides config)")
	resume := flag.Bool("resume", false, "resume a previous run instead of starting fresh")
	startPosition := flag.Int("start", 0, "skip this many data rows of the input CSV")
	flag.Parse()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logrus.WithError(err).Warn("Error loading .env file")
	}

	log := logrus.New()
	log.SetFormatter(logging.NewColoredJSONFormatter())

	logLevel := os.Getenv("LOG_LEVEL")
	if level, err := logrus.ParseLevel(logLevel); err == nil {
		log.SetLevel(level)
	} else {
		log.SetLevel(logrus.InfoLevel)
		if logLevel != "" {
			log.WithFields(logrus.Fields{
				"attempted_level": logLevel,
				"default_level":   "INFO",
			}).Warn("Invalid log level specified, defaulting to INFO")
		}
	}

	if *inputCSV == "" && !*resume {
		log.Fatal("-input is required unless -resume is set")
	}

	config, err := appconfig.Load(*configPath, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	if *workers > 0 {
		config.WorkerPool.NumWorkers = *workers
	}

	contextLoader, err := icp.NewLoader(*contextDir, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to open context directory")
	}
	agentContext, err := contextLoader.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load agent context")
	}

	gormDB, err := db.SetupDatabase(log, *dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	taskQueue := queue.New(gormDB, log)

	limits := make(map[string]ratelimit.Limit, len(config.RateLimiting))
	for provider, rl := range config.RateLimiting {
		limits[provider] = ratelimit.Limit{
			RequestsPerSecond: rl.RequestsPerSecond,
			Burst:             rl.Burst,
		}
	}
	registry := ratelimit.NewRegistry(log, limits)

	newClient := func(m appconfig.ModelConfig, jsonMode bool) (*openai.Client, error) {
		provider := config.ProviderFor(m)
		clientConfig, err := openai.NewConfig(m.Provider, provider.APIKeyEnv, provider.BaseURL, m.Model, log)
		if err != nil {
			return nil, err
		}
		clientConfig.Temperature = m.Temperature
		clientConfig.JSONMode = jsonMode
		return openai.NewClient(clientConfig, registry)
	}

	classifyClient, err := newClient(config.Models.Classification, true)
	if err != nil {
		log.WithError(err).Fatal("Failed to create classification client")
	}
	classifier := classify.New(classifyClient, agentContext.GTM, log)

	toolsConfig, err := tools.NewConfig(log)
	if err != nil {
		log.WithError(err).Fatal("Failed to load tool configuration")
	}
	httpClient := toolsConfig.NewHTTPClient()
	toolRegistry := tools.NewRegistry(log)
	toolRegistry.Register(tools.NewProfileClient(toolsConfig, httpClient))
	toolRegistry.Register(tools.NewSearchClient(toolsConfig, httpClient))

	var compactor *agent.Compactor
	if config.AutoCompact.Enabled {
		summarizeConfig := config.Models.Summarization
		summarizeConfig.Model = config.AutoCompact.SummarizationModel
		summarizer, err := newClient(summarizeConfig, false)
		if err != nil {
			log.WithError(err).Fatal("Failed to create summarization client")
		}
		compactor = agent.NewCompactor(
			summarizer.Model(),
			config.AutoCompact.TriggerAtMessages,
			config.AutoCompact.PreserveLastMessages,
			log,
		)
	}

	generator, err := buildGenerator(config, agentContext, toolRegistry, compactor, registry, newClient, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to create generator")
	}

	orch := orchestrator.New(taskQueue, classifier, generator, orchestrator.Options{
		InputCSV:      *inputCSV,
		OutputCSV:     *outputCSV,
		Resume:        *resume,
		StartPosition: *startPosition,
		NumWorkers:    config.WorkerPool.NumWorkers,
		TaskDelay:     time.Duration(config.WorkerPool.TaskDelayMS) * time.Millisecond,
		CostModel:     config.Models.Generation.Model,
	}, log)

	if err := orch.Run(context.Background()); err != nil && err != context.Canceled {
		log.WithError(err).Fatal("Run failed")
	}

	log.Info("Orchestrator finished")
}

type clientFactory func(m appconfig.ModelConfig, jsonMode bool) (*openai.Client, error)

func buildGenerator(
	config *appconfig.Config,
	agentContext *icp.Context,
	toolRegistry *tools.Registry,
	compactor *agent.Compactor,
	registry *ratelimit.Registry,
	newClient clientFactory,
	log *logrus.Logger,
) (generate.Generator, error) {
	if config.AgentOrchestration.Mode == "multi" {
		loader, err := agentdef.NewLoader(config.AgentOrchestration.AgentsDir, log)
		if err != nil {
			return nil, err
		}

		factory := func(provider, model string) (llms.Model, error) {
			endpoint, ok := config.Providers[provider]
			if !ok {
				return nil, fmt.Errorf("agent references unknown provider %q", provider)
			}
			clientConfig, err := openai.NewConfig(provider, endpoint.APIKeyEnv, endpoint.BaseURL, model, log)
			if err != nil {
				return nil, err
			}
			client, err := openai.NewClient(clientConfig, registry)
			if err != nil {
				return nil, err
			}
			return client.Model(), nil
		}

		return generate.NewMultiAgent(generate.MultiAgentConfig{
			Loader:      loader,
			Factory:     factory,
			Registry:    toolRegistry,
			Context:     agentContext,
			Compactor:   compactor,
			Researchers: config.AgentOrchestration.ResearchAgents,
			Writers:     config.AgentOrchestration.WriterAgents,
			Parallel:    config.AgentOrchestration.ParallelExecution,
			Logger:      log,
		})
	}

	generationClient, err := newClient(config.Models.Generation, false)
	if err != nil {
		return nil, err
	}
	return generate.NewSingleAgent(generate.SingleAgentConfig{
		Model:         generationClient.Model(),
		Registry:      toolRegistry,
		Context:       agentContext,
		Temperature:   config.Models.Generation.Temperature,
		MaxIterations: config.WorkerPool.MaxAgentIterations,
		Compactor:     compactor,
		Logger:        log,
	})
}
