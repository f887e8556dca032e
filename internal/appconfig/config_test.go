package appconfig_test

import (
	"io"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/leadforge/outreach-orchestrator/internal/appconfig"
)

var _ = Describe("Load", func() {
	var (
		logger *logrus.Logger
		dir    string
	)

	BeforeEach(func() {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
		dir = GinkgoT().TempDir()
	})

	writeConfig := func(content string) string {
		path := filepath.Join(dir, "config.json")
		Expect(os.WriteFile(path, []byte(content), 0o644)).To(Succeed())
		return path
	}

	It("returns defaults when the file does not exist", func() {
		config, err := appconfig.Load(filepath.Join(dir, "missing.json"), logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.WorkerPool.NumWorkers).To(Equal(5))
		Expect(config.AgentOrchestration.Mode).To(Equal("single"))
		Expect(config.Models.Classification.Provider).To(Equal("deepseek"))
		Expect(config.Providers).To(HaveKey("deepseek"))
	})

	It("overlays the file on top of defaults", func() {
		path := writeConfig(`{
			"worker_pool": {"num_workers": 2, "max_agent_iterations": 10},
			"agent_orchestration": {"mode": "multi", "agents_dir": "my_agents"}
		}`)

		config, err := appconfig.Load(path, logger)
		Expect(err).NotTo(HaveOccurred())
		Expect(config.WorkerPool.NumWorkers).To(Equal(2))
		Expect(config.AgentOrchestration.Mode).To(Equal("multi"))
		Expect(config.AgentOrchestration.AgentsDir).To(Equal("my_agents"))
		// Untouched sections keep their defaults.
		Expect(config.Models.Generation.Model).To(Equal("deepseek-chat"))
	})

	It("rejects malformed JSON", func() {
		path := writeConfig(`{"worker_pool": `)
		_, err := appconfig.Load(path, logger)
		Expect(err).To(MatchError(ContainSubstring("malformed config")))
	})

	It("rejects an unknown orchestration mode", func() {
		path := writeConfig(`{"agent_orchestration": {"mode": "swarm"}}`)
		_, err := appconfig.Load(path, logger)
		Expect(err).To(MatchError(ContainSubstring("mode")))
	})

	It("rejects a model that references an unknown provider", func() {
		path := writeConfig(`{"models": {"classification": {"provider": "mystery", "model": "m"}}}`)
		_, err := appconfig.Load(path, logger)
		Expect(err).To(MatchError(ContainSubstring("unknown provider")))
	})

	It("rejects a negative task delay", func() {
		path := writeConfig(`{"worker_pool": {"task_delay_ms": -10}}`)
		_, err := appconfig.Load(path, logger)
		Expect(err).To(MatchError(ContainSubstring("task_delay_ms")))
	})
})

var _ = Describe("Validate", func() {
	It("fills multi-mode defaults", func() {
		config := appconfig.Default()
		config.AgentOrchestration.Mode = "multi"
		config.AgentOrchestration.AgentsDir = ""
		config.AgentOrchestration.ResearchAgents = 0

		Expect(config.Validate()).To(Succeed())
		Expect(config.AgentOrchestration.AgentsDir).To(Equal("agents"))
		Expect(config.AgentOrchestration.ResearchAgents).To(Equal(2))
	})

	It("requires api_key_env on every provider", func() {
		config := appconfig.Default()
		config.Providers["local"] = appconfig.Provider{BaseURL: "http://localhost:8080/v1"}

		Expect(config.Validate()).To(MatchError(ContainSubstring("api_key_env")))
	})
})
