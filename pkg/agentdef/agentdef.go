// Package agentdef loads declarative agent definitions from markdown files
// with YAML frontmatter. The frontmatter carries the model wiring; the
// markdown body is the agent's instructions.
package agentdef

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// AgentConfig is one agent definition parsed from a markdown file.
type AgentConfig struct {
	Name          string   `yaml:"name"`
	Description   string   `yaml:"description"`
	Role          string   `yaml:"role"`
	Tools         []string `yaml:"tools"`
	Model         string   `yaml:"model"`
	Provider      string   `yaml:"provider"`
	Temperature   float64  `yaml:"temperature"`
	MaxIterations int      `yaml:"max_iterations"`

	// Instructions is the markdown body after the frontmatter.
	Instructions string `yaml:"-"`
	FilePath     string `yaml:"-"`
}

func (c *AgentConfig) validate(path string) error {
	var missing []string
	if c.Name == "" {
		missing = append(missing, "name")
	}
	if c.Description == "" {
		missing = append(missing, "description")
	}
	if c.Role == "" {
		missing = append(missing, "role")
	}
	if c.Model == "" {
		missing = append(missing, "model")
	}
	if c.Provider == "" {
		missing = append(missing, "provider")
	}
	if c.MaxIterations == 0 {
		missing = append(missing, "max_iterations")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required fields in %s: %s", path, strings.Join(missing, ", "))
	}
	return nil
}

// Loader reads agent files from a directory and caches parsed configs.
type Loader struct {
	dir    string
	logger *logrus.Logger

	mu    sync.Mutex
	cache map[string]*AgentConfig
}

func NewLoader(dir string, logger *logrus.Logger) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("agents directory not found: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("agents path is not a directory: %s", dir)
	}
	return &Loader{
		dir:    dir,
		logger: logger,
		cache:  make(map[string]*AgentConfig),
	}, nil
}

// Load returns the agent named name (without the .md extension).
func (l *Loader) Load(name string) (*AgentConfig, error) {
	l.mu.Lock()
	if cached, ok := l.cache[name]; ok {
		l.mu.Unlock()
		return cached, nil
	}
	l.mu.Unlock()

	path := filepath.Join(l.dir, name+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agent file not found: %s", path)
	}

	config, err := Parse(string(data), path)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.cache[name] = config
	l.mu.Unlock()

	l.logger.WithFields(logrus.Fields{
		"agent":    config.Name,
		"role":     config.Role,
		"provider": config.Provider,
		"model":    config.Model,
	}).Debug("Loaded agent definition")

	return config, nil
}

// LoadAll parses every .md file in the agents directory.
func (l *Loader) LoadAll() (map[string]*AgentConfig, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents directory: %w", err)
	}

	agents := make(map[string]*AgentConfig)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		name := strings.TrimSuffix(e.Name(), ".md")
		config, err := l.Load(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load agent %s: %w", name, err)
		}
		agents[name] = config
	}
	return agents, nil
}

// Parse splits a markdown document into YAML frontmatter and body and
// validates the required fields.
func Parse(content, path string) (*AgentConfig, error) {
	rest, ok := strings.CutPrefix(content, "---\n")
	if !ok {
		rest, ok = strings.CutPrefix(content, "---\r\n")
	}
	if !ok {
		return nil, fmt.Errorf("agent file missing YAML frontmatter: %s", path)
	}

	idx := strings.Index(rest, "\n---")
	if idx < 0 {
		return nil, fmt.Errorf("agent file missing YAML frontmatter terminator: %s", path)
	}
	frontmatter := rest[:idx]
	body := rest[idx+len("\n---"):]
	if nl := strings.IndexByte(body, '\n'); nl >= 0 {
		body = body[nl+1:]
	} else {
		body = ""
	}

	config := &AgentConfig{Temperature: 0.7}
	if err := yaml.Unmarshal([]byte(frontmatter), config); err != nil {
		return nil, fmt.Errorf("invalid YAML frontmatter in %s: %w", path, err)
	}
	config.Instructions = strings.TrimSpace(body)
	config.FilePath = path

	if err := config.validate(path); err != nil {
		return nil, err
	}
	return config, nil
}
