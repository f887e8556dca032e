// Package icp loads the ideal customer profile context that steers
// classification and letter writing: the go-to-market strategy, the task
// instructions, and any writing guides.
package icp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

// Context holds the loaded context documents.
type Context struct {
	GTM         string
	Instruction string
	Guides      string
}

// Loader reads context files from a directory. GTM.md and
// agent_instruction.md are required; guides/*.md are optional.
type Loader struct {
	dir    string
	logger *logrus.Logger
}

func NewLoader(dir string, logger *logrus.Logger) (*Loader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("context directory not found: %s", dir)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("context path is not a directory: %s", dir)
	}
	return &Loader{dir: dir, logger: logger}, nil
}

// Load reads all context files.
func (l *Loader) Load() (*Context, error) {
	gtm, err := l.readRequired("GTM.md")
	if err != nil {
		return nil, err
	}
	instruction, err := l.readRequired("agent_instruction.md")
	if err != nil {
		return nil, err
	}
	guides, err := l.loadGuides()
	if err != nil {
		return nil, err
	}

	l.logger.WithFields(logrus.Fields{
		"context_dir": l.dir,
		"gtm_bytes":   len(gtm),
		"guides":      len(guides) > 0,
	}).Info("Loaded agent context")

	return &Context{
		GTM:         gtm,
		Instruction: instruction,
		Guides:      guides,
	}, nil
}

func (l *Loader) readRequired(name string) (string, error) {
	data, err := os.ReadFile(filepath.Join(l.dir, name))
	if err != nil {
		return "", fmt.Errorf("%s not found in %s: %w", name, l.dir, err)
	}
	return string(data), nil
}

func (l *Loader) loadGuides() (string, error) {
	guidesDir := filepath.Join(l.dir, "guides")
	entries, err := os.ReadDir(guidesDir)
	if err != nil {
		if os.IsNotExist(err) {
			l.logger.WithField("context_dir", l.dir).Warn("No guides/ directory in context")
			return "", nil
		}
		return "", fmt.Errorf("failed to read guides directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".md") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var sections []string
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(guidesDir, name))
		if err != nil {
			return "", fmt.Errorf("failed to read guide %s: %w", name, err)
		}
		title := strings.TrimSuffix(name, ".md")
		sections = append(sections, fmt.Sprintf("# %s\n\n%s", title, string(data)))
	}

	if len(sections) == 0 {
		l.logger.WithField("guides_dir", guidesDir).Warn("No guide files found")
		return "", nil
	}
	return strings.Join(sections, "\n\n---\n\n"), nil
}

// Format renders the context as a single block for inclusion in prompts.
func (c *Context) Format() string {
	return fmt.Sprintf(`# PROJECT CONTEXT

## Go-To-Market Strategy
%s

---

## Writing Guides
%s

---

## Task Instructions
%s
`, c.GTM, c.Guides, c.Instruction)
}
