// Package workflows loads the workflow catalog and seeds it, with the demo
// user directory, into the store.
package workflows

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/p-blackswan/tally/internal/models"
	"github.com/p-blackswan/tally/internal/parser"
)

//go:embed catalog.yaml
var builtin []byte

// DemoUser is a directory entry seeded into an empty store.
type DemoUser struct {
	Name   string `yaml:"name"`
	Email  string `yaml:"email"`
	Avatar string `yaml:"avatar"`
}

// Catalog is the parsed workflow catalog file.
type Catalog struct {
	Workflows []models.Workflow `yaml:"workflows"`
	Users     []DemoUser        `yaml:"users"`
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(builtin)
}

// Load reads a catalog from path, or the built-in one when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("workflows: read %s: %w", path, err)
	}
	cat, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("workflows: %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes catalog YAML after expanding environment variables.
func Parse(data []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), &cat); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	if err := cat.normalize(); err != nil {
		return nil, err
	}
	return &cat, nil
}

func (c *Catalog) normalize() error {
	seen := make(map[string]bool, len(c.Workflows))
	for i := range c.Workflows {
		w := &c.Workflows[i]
		w.Name = strings.TrimSpace(w.Name)
		if w.Name == "" {
			return fmt.Errorf("workflow %d has no name", i)
		}
		if seen[w.Name] {
			return fmt.Errorf("duplicate workflow %q", w.Name)
		}
		seen[w.Name] = true
		if w.Slug == "" {
			w.Slug = models.SlugOf(w.Name)
		}
		for j := range w.Stages {
			if w.Stages[j].Order == 0 {
				w.Stages[j].Order = j + 1
			}
		}
		for j := range w.Fields {
			if w.Fields[j].Type == "" {
				w.Fields[j].Type = models.FieldText
			}
		}
	}
	for i, u := range c.Users {
		if strings.TrimSpace(u.Name) == "" || strings.TrimSpace(u.Email) == "" {
			return fmt.Errorf("user %d needs a name and an email", i)
		}
	}
	return nil
}

// Vocabulary returns the catalog as the workflow-type list offered to the
// structured extractor.
func (c *Catalog) Vocabulary() []parser.Workflow {
	out := make([]parser.Workflow, 0, len(c.Workflows))
	for _, w := range c.Workflows {
		out = append(out, parser.Workflow{Slug: w.Slug, Name: w.Name})
	}
	return out
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// expandEnvVars replaces ${VAR} and $VAR with the environment value; unset
// variables become empty.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimPrefix(match, "${")
		name = strings.TrimSuffix(name, "}")
		name = strings.TrimPrefix(name, "$")
		return os.Getenv(name)
	})
}
