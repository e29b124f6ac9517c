// Package config loads pairlisp evaluation limits from project and user config files.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/thomasrohde/pairlisp/pkg/evaluator"
)

// ProjectFile is the config file name looked up in the working directory.
const ProjectFile = ".pairlisp.json"

// Config represents the JSON structure of a config file.
type Config struct {
	MaxSteps *int64 `json:"maxSteps,omitempty"`
	MaxDepth *int64 `json:"maxDepth,omitempty"`
	TimeMs   *int64 `json:"timeMs,omitempty"`
}

// Budget converts the configured limits into an evaluation budget.
// A nil receiver yields the zero budget.
func (c *Config) Budget() evaluator.Budget {
	if c == nil {
		return evaluator.Budget{}
	}
	return evaluator.Budget{
		MaxSteps: c.MaxSteps,
		MaxDepth: c.MaxDepth,
		TimeMs:   c.TimeMs,
	}
}

// Load loads limits from project and user config files.
// Precedence: project (.pairlisp.json) → user (~/.pairlisp/config.json) → no file.
// The returned path is empty when no file was found.
func Load(projectDir string) (*Config, string, error) {
	projectPath := filepath.Join(projectDir, ProjectFile)
	if c, err := loadFile(projectPath); err == nil {
		return c, projectPath, nil
	} else if !os.IsNotExist(err) {
		return nil, projectPath, err
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		userPath := filepath.Join(homeDir, ".pairlisp", "config.json")
		if c, err := loadFile(userPath); err == nil {
			return c, userPath, nil
		} else if !os.IsNotExist(err) {
			return nil, userPath, err
		}
	}

	return &Config{}, "", nil
}

func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &c, nil
}

func (c *Config) validate() error {
	for name, v := range map[string]*int64{"maxSteps": c.MaxSteps, "maxDepth": c.MaxDepth, "timeMs": c.TimeMs} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, *v)
		}
	}
	return nil
}

// Override returns a copy of c with every non-nil field of o applied on top.
func (c *Config) Override(o Config) *Config {
	out := Config{}
	if c != nil {
		out = *c
	}
	if o.MaxSteps != nil {
		out.MaxSteps = o.MaxSteps
	}
	if o.MaxDepth != nil {
		out.MaxDepth = o.MaxDepth
	}
	if o.TimeMs != nil {
		out.TimeMs = o.TimeMs
	}
	return &out
}
