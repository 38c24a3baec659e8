// ABOUTME: Agent definition file loading (agents.yml or agents.toml)
// ABOUTME: Parses agent personas, models, options and the settings shared by every agent

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrAgentNotFound is returned when a requested agent is not defined in the agents file
var ErrAgentNotFound = errors.New("agent not found")

// Dispatch modes for inbound frames on the agent side
const (
	DispatchSerial     = "serial"
	DispatchConcurrent = "concurrent"
)

// DefaultHistoryLimit is the prompt window used when chat_history_limit is absent.
const DefaultHistoryLimit = 10

// AgentsFile is the parsed agents definition file
type AgentsFile struct {
	Agents         []AgentConfig  `yaml:"agents" toml:"agents"`
	CommonSettings CommonSettings `yaml:"common_settings" toml:"common_settings"`
}

// AgentConfig defines one agent
type AgentConfig struct {
	Name string `yaml:"name" toml:"name"`
	// Model is a model id, optionally prefixed "provider/"
	Model    string `yaml:"model" toml:"model"`
	Provider string `yaml:"provider" toml:"provider"`
	// Persona is either a string or a list of lines
	Persona any            `yaml:"persona" toml:"persona"`
	Options map[string]any `yaml:"options" toml:"options"`
}

// CommonSettings apply to every agent in the file
type CommonSettings struct {
	// ChatHistoryLimit is nil when unset so an explicit 0 (no window) survives
	ChatHistoryLimit *int   `yaml:"chat_history_limit" toml:"chat_history_limit"`
	ResponseDelayMS  int    `yaml:"response_delay_ms" toml:"response_delay_ms"`
	Dispatch         string `yaml:"dispatch" toml:"dispatch"`
	ReplayHistory    bool   `yaml:"replay_history" toml:"replay_history"`
}

// HistoryLimit returns the configured prompt window, or DefaultHistoryLimit.
func (c CommonSettings) HistoryLimit() int {
	if c.ChatHistoryLimit == nil {
		return DefaultHistoryLimit
	}
	return *c.ChatHistoryLimit
}

// DispatchMode returns the configured dispatch mode, defaulting to serial.
func (c CommonSettings) DispatchMode() string {
	if c.Dispatch == "" {
		return DispatchSerial
	}
	return strings.ToLower(c.Dispatch)
}

// LoadAgents reads an agents file. Files ending in .toml are parsed as TOML,
// everything else as YAML. ${VAR_NAME} references are expanded first.
func LoadAgents(path string) (*AgentsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading agents file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	var f AgentsFile
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(expanded, &f); err != nil {
			return nil, fmt.Errorf("parsing agents file: %w", err)
		}
	default:
		if err := yaml.Unmarshal([]byte(expanded), &f); err != nil {
			return nil, fmt.Errorf("parsing agents file: %w", err)
		}
	}

	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("validating agents file: %w", err)
	}

	return &f, nil
}

// Validate checks agent definitions and shared settings.
func (f *AgentsFile) Validate() error {
	if len(f.Agents) == 0 {
		return fmt.Errorf("at least one agent is required")
	}

	seen := make(map[string]bool, len(f.Agents))
	for i, a := range f.Agents {
		if a.Name == "" {
			return fmt.Errorf("agents[%d].name is required", i)
		}
		if a.Model == "" {
			return fmt.Errorf("agents[%d].model is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		seen[a.Name] = true
	}

	cs := f.CommonSettings
	if cs.ChatHistoryLimit != nil && *cs.ChatHistoryLimit < 0 {
		return fmt.Errorf("common_settings.chat_history_limit must not be negative")
	}
	if cs.ResponseDelayMS < 0 {
		return fmt.Errorf("common_settings.response_delay_ms must not be negative")
	}
	switch cs.DispatchMode() {
	case DispatchSerial, DispatchConcurrent:
	default:
		return fmt.Errorf("common_settings.dispatch must be %s or %s, got %q", DispatchSerial, DispatchConcurrent, cs.Dispatch)
	}

	return nil
}

// Find returns the agent with the given name.
func (f *AgentsFile) Find(name string) (*AgentConfig, error) {
	for i := range f.Agents {
		if f.Agents[i].Name == name {
			return &f.Agents[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrAgentNotFound, name)
}
