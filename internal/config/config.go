package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Generating stages, in workflow order. The financial summary is combined
// by the orchestrator itself and has no agent.
var GeneratingStages = []string{"draft", "design", "effort", "cost", "value"}

// Review gates, in workflow order.
var ReviewGates = []string{"draft", "design", "effort", "cost", "value", "final"}

// Config models caseline.yml.
type Config struct {
	Service struct {
		Name string `yaml:"name"`
	} `yaml:"service"`
	Review struct {
		// Gates maps a review gate to the roles allowed to decide it.
		Gates map[string][]string `yaml:"gates"`
	} `yaml:"review"`
	Agents struct {
		Mode           string            `yaml:"mode"` // local or http
		TimeoutSeconds int               `yaml:"timeout_seconds"`
		Endpoints      map[string]string `yaml:"endpoints"`
	} `yaml:"agents"`
}

// GateRoles returns the roles allowed to decide a gate, falling back to
// the built-in defaults when the config leaves a gate out.
func (c *Config) GateRoles(gate string) []string {
	if roles, ok := c.Review.Gates[gate]; ok && len(roles) > 0 {
		return roles
	}
	if gate == "final" {
		return []string{"approver"}
	}
	return []string{"reviewer"}
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Service.Name == "" {
		return fmt.Errorf("config.service.name is required")
	}
	known := map[string]bool{}
	for _, g := range ReviewGates {
		known[g] = true
	}
	for gate, roles := range c.Review.Gates {
		if !known[gate] {
			return fmt.Errorf("config.review.gates has unknown gate %s", gate)
		}
		for _, role := range roles {
			if role == "" {
				return fmt.Errorf("gate %s has empty role", gate)
			}
		}
	}
	switch c.Agents.Mode {
	case "", "local":
	case "http":
		for _, stage := range GeneratingStages {
			if c.Agents.Endpoints[stage] == "" {
				return fmt.Errorf("agents.mode=http requires agents.endpoints.%s", stage)
			}
		}
	default:
		return fmt.Errorf("agents.mode must be local or http")
	}
	if c.Agents.TimeoutSeconds < 0 {
		return fmt.Errorf("agents.timeout_seconds must not be negative")
	}
	return nil
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; generate one with cl config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the defaults if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "caseline.yml")
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

const defaultTemplate = `service:
  name: caseline

review:
  gates:
    draft: [reviewer]
    design: [reviewer]
    effort: [reviewer]
    cost: [reviewer]
    value: [reviewer]
    final: [approver]

agents:
  mode: local
  timeout_seconds: 60
  endpoints:
    draft: ""
    design: ""
    effort: ""
    cost: ""
    value: ""
`
