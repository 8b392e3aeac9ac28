package config

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default credit multipliers (credits per acre) by ecosystem type.
const (
	DefaultMultiplier = 100
)

// DefaultMultipliers returns the built-in ecosystem multipliers.
func DefaultMultipliers() map[string]int {
	return map[string]int{
		"mangrove": 150,
		"seagrass": 100,
		"coral":    200,
	}
}

// YAMLConfig represents the structure of the config.yaml file.
// Ecosystem tuning is easier to manage in YAML than env vars.
type YAMLConfig struct {
	Ecosystems []EcosystemConfig `yaml:"ecosystems"`
	Defaults   DefaultsConfig    `yaml:"defaults"`
}

// EcosystemConfig defines the credit multiplier for one ecosystem type.
type EcosystemConfig struct {
	Type       string `yaml:"type"`
	Multiplier int    `yaml:"multiplier"` // credits per acre
}

// DefaultsConfig defines default settings.
type DefaultsConfig struct {
	Multiplier int `yaml:"multiplier"` // used for unrecognized ecosystem types
}

// LoadYAMLConfig loads the YAML configuration file.
// Path is determined by CONFIG_FILE env var, defaulting to "config.yaml".
// Returns nil without error if the config file doesn't exist.
func LoadYAMLConfig() (*YAMLConfig, error) {
	return LoadYAMLConfigFile(getEnv("CONFIG_FILE", "config.yaml"))
}

// LoadYAMLConfigFile loads the YAML configuration from path.
func LoadYAMLConfigFile(path string) (*YAMLConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Config file is optional
			return nil, nil
		}
		return nil, err
	}

	var cfg YAMLConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Defaults.Multiplier <= 0 {
		cfg.Defaults.Multiplier = DefaultMultiplier
	}

	return &cfg, nil
}

// Multipliers merges the configured ecosystems over the built-in defaults.
// Safe to call on a nil config.
func (c *YAMLConfig) Multipliers() map[string]int {
	m := DefaultMultipliers()
	if c == nil {
		return m
	}
	for _, e := range c.Ecosystems {
		t := strings.ToLower(strings.TrimSpace(e.Type))
		if t == "" || e.Multiplier <= 0 {
			continue
		}
		m[t] = e.Multiplier
	}
	return m
}

// FallbackMultiplier returns the multiplier for unrecognized types.
func (c *YAMLConfig) FallbackMultiplier() int {
	if c == nil || c.Defaults.Multiplier <= 0 {
		return DefaultMultiplier
	}
	return c.Defaults.Multiplier
}
