package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultFile is the config file name looked up in the working directory.
const DefaultFile = "treesync.yaml"

// SourceConfig describes one external issue-tracking instance. Secrets may
// reference environment variables with ${VAR}; they are expanded at load
// time so no credential needs to live in the file.
type SourceConfig struct {
	// Name is the per-instance prefix used during id derivation.
	Name string `yaml:"name"`
	// Type selects the adapter: "jira", "azuredevops" or "github".
	Type string `yaml:"type"`
	// URL is the instance base URL (Jira site, ADO organization URL). For
	// GitHub it may be left empty for github.com.
	URL string `yaml:"url,omitempty"`
	// Email is the account email for Jira basic auth.
	Email string `yaml:"email,omitempty"`
	// Token is the API token or personal access token.
	Token string `yaml:"token"`
	// Org is the GitHub organization or user whose repositories are synced.
	Org string `yaml:"org,omitempty"`
	// Project optionally restricts the fetch to a single project.
	Project string `yaml:"project,omitempty"`
}

// TargetConfig describes the flat task tracker written to.
type TargetConfig struct {
	// URL is the API base URL; defaults to the TimeCamp cloud endpoint.
	URL string `yaml:"url,omitempty"`
	// Token is the bearer token.
	Token string `yaml:"token"`
	// RootTaskID is the container task all synced trees hang under.
	RootTaskID string `yaml:"root_task_id"`
}

// ExecutorConfig tunes plan application.
type ExecutorConfig struct {
	Concurrency  int    `yaml:"concurrency,omitempty"`
	MaxAttempts  int    `yaml:"max_attempts,omitempty"`
	InitialDelay string `yaml:"initial_delay,omitempty"`
	CallTimeout  string `yaml:"call_timeout,omitempty"`
}

// UploadConfig enables the optional object-storage upload of run
// artifacts.
type UploadConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Endpoint  string `yaml:"endpoint,omitempty"`
	AccessKey string `yaml:"access_key,omitempty"`
	SecretKey string `yaml:"secret_key,omitempty"`
	Bucket    string `yaml:"bucket,omitempty"`
	Prefix    string `yaml:"prefix,omitempty"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Config is the full treesync configuration.
type Config struct {
	Sources     []SourceConfig `yaml:"sources"`
	Target      TargetConfig   `yaml:"target"`
	Executor    ExecutorConfig `yaml:"executor,omitempty"`
	Interchange string         `yaml:"interchange,omitempty"`
	Upload      UploadConfig   `yaml:"upload,omitempty"`
}

// Load reads and validates the configuration file. ${VAR} references are
// expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	// #nosec G304 -- path comes from the CLI flag, not remote input
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Target.URL == "" {
		c.Target.URL = "https://app.timecamp.com"
	}
	if c.Interchange == "" {
		c.Interchange = "tasks.json"
	}
}

// Validate checks the fields no run can proceed without.
func (c *Config) Validate() error {
	seen := make(map[string]bool)
	for i, src := range c.Sources {
		if src.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if seen[src.Name] {
			return fmt.Errorf("source %q: duplicate name", src.Name)
		}
		seen[src.Name] = true

		switch src.Type {
		case "jira":
			if src.URL == "" || src.Email == "" || src.Token == "" {
				return fmt.Errorf("source %q: jira requires url, email and token", src.Name)
			}
		case "azuredevops":
			if src.URL == "" || src.Token == "" {
				return fmt.Errorf("source %q: azuredevops requires url and token", src.Name)
			}
		case "github":
			if src.Org == "" || src.Token == "" {
				return fmt.Errorf("source %q: github requires org and token", src.Name)
			}
		default:
			return fmt.Errorf("source %q: unknown type %q", src.Name, src.Type)
		}
	}

	if c.Target.Token == "" {
		return fmt.Errorf("target: token is required")
	}
	if c.Target.RootTaskID == "" {
		return fmt.Errorf("target: root_task_id is required")
	}

	if _, _, err := c.ExecutorDurations(); err != nil {
		return err
	}
	return nil
}

// ExecutorDurations parses the executor's duration strings.
func (c *Config) ExecutorDurations() (initialDelay, callTimeout time.Duration, _ error) {
	var err error
	if c.Executor.InitialDelay != "" {
		if initialDelay, err = time.ParseDuration(c.Executor.InitialDelay); err != nil {
			return 0, 0, fmt.Errorf("executor.initial_delay: %w", err)
		}
	}
	if c.Executor.CallTimeout != "" {
		if callTimeout, err = time.ParseDuration(c.Executor.CallTimeout); err != nil {
			return 0, 0, fmt.Errorf("executor.call_timeout: %w", err)
		}
	}
	return initialDelay, callTimeout, nil
}
