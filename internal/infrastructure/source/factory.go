package source

import (
	"fmt"

	"treesync/internal/application"
	"treesync/internal/infrastructure/config"
)

// FromConfig builds the adapter a source config entry describes.
func FromConfig(cfg config.SourceConfig) (application.Source, error) {
	switch cfg.Type {
	case "jira":
		return NewJira(cfg.Name, cfg.URL, cfg.Email, cfg.Token, cfg.Project), nil
	case "azuredevops":
		return NewAzureDevOps(cfg.Name, cfg.URL, cfg.Token, cfg.Project), nil
	case "github":
		return NewGitHub(cfg.Name, cfg.Org, cfg.Token, cfg.Project), nil
	default:
		return nil, fmt.Errorf("source %q: unknown type %q", cfg.Name, cfg.Type)
	}
}
