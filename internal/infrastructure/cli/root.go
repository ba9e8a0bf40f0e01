// Package cli implements the treesync command tree.
package cli

import (
	"github.com/spf13/cobra"

	"treesync/internal/infrastructure/config"
)

var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var configPath string

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:     "treesync",
	Version: Version,
	Short:   "Mirror issue-tracker hierarchies into a flat task tracker",
	Long: `Treesync mirrors the work-item hierarchies of Jira, Azure DevOps and
GitHub instances into a flat task tracker, reconciling the target
against the fetched tree on every run:
1. fetch the full hierarchy of every configured instance
2. diff it against the tasks already synced
3. create, update and archive in dependency order`,
}

// Execute runs the command tree. It is called once from main.
func Execute() error {
	return RootCmd.Execute()
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultFile, "configuration file")
}
