package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"treesync/internal/infrastructure/watch"
	"treesync/internal/infrastructure/wiring"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-sync whenever the interchange file is rewritten",
	Long: `Watch keeps a reconciliation loop running: every time an external
fetch job rewrites the interchange file, the hierarchy is rebuilt and
reconciled against the target. Stops on interrupt.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := wiring.BuildAppServices(configPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		syncOnce := func() {
			forest, err := services.Store.Load(ctx)
			if err != nil {
				services.Logger.Error("interchange reload failed", "path", services.Store.Path(), "error", err)
				return
			}
			report, _, err := services.Sync.RunFromForest(ctx, forest, false)
			if err != nil {
				services.Logger.Error("sync failed", "error", err)
				return
			}
			fmt.Println(report.Summary())
		}

		watcher, err := watch.NewFileWatcher(services.Store.Path(), watchDebounce, syncOnce)
		if err != nil {
			return err
		}

		fmt.Printf("Watching %s for changes...\n", services.Store.Path())
		return watcher.Run(ctx)
	},
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watch.DefaultDebounce, "quiet window before re-syncing")
	RootCmd.AddCommand(watchCmd)
}
