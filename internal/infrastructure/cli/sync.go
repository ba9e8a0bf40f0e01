package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"treesync/internal/infrastructure/wiring"
	"treesync/pkg/domain/reconcile"
	"treesync/pkg/domain/run"
)

var (
	syncDryRun   bool
	syncFromFile bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile the target tracker against the source hierarchies",
	Long: `Sync fetches every configured source, plans the create, update and
archive operations needed to make the target mirror the fetched tree,
and applies them in dependency order.

With --from-file the fetch is skipped and the hierarchy is rebuilt
from the interchange file written by a previous fetch. With --dry-run
the plan is printed and nothing is written.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := wiring.BuildAppServices(configPath)
		if err != nil {
			return err
		}

		var report *run.Report
		var ops []reconcile.Operation
		if syncFromFile {
			forest, err := services.Store.Load(cmd.Context())
			if err != nil {
				return MapError(err)
			}
			report, ops, err = services.Sync.RunFromForest(cmd.Context(), forest, syncDryRun)
			if err != nil {
				return MapError(err)
			}
		} else {
			report, ops, err = services.Sync.Run(cmd.Context(), syncDryRun)
			if err != nil {
				return MapError(err)
			}
		}

		if syncDryRun {
			fmt.Print(renderPlan(ops))
			return nil
		}

		fmt.Println(report.Summary())
		for _, opErr := range report.Errors {
			fmt.Printf("  %s %s: %s\n", opErr.Op, opErr.NodeID, opErr.Reason)
		}
		if report.Failed() {
			return fmt.Errorf("run finished with %d failed operations", len(report.Errors))
		}
		return nil
	},
}

// renderPlan lists the planned operations in application order.
func renderPlan(ops []reconcile.Operation) string {
	if len(ops) == 0 {
		return "Nothing to do; target is in sync.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Plan: %d operations\n", len(ops))
	for _, op := range ops {
		switch op.Kind {
		case reconcile.OpCreate:
			fmt.Fprintf(&b, "  create  %s (parent %s)\n", op.NodeID, op.ParentNodeID)
		case reconcile.OpUpdate:
			fields := make([]string, 0, len(op.Fields))
			for f := range op.Fields {
				fields = append(fields, f)
			}
			fmt.Fprintf(&b, "  update  %s [%s]\n", op.NodeID, strings.Join(sorted(fields), ", "))
		case reconcile.OpArchive:
			fmt.Fprintf(&b, "  archive %s\n", op.NodeID)
		}
	}
	return b.String()
}

func init() {
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "print the plan without writing")
	syncCmd.Flags().BoolVar(&syncFromFile, "from-file", false, "reconcile from the interchange file instead of fetching")
	RootCmd.AddCommand(syncCmd)
}
