package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"treesync/internal/infrastructure/wiring"
	"treesync/pkg/domain/tree"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch all source hierarchies and write the interchange file",
	RunE: func(cmd *cobra.Command, args []string) error {
		services, err := wiring.BuildAppServices(configPath)
		if err != nil {
			return err
		}

		records, err := services.Fetch.FetchAll(cmd.Context())
		if err != nil {
			return MapError(err)
		}
		forest, err := tree.Build(records)
		if err != nil {
			return MapError(err)
		}
		if err := services.Store.Save(forest); err != nil {
			return err
		}
		fmt.Printf("Fetched %d items into %s\n", forest.Len(), services.Store.Path())

		if services.Uploader != nil {
			key, err := services.Uploader.Upload(cmd.Context(), services.Store.Path())
			if err != nil {
				return err
			}
			fmt.Printf("Uploaded to %s\n", key)
		}
		return nil
	},
}

func init() {
	RootCmd.AddCommand(fetchCmd)
}
