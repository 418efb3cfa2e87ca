package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
)

var migrateSweep bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply catalog migrations for the bucket, optionally sweeping orphaned entities",
	Long: `migrate opens the bucket, which runs the catalog's migration list
(see catalog.Catalog.Migrate) the same way every other subcommand does on
startup -- this exists as an explicit, scriptable entry point for
operators who want to provision a bucket without writing an object.
With --sweep it also removes any storage entity directory no live
catalog row references.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		fmt.Fprintln(cmd.OutOrStdout(), "migrations applied for bucket", cmdutil.Flags.Bucket)

		if !migrateSweep {
			return nil
		}

		swept, err := eng.SweepOrphans(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "swept %d orphaned entities\n", len(swept))
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateSweep, "sweep", false, "also remove storage entities no live catalog row references")
}
