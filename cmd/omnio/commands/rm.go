package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
)

var rmCmd = &cobra.Command{
	Use:   "rm <path>",
	Short: "Delete an object (idempotent)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		if err := eng.DeleteObject(cmd.Context(), path); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "deleted", path)
		return nil
	},
}
