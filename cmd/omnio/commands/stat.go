package commands

import (
	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
)

var statCmd = &cobra.Command{
	Use:   "stat <path>",
	Short: "Show an object's metadata without reading its body",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		row, err := eng.HeadObject(cmd.Context(), path)
		if err != nil {
			return err
		}
		return printObject(cmd, row)
	},
}
