package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
)

var getOutFile string

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "Read an object's full body, verifying its checksum",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		body, _, err := eng.GetObject(cmd.Context(), path)
		if err != nil {
			return err
		}

		if getOutFile == "" || getOutFile == "-" {
			_, err = cmd.OutOrStdout().Write(body)
			return err
		}
		return os.WriteFile(getOutFile, body, 0o644)
	},
}

func init() {
	getCmd.Flags().StringVarP(&getOutFile, "out", "o", "", "destination file (default: stdout)")
}
