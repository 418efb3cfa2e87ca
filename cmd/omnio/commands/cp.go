package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
	"github.com/tai-kun/omnio-sub001/pkg/engine"
)

var (
	cpTags        string
	cpDescription string
)

var cpCmd = &cobra.Command{
	Use:   "cp <src> <dst>",
	Short: "Duplicate an object's content and metadata to a new path",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, dst := args[0], args[1]

		opts := engine.WriteOptions{Description: cpDescription}
		if cpTags != "" {
			for _, t := range strings.Split(cpTags, ",") {
				opts.Tags = append(opts.Tags, strings.TrimSpace(t))
			}
		}

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		row, err := eng.CopyObject(cmd.Context(), src, dst, opts)
		if err != nil {
			return err
		}
		return printObject(cmd, row)
	},
}

func init() {
	cpCmd.Flags().StringVar(&cpTags, "tags", "", "override tags on the copy (default: source's tags)")
	cpCmd.Flags().StringVar(&cpDescription, "description", "", "override description on the copy (default: source's)")
}
