package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
	"github.com/tai-kun/omnio-sub001/internal/cliutil/output"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
)

var (
	searchPrefix    string
	searchRecursive bool
	searchLimit     int
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search live objects' descriptions and path segments",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := args[0]

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		var results []catalog.SearchResult
		err = eng.SearchObjects(cmd.Context(), searchPrefix, query, catalog.SearchOptions{
			Recursive: searchRecursive,
			Limit:     searchLimit,
		}, func(r catalog.SearchResult) error {
			results = append(results, r)
			return nil
		})
		if err != nil {
			return err
		}

		if cmdutil.Flags.JSON {
			return output.PrintJSON(cmd.OutOrStdout(), results)
		}
		table := output.NewTableData("PATH", "SCORE", "DESCRIPTION")
		for _, r := range results {
			table.AddRow(r.Object.ObjectPath, fmt.Sprintf("%.4f", r.Score), r.Object.Description)
		}
		return output.PrintTable(cmd.OutOrStdout(), table)
	},
}

func init() {
	searchCmd.Flags().StringVar(&searchPrefix, "prefix", "", "path prefix to search under")
	searchCmd.Flags().BoolVarP(&searchRecursive, "recursive", "r", true, "search nested segments, not just the immediate level")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 20, "maximum results to return")
}
