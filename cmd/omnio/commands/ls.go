package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
	"github.com/tai-kun/omnio-sub001/internal/cliutil/output"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

var (
	lsPrefix    string
	lsRecursive bool
	lsOrderBy   string
	lsDesc      bool
	lsLimit     int
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List live objects under a prefix",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		orderBy, err := parseOrderBy(lsOrderBy)
		if err != nil {
			return err
		}
		order := catalog.OrderAsc
		if lsDesc {
			order = catalog.OrderDesc
		}

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		var rows []object.Object
		err = eng.ListObjects(cmd.Context(), lsPrefix, catalog.ListOptions{
			Recursive: lsRecursive,
			OrderBy:   orderBy,
			Order:     order,
			Limit:     lsLimit,
		}, func(o object.Object) error {
			rows = append(rows, o)
			return nil
		})
		if err != nil {
			return err
		}

		if cmdutil.Flags.JSON {
			return output.PrintJSON(cmd.OutOrStdout(), rows)
		}
		table := output.NewTableData("PATH", "SIZE", "MIME_TYPE", "LAST_MODIFIED_AT")
		for _, o := range rows {
			table.AddRow(o.ObjectPath, fmt.Sprintf("%d", o.Size), o.MimeType, fmt.Sprintf("%d", o.LastModifiedAt))
		}
		return output.PrintTable(cmd.OutOrStdout(), table)
	},
}

func init() {
	lsCmd.Flags().StringVar(&lsPrefix, "prefix", "", "path prefix to list under")
	lsCmd.Flags().BoolVarP(&lsRecursive, "recursive", "r", false, "list nested segments, not just the immediate level")
	lsCmd.Flags().StringVar(&lsOrderBy, "order-by", "path", "sort column: path, created_at, modified, size")
	lsCmd.Flags().BoolVar(&lsDesc, "desc", false, "sort descending instead of ascending")
	lsCmd.Flags().IntVar(&lsLimit, "limit", 0, "maximum rows to return (0 means unbounded)")
}

func parseOrderBy(s string) (catalog.OrderKey, error) {
	switch s {
	case "", "path":
		return catalog.OrderByPath, nil
	case "created_at":
		return catalog.OrderByCreatedAt, nil
	case "modified":
		return catalog.OrderByModified, nil
	case "size":
		return catalog.OrderBySize, nil
	default:
		return "", fmt.Errorf("unknown --order-by %q", s)
	}
}
