package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
	"github.com/tai-kun/omnio-sub001/internal/cliutil/output"
	"github.com/tai-kun/omnio-sub001/pkg/catalog"
	"github.com/tai-kun/omnio-sub001/pkg/engine"
	"github.com/tai-kun/omnio-sub001/pkg/object"
)

var (
	putFile        string
	putMode        string
	putType        string
	putTags        string
	putDescription string
	putMetadata    string
	putExpectSum   string
)

var putCmd = &cobra.Command{
	Use:   "put <path>",
	Short: "Write an object's full body from a file or stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]

		var body []byte
		var err error
		if putFile == "" || putFile == "-" {
			body, err = io.ReadAll(os.Stdin)
		} else {
			body, err = os.ReadFile(putFile)
		}
		if err != nil {
			return fmt.Errorf("reading input: %w", err)
		}

		mode := object.OpenMode(putMode)
		if !mode.Valid() {
			return fmt.Errorf("invalid --mode %q (want one of w, wx, a, ax)", putMode)
		}

		opts := engine.WriteOptions{
			Type:        putType,
			Description: putDescription,
		}
		if putTags != "" {
			for _, t := range strings.Split(putTags, ",") {
				opts.Tags = append(opts.Tags, strings.TrimSpace(t))
			}
		}
		if putMetadata != "" {
			opts.UserMetadata = []byte(putMetadata)
		}
		if putExpectSum != "" {
			opts.Expect = &catalog.Expect{Checksum: putExpectSum}
		}

		eng, err := cmdutil.BuildEngine()
		if err != nil {
			return err
		}
		defer eng.Close(cmd.Context())

		row, err := eng.PutObject(cmd.Context(), path, mode, body, opts)
		if err != nil {
			return err
		}

		return printObject(cmd, row)
	},
}

func init() {
	putCmd.Flags().StringVarP(&putFile, "file", "f", "", "source file to upload (default: stdin)")
	putCmd.Flags().StringVarP(&putMode, "mode", "m", string(object.ModeWrite), "open mode: w, wx, a, ax")
	putCmd.Flags().StringVar(&putType, "type", "", "explicit MIME type (overrides sniffing/extension)")
	putCmd.Flags().StringVar(&putTags, "tags", "", "comma-separated object tags")
	putCmd.Flags().StringVar(&putDescription, "description", "", "free-text description")
	putCmd.Flags().StringVar(&putMetadata, "metadata", "", "JSON-encoded user metadata")
	putCmd.Flags().StringVar(&putExpectSum, "expect-checksum", "", "compare-and-set precondition for append modes")
}

// printObject renders a single object.Object row as a key/value table,
// or as JSON when --json is set.
func printObject(cmd *cobra.Command, row object.Object) error {
	if cmdutil.Flags.JSON {
		return output.PrintJSON(cmd.OutOrStdout(), row)
	}
	return output.SimpleTable(cmd.OutOrStdout(), [][2]string{
		{"path", row.ObjectPath},
		{"object_id", row.ObjectID},
		{"entity_id", row.EntityID},
		{"size", fmt.Sprintf("%d", row.Size)},
		{"mime_type", row.MimeType},
		{"checksum", row.Checksum},
		{"num_parts", fmt.Sprintf("%d", row.NumParts)},
		{"created_at", fmt.Sprintf("%d", row.CreatedAt)},
		{"last_modified_at", fmt.Sprintf("%d", row.LastModifiedAt)},
	})
}
