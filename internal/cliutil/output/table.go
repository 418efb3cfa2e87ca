// Package output provides the table/JSON printing surface cmd/omnio
// commands share, grounded on the teacher's internal/cli/output package
// (tablewriter-backed TableRenderer/PrintTable), extended with a JSON
// mode for `--json` scripting that the teacher's remote-API-client CLI
// has no equivalent of.
package output

import (
	"encoding/json"
	"io"

	"github.com/olekukonko/tablewriter"
)

// TableRenderer is implemented by types that can render themselves as a table.
type TableRenderer interface {
	Headers() []string
	Rows() [][]string
}

// borderless applies the no-border, left-aligned style every omnio table
// uses, varying only the column separator and header formatting: a
// multi-column listing (PrintTable) wants an invisible separator and
// title-cased headers, a key/value dump (SimpleTable) wants a literal
// ":" between column 0 and 1 and no header row at all.
func borderless(w io.Writer, colSep string, autoFormatHeaders bool) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetAutoWrapText(false)
	t.SetAutoFormatHeaders(autoFormatHeaders)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetCenterSeparator("")
	t.SetColumnSeparator(colSep)
	t.SetRowSeparator("")
	t.SetHeaderLine(false)
	t.SetBorder(false)
	t.SetTablePadding("  ")
	t.SetNoWhiteSpace(true)
	return t
}

// PrintTable writes data as a formatted table to w.
func PrintTable(w io.Writer, data TableRenderer) error {
	t := borderless(w, "", true)
	t.SetHeader(data.Headers())
	for _, row := range data.Rows() {
		t.Append(row)
	}
	t.Render()
	return nil
}

// PrintJSON writes v as indented JSON to w.
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Print renders data as a table, or as JSON when asJSON is set. jsonValue
// is encoded directly, so callers typically pass the same underlying
// value as both a TableRenderer and its JSON form.
func Print(w io.Writer, asJSON bool, data TableRenderer, jsonValue any) error {
	if asJSON {
		return PrintJSON(w, jsonValue)
	}
	return PrintTable(w, data)
}

// TableData is a simple ad-hoc TableRenderer.
type TableData struct {
	headers []string
	rows    [][]string
}

// NewTableData creates a TableData with the given headers.
func NewTableData(headers ...string) *TableData {
	return &TableData{headers: headers, rows: make([][]string, 0)}
}

// AddRow appends a row.
func (t *TableData) AddRow(row ...string) {
	t.rows = append(t.rows, row)
}

func (t *TableData) Headers() []string { return t.headers }
func (t *TableData) Rows() [][]string  { return t.rows }

// SimpleTable prints a key/value table, e.g. for `stat`.
func SimpleTable(w io.Writer, pairs [][2]string) error {
	t := borderless(w, ":", false)
	for _, pair := range pairs {
		t.Append([]string{pair[0], pair[1]})
	}
	t.Render()
	return nil
}
