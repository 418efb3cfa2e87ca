// Command omnio is a CLI wrapper around pkg/engine for exercising a
// local Omnio bucket from a shell: put, get, stat, ls, search, rm, cp
// and migrate. Grounded on the teacher's cmd/dittofsctl binary shape
// (a cobra root command delegating to a commands package) adapted to
// an embedded engine rather than a remote API client.
package main

import (
	"fmt"
	"os"

	"github.com/tai-kun/omnio-sub001/cmd/omnio/cmdutil"
	"github.com/tai-kun/omnio-sub001/cmd/omnio/commands"
)

func main() {
	defer cmdutil.ShutdownTracing()

	if err := commands.Root.Execute(); err != nil {
		code, msg := cmdutil.ExitForError(err)
		if code == 0 {
			code, msg = 1, err.Error()
		}
		fmt.Fprintln(os.Stderr, "error:", msg)
		os.Exit(code)
	}
}
