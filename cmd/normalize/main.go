// Command normalize prints the canonical document for a Micropub request body,
// as it would be passed to the publishing service.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	cmd := newRootCmd()
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cobra.CheckErr(cmd.Execute())
}
