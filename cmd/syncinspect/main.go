// Command syncinspect loads a changeset log from a JSON file, applies
// it to a freshly constructed record, undoes the captured changeset,
// and prints the state left after the undo alongside the redo
// changeset that would reapply the edits.
//
// The codec lives entirely here: the syncable core never imports
// encoding/json or github.com/coreos/go-json, and never returns
// anything but a Changeset value.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "syncinspect",
		Short: "Inspect syncable changeset logs",
		Long:  "syncinspect applies a JSON changeset log to a record and prints the resulting state and redo.",
	}

	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
