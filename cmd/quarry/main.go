// Command quarry runs the code retrieval service.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarry-dev/quarry/internal/version"
)

func main() {
	root := &cobra.Command{
		Use:           "quarry",
		Short:         "Semantic code search retrieval engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quarry %s (commit %s, built %s)\n",
				version.Version, version.Commit, version.Date)
		},
	}
}
