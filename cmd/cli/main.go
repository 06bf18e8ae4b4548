// Command pointcloudkit is a local, in-process CLI over pkg/pipeline and the
// pkg/io readers/writers, replacing
// therealutkarshpriyadarshi-vector/cmd/cli's flag-based, server-dialing
// design: these are file-processing operations, not vector-database
// queries, so the CLI runs the funnel directly rather than talking gRPC to a
// running server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	root := &cobra.Command{
		Use:           "pointcloudkit",
		Short:         "Point cloud registration toolkit",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAlignCmd(),
		newDetectKeypointsCmd(),
		newExtractDescriptorsCmd(),
		newConvertCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "print the CLI version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("pointcloudkit version %s\n", version)
			return nil
		},
	}
}
