package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	_ "github.com/logstash-plugins/go-output-example/internal/output/example"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "gooutput",
		Short: "gooutput runs events through the go_output_example output",
		Long: `gooutput is a small pipeline host for output plugins.
It reads lines from stdin, a file or a command, turns them into events,
and hands them in batches to a registered output such as go_output_example,
which prints each event as an optionally prefixed JSON line.`,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newRunCmd(), newDescribeCmd(), newPluginsCmd())
	return rootCmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
