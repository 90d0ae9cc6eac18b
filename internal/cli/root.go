// Package cli implements kapacityctl, the operator tool for schema
// migrations, staff provisioning and one-off maintenance.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Execute runs kapacityctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd(openPostgres)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func newRootCmd(open Opener) *cobra.Command {
	var output string

	rootCmd := &cobra.Command{
		Use:           "kapacityctl",
		Short:         "Kapacity operator tool",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if output != "text" && output != "json" {
				return fmt.Errorf("unsupported output format %q: use 'text' or 'json'", output)
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "text", "Output format (text, json)")

	rootCmd.AddCommand(newMigrateCmd(open))
	rootCmd.AddCommand(newStaffCmd(open))
	rootCmd.AddCommand(newOTPCmd(open))

	return rootCmd
}

func outputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

// emit prints v as JSON or runs text against the command's writer.
func emit(cmd *cobra.Command, v any, text func(w io.Writer)) error {
	w := cmd.OutOrStdout()
	if outputFormat(cmd) == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func withBackend(cmd *cobra.Command, open Opener, fn func(b Backend) error) error {
	b, err := open(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()
	return fn(b)
}
