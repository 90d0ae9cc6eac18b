package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newMigrateCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b Backend) error {
				if err := b.Migrate(cmd.Context()); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				version, err := b.MigrationVersion(cmd.Context())
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}
				return emit(cmd, map[string]int64{"version": version}, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "schema at version %d\n", version)
				})
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b Backend) error {
				version, err := b.MigrationVersion(cmd.Context())
				if err != nil {
					return fmt.Errorf("read migration version: %w", err)
				}
				return emit(cmd, map[string]int64{"version": version}, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "%d\n", version)
				})
			})
		},
	})

	return cmd
}
