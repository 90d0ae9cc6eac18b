package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newOTPCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "otp",
		Short: "One-time code maintenance",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "sweep",
		Short: "Delete expired one-time codes now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withBackend(cmd, open, func(b Backend) error {
				removed, err := b.SweepCodes(cmd.Context())
				if err != nil {
					return fmt.Errorf("sweep codes: %w", err)
				}
				return emit(cmd, map[string]int64{"removed": removed}, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "removed %d expired codes\n", removed)
				})
			})
		},
	})

	return cmd
}
