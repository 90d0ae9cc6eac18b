package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"kapacity/api/internal/service"
)

const staffPasswordEnv = "KAPACITY_STAFF_PASSWORD"

func newStaffCmd(open Opener) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staff",
		Short: "Manage staff accounts",
	}
	cmd.AddCommand(newStaffCreateCmd(open))
	return cmd
}

func newStaffCreateCmd(open Opener) *cobra.Command {
	var in service.StaffInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a verified staff account",
		Long: "Create a verified staff account. The password is read from --password or, " +
			"when the flag is omitted, from " + staffPasswordEnv + ".",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("password") {
				in.Password = os.Getenv(staffPasswordEnv)
			}
			if in.Password == "" {
				return errors.New("a password is required: pass --password or set " + staffPasswordEnv)
			}

			return withBackend(cmd, open, func(b Backend) error {
				staff, err := b.CreateStaff(cmd.Context(), in)
				if err != nil {
					return fmt.Errorf("create staff: %w", err)
				}
				view := map[string]string{
					"id":          staff.ID,
					"email":       staff.Email,
					"phoneNumber": staff.PhoneNumber,
					"position":    staff.Position,
				}
				return emit(cmd, view, func(w io.Writer) {
					_, _ = fmt.Fprintf(w, "created staff %s (%s)\n", staff.ID, staff.Email)
				})
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.FirstName, "first-name", "", "First name")
	f.StringVar(&in.LastName, "last-name", "", "Last name")
	f.StringVar(&in.Position, "position", "", "Job title")
	f.StringVar(&in.Email, "email", "", "Email address")
	f.StringVar(&in.PhoneNumber, "phone", "", "Phone number")
	f.StringVar(&in.Password, "password", "", "Initial password")

	return cmd
}
