package cmd

import (
	"fmt"
	"time"
	"video-gate/config"
	"video-gate/constant"
	"video-gate/middleware"

	"github.com/spf13/cobra"
)

// authToken mints a bearer token for local testing against the API.
func authToken(config *config.Config) *cobra.Command {
	var (
		userID uint
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "authtoken",
		Short: "print a development bearer token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if config.IsProduction() {
				return fmt.Errorf("authtoken is disabled in %s", config.App.Environment)
			}
			signed, err := middleware.SignAuthToken(config.Auth.Secret, userID, constant.Role(role), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), signed)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 1, "user id placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", string(constant.RoleStudent), "student, instructor or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
