package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dkeye/coachline/internal/adapters/auth"
	"github.com/dkeye/coachline/internal/config"
	"github.com/dkeye/coachline/internal/domain"
)

// tokenCmd mints a bearer token with the configured secret, for local testing.
func tokenCmd() *cobra.Command {
	var (
		role      string
		sessionID string
		ttl       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Mint a development bearer token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := domain.RoleFromTitle(role); err != nil {
				return fmt.Errorf("role %q: %w", role, err)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			tok, err := auth.Issue(cfg.Auth.Secret, domain.UserID(args[0]), role, sessionID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&role, "role", domain.TitleUser, "account role: user, trainer or admin")
	cmd.Flags().StringVar(&sessionID, "session", "", "sessionId claim")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
