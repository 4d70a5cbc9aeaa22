package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"skillswap/internal/auth"
	"skillswap/internal/config"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		userID string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			verifier, err := auth.NewVerifier(cfg.Auth.JWTSecret)
			if err != nil {
				return err
			}
			token, err := verifier.Sign(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id placed in the token subject")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
