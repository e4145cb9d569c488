package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/phrazzld/sentinel/internal/auth"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

var errTokensDisabled = errors.New("auth.jwt_secret is not configured")

// newTokenCmd issues a bearer token signed with the configured secret.
func newTokenCmd(load loadFunc) *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := setup(load)
			if err != nil {
				return err
			}

			authn, err := auth.NewServiceFromConfig(cfg.Auth)
			if err != nil {
				return err
			}
			tokens := authn.Tokens()
			if tokens == nil {
				return errTokensDisabled
			}

			token, err := tokens.GenerateToken(cmd.Context(), subject)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "cli", "token subject")
	return cmd
}

// newHashKeyCmd prints a bcrypt hash suitable for auth.api_key_hash. The key
// is read from the first argument or, when absent, the first line of stdin.
func newHashKeyCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-key [key]",
		Short: "Hash a static API key for auth.api_key_hash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var key string
			if len(args) == 1 {
				key = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("failed to read key: %w", err)
				}
				key = strings.TrimRight(line, "\r\n")
			}

			hash, err := auth.HashKey(key, cost)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}

	cmd.Flags().IntVar(&cost, "cost", bcrypt.DefaultCost, "bcrypt cost")
	return cmd
}
