package main

import (
	"fmt"
	"os"
	"time"

	jwtutil "github.com/Dias221467/savings-goals/pkg/jwt"
	"github.com/spf13/cobra"
)

func init() {
	var userID, secret string
	var ttl time.Duration

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a session token for a user id",
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return fmt.Errorf("--secret or JWT_SECRET required")
			}
			token, err := jwtutil.GenerateToken(userID, secret, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	tokenCmd.Flags().StringVarP(&userID, "user", "u", "", "User ID (required)")
	tokenCmd.Flags().StringVarP(&secret, "secret", "s", "", "Signing secret (defaults to JWT_SECRET)")
	tokenCmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
	rootCmd.AddCommand(tokenCmd)
}
