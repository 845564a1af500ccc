package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"mcpauth/internal/provider/secrets"
)

func newGenSecretCmd() *cobra.Command {
	var size int
	cmd := &cobra.Command{
		Use:   "gen-secret",
		Short: "Print a random value for COOKIE_ENCRYPTION_KEY or JWT_SIGNING_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret, err := secrets.GenerateN(size)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), secret)
			return err
		},
	}
	cmd.Flags().IntVar(&size, "bytes", 32, "number of random bytes before encoding")
	return cmd
}
