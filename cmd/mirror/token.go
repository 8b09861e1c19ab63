package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/cartographer/internal/server/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an editor token for the catalog's write routes",
	RunE: func(cmd *cobra.Command, args []string) error {
		secret, _ := cmd.Flags().GetString("secret")
		editor, _ := cmd.Flags().GetString("editor")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		if secret == "" {
			return errors.New("--secret is required")
		}
		if editor == "" {
			return errors.New("--editor is required")
		}

		token, err := auth.GenerateToken(editor, []byte(secret), ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().String("secret", "", "editor secret configured on the server")
	tokenCmd.Flags().String("editor", "", "name recorded in the token")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token validity")

	rootCmd.AddCommand(tokenCmd)
}
