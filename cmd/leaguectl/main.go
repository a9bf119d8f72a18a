// leaguectl выпускает админские токены и ключи API для бота.
//
//	leaguectl token --user 1 --role admin --ttl 24h
//	leaguectl apikey
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Dosada05/grid-league/middleware"
	"github.com/Dosada05/grid-league/utils"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd(os.Getenv).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "leaguectl",
		Short:         "Admin credentials for the league standings service",
		SilenceUsage: true,
	}
	root.AddCommand(newTokenCmd(getenv), newAPIKeyCmd())
	return root
}

func newTokenCmd(getenv func(string) string) *cobra.Command {
	var (
		userID int
		role   string
		ttl    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a JWT with JWT_SECRET_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := getenv("JWT_SECRET_KEY")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
			}
			token, err := middleware.IssueToken([]byte(secret), userID, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().IntVar(&userID, "user", 1, "user id stored in the token")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "token role (admin|viewer)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}

func newAPIKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "apikey",
		Short: "Generate an API key and the bcrypt hash for API_KEY_HASHES",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printAPIKey(cmd.OutOrStdout())
		},
	}
}

func printAPIKey(w io.Writer) error {
	key, hash, err := utils.GenerateAPIKey()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "key:  %s\nhash: %s\n", key, hash)
	fmt.Fprintln(w, "add the hash to API_KEY_HASHES; the key is not stored anywhere")
	return nil
}
