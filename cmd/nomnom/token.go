package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/nomnom/internal/auth"
	"github.com/dukerupert/nomnom/internal/database"
	"github.com/dukerupert/nomnom/internal/store"
)

func newTokenCmd(a *app) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a bearer token for an existing user",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.Open(a.cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			u, err := store.NewUserStore(db).GetByUsername(username)
			if err != nil {
				return err
			}
			if u == nil {
				return fmt.Errorf("no user named %q", username)
			}

			token, err := auth.NewTokenManager(a.cfg.JWTSecret, a.cfg.JWTTTL).Issue(u)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "username", "", "user to mint the token for")
	cmd.MarkFlagRequired("username")
	return cmd
}
