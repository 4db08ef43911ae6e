package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/sweeney/shake-timer/internal/config"
	"github.com/sweeney/shake-timer/internal/store"
)

func adduserCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adduser <username>",
		Short: "Add a user to the reference server's database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			username := args[0]

			password, ok := os.LookupEnv(envPassword)
			if !ok {
				if password, err = readPassword("new password: "); err != nil {
					return err
				}
				confirm, err := readPassword("repeat password: ")
				if err != nil {
					return err
				}
				if password != confirm {
					return errors.New("passwords do not match")
				}
			}
			if password == "" {
				return errors.New("empty password")
			}

			st, err := store.Open(cfg.DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.AddUser(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Printf("added user %s to %s\n", username, cfg.DBPath)
			return nil
		},
	}
	return cmd
}
