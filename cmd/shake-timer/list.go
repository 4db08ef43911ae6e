package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sweeney/shake-timer/internal/api"
	"github.com/sweeney/shake-timer/internal/config"
	"github.com/sweeney/shake-timer/internal/logic"
)

func listCmd(configPath *string) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print the stored times",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := loginClient(ctx, *configPath, user)
			if err != nil {
				return err
			}
			defer c.Logout(context.Background())

			recs, err := c.ListRecords(ctx)
			if err != nil {
				return err
			}
			return printRecords(os.Stdout, recs)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (default from config)")

	return cmd
}

func deleteCmd(configPath *string) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored time",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := loginClient(ctx, *configPath, user)
			if err != nil {
				return err
			}
			defer c.Logout(context.Background())

			if err := c.DeleteRecord(ctx, args[0]); err != nil {
				return err
			}
			recs, err := c.ListRecords(ctx)
			if err != nil {
				return err
			}
			return printRecords(os.Stdout, recs)
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "Username (default from config)")

	return cmd
}

// loginClient returns an API client logged in as user, or the configured
// username when user is empty.
func loginClient(ctx context.Context, configPath, user string) (*api.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if user == "" {
		user = cfg.Username
	}
	creds, err := credentials(user)
	if err != nil {
		return nil, err
	}

	c, err := api.NewClient(cfg.Server, cfg.RequestTimeout.Duration)
	if err != nil {
		return nil, err
	}
	if err := c.Login(ctx, creds); err != nil {
		return nil, fmt.Errorf("login as %s: %w", user, err)
	}
	return c, nil
}

func printRecords(w io.Writer, recs []api.Record) error {
	if len(recs) == 0 {
		_, err := fmt.Fprintln(w, "no times recorded")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tSECONDS\tID")
	for i, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", i+1, logic.FormatSeconds(r.Elapsed()), r.ID)
	}
	return tw.Flush()
}
