package main

import (
	"context"
	"io"
	"log"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"github.com/sweeney/shake-timer/internal/config"
	"github.com/sweeney/shake-timer/internal/tui"
)

func tuiCmd(configPath *string) *cobra.Command {
	var logPath string

	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the stopwatch in the terminal",
		Long:  `Opens a terminal UI with a login form, the stopwatch and the list of stored times. Space starts and stops the timer, as does shaking the device when a broker is configured.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}

			// The alternate screen owns the terminal; logs go to a file or nowhere.
			if logPath != "" {
				f, err := tea.LogToFile(logPath, "shake-timer")
				if err != nil {
					return err
				}
				defer f.Close()
			} else {
				log.SetOutput(io.Discard)
			}

			c, err := newClient(cfg)
			if err != nil {
				return err
			}
			defer c.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()

			go forwardEvents(ctx, c)

			return tui.Run(ctx, tui.Options{
				Stopwatch:     c.sw,
				Gate:          c.gate,
				Server:        cfg.Server,
				Username:      cfg.Username,
				FrameInterval: cfg.FrameInterval(),
			})
		},
	}

	cmd.Flags().StringVar(&logPath, "log", "", "Write logs to this file")

	return cmd
}

// forwardEvents publishes timer events until ctx is done.
func forwardEvents(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-c.sw.Events():
			publishEvent(c.publisher, event)
		}
	}
}
