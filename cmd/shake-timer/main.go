// Command shake-timer is a stopwatch that starts and stops when the device is
// shaken or its button is pressed, and stores finished times on a server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:     "shake-timer",
		Short:   "Shake-triggered stopwatch with server-side time records",
		Version: version,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.config/shake-timer/config.toml)")

	rootCmd.AddCommand(runCmd(&configPath))
	rootCmd.AddCommand(tuiCmd(&configPath))
	rootCmd.AddCommand(serveCmd(&configPath))
	rootCmd.AddCommand(listCmd(&configPath))
	rootCmd.AddCommand(deleteCmd(&configPath))
	rootCmd.AddCommand(adduserCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
