package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lichtbild/fotoadmin/console"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Start the interactive admin console",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		printBanner()

		shell := console.NewShell(a.client, a.sessions, a.bus, os.Stdout,
			console.WithLogger(a.logger))
		defer shell.Close()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return shell.Run(ctx, os.Stdin)
	},
}

func init() {
	rootCmd.AddCommand(consoleCmd)
}
