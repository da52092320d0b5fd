package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

const Version = "0.3.0"

var (
	serverURL string
	dataDir   string
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "fotoadmin",
	Short: "Admin console for the Lichtbild photo service",
	Long: `Terminal admin console for the Lichtbild photo ingestion, order and
sharing service. Sessions are persisted encrypted under the data directory,
so a login survives restarts until the token expires server-side.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8480", "Base URL of the photo service API")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", defaultDataDir(), "Directory for persistent session data")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./.fotoadmin"
	}
	return home + "/.fotoadmin"
}
