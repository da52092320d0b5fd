package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var twofactorCmd = &cobra.Command{
	Use:   "2fa",
	Short: "Manage the second authentication factor",
}

var twofactorSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Provision a TOTP secret for the logged-in account",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		resp, err := a.client.SetupTwoFactor(context.Background())
		if err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}
		fmt.Printf("Secret:  %s\n", resp.Secret)
		fmt.Printf("URL:     %s\n", resp.OTPAuthURL)
		fmt.Println("Add the secret to your authenticator app. The next login will require a code.")
		return nil
	},
}

var twofactorDisableCmd = &cobra.Command{
	Use:   "disable",
	Short: "Disable the second factor (ends the current session)",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.sessions.DisableSecondFactor(context.Background()); err != nil {
			return fmt.Errorf("disable failed: %w", err)
		}
		fmt.Println("Second factor disabled. You have been logged out; log in again.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(twofactorCmd)
	twofactorCmd.AddCommand(twofactorSetupCmd)
	twofactorCmd.AddCommand(twofactorDisableCmd)
}
