package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Log in and persist the session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		in := bufio.NewReader(os.Stdin)
		password := loginPassword
		if password == "" {
			fmt.Print("Password: ")
			line, err := in.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read password: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}

		ctx := context.Background()
		resp, err := a.client.Login(ctx, args[0], password)
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}

		if resp.Challenge != "" {
			if err := a.sessions.IssueChallenge(resp.Challenge); err != nil {
				return err
			}
			fmt.Print("One-time code: ")
			line, err := in.ReadString('\n')
			if err != nil {
				return fmt.Errorf("failed to read code: %w", err)
			}
			verified, err := a.client.VerifyTwoFactor(ctx, resp.Challenge, strings.TrimSpace(line))
			if err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			a.sessions.Login(verified.AccessToken)
		} else {
			a.sessions.Login(resp.AccessToken)
		}

		me, err := a.client.Me(ctx)
		if err != nil {
			return fmt.Errorf("failed to fetch identity: %w", err)
		}
		fmt.Printf("Logged in as %s (%s)\n", me.Email, me.Role)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (prompted when omitted)")
}
