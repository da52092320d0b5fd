package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/lichtbild/fotoadmin/api"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted session and verify it against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		token, ok := a.creds.Token()
		if !ok {
			if _, pending := a.creds.Challenge(); pending {
				fmt.Println("Session: awaiting second factor")
				return nil
			}
			fmt.Println("Session: anonymous")
			return nil
		}

		fmt.Println("Session: authenticated (persisted token present)")
		describeToken(token)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		me, err := a.client.Me(ctx)
		switch {
		case err == nil:
			fmt.Printf("Server:  valid, %s (%s)\n", me.Email, me.Role)
		case api.IsUnauthorized(err):
			fmt.Println("Server:  token no longer accepted, session cleared")
		default:
			fmt.Printf("Server:  unreachable (%v)\n", err)
		}
		return nil
	},
}

// describeToken prints claims without verifying the signature; the server
// is the only party that can verify, this is purely informational.
func describeToken(token string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return
	}
	if sub, err := claims.GetSubject(); err == nil && sub != "" {
		fmt.Printf("Subject: %s\n", sub)
	}
	if role, ok := claims["role"].(string); ok {
		fmt.Printf("Role:    %s\n", role)
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		fmt.Printf("Expires: %s\n", exp.Time.UTC().Format(time.RFC3339))
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
