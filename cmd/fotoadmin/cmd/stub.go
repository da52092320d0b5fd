package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lichtbild/fotoadmin/stubserver"
)

var stubPort int

var stubCmd = &cobra.Command{
	Use:   "stub-server",
	Short: "Run a local stand-in for the photo service API",
	Long: `Serves the photo service API with canned data for console development.
Accounts: admin@lichtbild.example/admin (ADMIN, 2FA code 123456) and
viewer@lichtbild.example/viewer (USER). Swagger UI at /docs, Prometheus
metrics at /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", stubPort),
			Handler:           stubserver.New().Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		}

		done := make(chan error, 1)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				done <- fmt.Errorf("stub server failed: %w", err)
				return
			}
			done <- nil
		}()

		fmt.Printf("Stub photo service listening on :%d\n", stubPort)

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		select {
		case sig := <-quit:
			fmt.Printf("\nReceived %s, shutting down...\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return fmt.Errorf("stub server shutdown failed: %w", err)
			}
			return nil
		case err := <-done:
			return err
		}
	},
}

func init() {
	rootCmd.AddCommand(stubCmd)
	stubCmd.Flags().IntVarP(&stubPort, "port", "p", 8480, "Port to listen on")
}
