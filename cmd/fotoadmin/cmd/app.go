package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lichtbild/fotoadmin/api"
	"github.com/lichtbild/fotoadmin/creds"
	"github.com/lichtbild/fotoadmin/events"
	"github.com/lichtbild/fotoadmin/session"
	bboltstorage "github.com/lichtbild/fotoadmin/storage/bbolt"
)

// app wires the layers every subcommand needs: the encrypted credential
// store under data-dir, the event bus, the API client with its
// intercepting transport, and the session manager on top.
type app struct {
	logger   *slog.Logger
	creds    *creds.Store
	bus      *events.Bus
	client   *api.Client
	sessions *session.Manager

	store *bboltstorage.Store
}

func openApp() (*app, error) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	store, err := bboltstorage.Open(
		filepath.Join(dataDir, "credentials.db"),
		filepath.Join(dataDir, "credentials.key"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	credStore := creds.Open(store, logger)
	bus := events.NewBus(logger)
	client, err := api.New(serverURL, credStore, bus, api.WithLogger(logger))
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	return &app{
		logger:   logger,
		creds:    credStore,
		bus:      bus,
		client:   client,
		sessions: session.New(credStore, client, logger),
		store:    store,
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing credential store", "error", err)
	}
}
