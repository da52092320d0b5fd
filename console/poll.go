package console

import (
	"context"
	"fmt"
	"time"
)

const defaultExportPollInterval = 2 * time.Second

// renderExports shows the export jobs and keeps refreshing them while the
// screen is mounted. The poller is a scoped resource: the returned
// unmount stops it unconditionally, and once stopped it issues no further
// requests.
func (s *Shell) renderExports(ctx context.Context) (unmount func(), err error) {
	if err := s.printExports(ctx); err != nil {
		return nil, err
	}

	pollCtx, cancel := context.WithCancel(context.Background())
	go func() {
		ticker := time.NewTicker(s.pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-pollCtx.Done():
				return
			case <-ticker.C:
				if pollCtx.Err() != nil {
					return
				}
				if err := s.printExports(pollCtx); err != nil {
					// The transport has already handled any session
					// fallout; the poller just stays quiet this round.
					s.logger.Warn("export poll failed", "error", err)
				}
			}
		}
	}()

	// The unmount must not wait for the goroutine to finish: a 401 on the
	// poller's own refresh re-enters the shell on the poller goroutine,
	// and unmounting is part of entering the next screen. Cancelling the
	// context is enough; the refresh in flight fails on it and the loop
	// exits on the next select.
	return cancel, nil
}

func (s *Shell) printExports(ctx context.Context) error {
	jobs, err := s.client.ListExports(ctx)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Fprintf(s.out, "export %d  %s  %s\n", j.ID, j.Status, j.CreatedAt.Format(time.RFC3339))
	}
	return nil
}
