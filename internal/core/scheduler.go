package core

// scheduler.go keeps the dataset fresh in the background.
//
// The refresh loop is optional (SHEETS_REFRESH_INTERVAL=0 turns it off).
// A failed refresh is logged and leaves the previous records in place; the
// next tick tries again.

import (
	"context"
	"log/slog"
	"time"
)

// StartRefreshScheduler refreshes the dataset every interval until ctx is
// cancelled. It does not refresh on start; callers load the first snapshot
// themselves so startup can report a fetch failure.
func (s *Service) StartRefreshScheduler(ctx context.Context, interval time.Duration, timeout time.Duration) {
	if interval <= 0 {
		return
	}
	slog.Info("refresh scheduler started", "interval", interval.String())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh scheduler stopped")
			return
		case <-ticker.C:
			s.runRefresh(ctx, timeout)
		}
	}
}

func (s *Service) runRefresh(ctx context.Context, timeout time.Duration) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	slog.Debug("scheduled refresh started")
	// Refresh logs its own outcome.
	_ = s.Refresh(ctx)
}
