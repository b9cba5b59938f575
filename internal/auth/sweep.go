// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FleetPass Contributors

package auth

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"

	"github.com/fleetpass/fleetpass/pkg/errutil"
)

// DefaultSweepInterval is how often expired session rows are removed.
const DefaultSweepInterval = time.Hour

// Sweeper periodically deletes expired session rows. Nothing else removes
// them: resolution and renewal treat an expired row as dead but leave it in
// place, so without the sweeper the table grows without bound.
type Sweeper struct {
	sessions SessionStore
	interval time.Duration
	logger   *slog.Logger
	swept    func(count int64)
}

// NewSweeper creates a Sweeper. A non-positive interval falls back to the
// default. The optional swept callback receives the deleted-row count of each
// successful pass (used for metrics).
func NewSweeper(sessions SessionStore, interval time.Duration, logger *slog.Logger, swept func(count int64)) (*Sweeper, error) {
	if sessions == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("session store is required")
	}
	if logger == nil {
		return nil, oops.Code("AUTH_INVALID_DEPENDENCY").Errorf("logger is required")
	}
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		sessions: sessions,
		interval: interval,
		logger:   logger,
		swept:    swept,
	}, nil
}

// Run sweeps on a ticker until the context is cancelled. It performs one
// sweep immediately on startup.
func (s *Sweeper) Run(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep deletes expired rows, retrying transient storage failures with
// fibonacci backoff. A pass that still fails after the retry budget is logged
// and abandoned; the next tick tries again.
func (s *Sweeper) sweep(ctx context.Context) {
	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(time.Second))

	var count int64
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var sweepErr error
		count, sweepErr = s.sessions.DeleteExpired(ctx)
		if sweepErr != nil {
			return retry.RetryableError(sweepErr)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() == nil {
			errutil.LogError(s.logger, "session sweep failed", err)
		}
		return
	}

	if count > 0 {
		s.logger.Info("swept expired sessions", "count", count)
	}
	if s.swept != nil {
		s.swept(count)
	}
}
