package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/calloway/stitch/internal/domain"
	"github.com/calloway/stitch/internal/telemetry"
)

// Config holds cleanup worker configuration
type Config struct {
	// Interval is how often to run a cleanup sweep
	Interval time.Duration

	// StaleAfter is how long a conversion may sit between checkpoints
	// before the sweep resumes it
	StaleAfter time.Duration

	// BatchSize caps how many stale conversions one sweep resumes
	BatchSize int32
}

// Cleanup is the background maintenance worker. Each sweep deletes
// expired guest sessions and resumes conversions that stalled between
// checkpoints, so a crash mid-conversion heals without waiting for the
// user's next login.
type Cleanup struct {
	config      Config
	sessions    domain.SessionStore
	checkpoints domain.ConversionStore
	conversions domain.ConversionService
	metrics     *telemetry.BusinessMetrics
	logger      *slog.Logger
}

// NewCleanup creates the cleanup worker with sane defaults.
func NewCleanup(
	sessions domain.SessionStore,
	checkpoints domain.ConversionStore,
	conversions domain.ConversionService,
	metrics *telemetry.BusinessMetrics,
	config Config,
	logger *slog.Logger,
) *Cleanup {
	if config.Interval == 0 {
		config.Interval = 15 * time.Minute
	}
	if config.StaleAfter == 0 {
		config.StaleAfter = time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cleanup{
		config:      config,
		sessions:    sessions,
		checkpoints: checkpoints,
		conversions: conversions,
		metrics:     metrics,
		logger:      logger,
	}
}

// Start runs sweeps until the context is cancelled. Sweeps never
// overlap; a tick that fires while one is still running is skipped.
func (c *Cleanup) Start(ctx context.Context) error {
	c.logger.Info("cleanup worker starting",
		"interval", c.config.Interval,
		"stale_after", c.config.StaleAfter,
		"batch_size", c.config.BatchSize,
	)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	sem := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("cleanup worker shutting down")
			return ctx.Err()

		case <-ticker.C:
			select {
			case sem <- struct{}{}:
				go func() {
					defer func() { <-sem }()
					c.Sweep(ctx)
				}()
			default:
			}
		}
	}
}

// Sweep runs one maintenance pass.
func (c *Cleanup) Sweep(ctx context.Context) {
	c.sweepSessions(ctx)
	c.sweepConversions(ctx)
}

func (c *Cleanup) sweepSessions(ctx context.Context) {
	n, err := c.sessions.DeleteExpiredSessions(ctx, time.Now())
	if err != nil {
		c.logger.Error("expired session sweep failed", "error", err.Error())
		return
	}
	if n > 0 {
		c.logger.Info("deleted expired guest sessions", "count", n)
		if c.metrics != nil {
			c.metrics.SessionsExpiredSwept.Add(float64(n))
		}
	}
}

func (c *Cleanup) sweepConversions(ctx context.Context) {
	cutoff := time.Now().Add(-c.config.StaleAfter)
	stale, err := c.checkpoints.ListStale(ctx, cutoff, c.config.BatchSize)
	if err != nil {
		c.logger.Error("stale conversion sweep failed", "error", err.Error())
		return
	}

	for _, st := range stale {
		if _, err := c.conversions.Convert(ctx, st.GuestToken, st.UserID); err != nil {
			c.logger.Warn("stale conversion resume failed",
				"guest_token", st.GuestToken,
				"user_id", st.UserID,
				"error", err.Error(),
			)
			continue
		}
		c.logger.Info("resumed stale conversion",
			"guest_token", st.GuestToken,
			"user_id", st.UserID,
			"status", st.Status,
		)
		if c.metrics != nil {
			c.metrics.ConversionsRetried.Inc()
		}
	}
}
