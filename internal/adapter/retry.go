package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/tiktox/dhiorfans-ledger/internal/domain"
	"github.com/tiktox/dhiorfans-ledger/internal/logger"
)

const (
	// DefaultMaxAttempts bounds the retry budget for store operations
	DefaultMaxAttempts = 3
	// DefaultInitialInterval is the delay before the first retry; subsequent
	// delays double (1s, 2s, 4s, ...)
	DefaultInitialInterval = 1 * time.Second
	// DefaultOperationTimeout caps a single store attempt before it is
	// treated as a transient failure eligible for retry
	DefaultOperationTimeout = 15 * time.Second
)

// Retryer wraps operations against the store with exponential backoff and a
// bounded attempt count. Business-rule rejections short-circuit without
// consuming retry attempts; only transport failures are retried.
type Retryer struct {
	maxAttempts     int
	initialInterval time.Duration
	opTimeout       time.Duration
}

// NewRetryer creates a Retryer. Zero arguments fall back to the defaults.
func NewRetryer(maxAttempts int, initialInterval, opTimeout time.Duration) *Retryer {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initialInterval <= 0 {
		initialInterval = DefaultInitialInterval
	}
	if opTimeout <= 0 {
		opTimeout = DefaultOperationTimeout
	}
	return &Retryer{
		maxAttempts:     maxAttempts,
		initialInterval: initialInterval,
		opTimeout:       opTimeout,
	}
}

// Do executes op, retrying transient failures up to the attempt budget and
// failing with the last error once exhausted. Each attempt runs under its own
// timeout. The retried unit must always be the whole atomic operation, never
// a sub-step, so that a retry re-runs the entire transaction.
func (r *Retryer) Do(ctx context.Context, name string, op func(ctx context.Context) error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.Multiplier = 2.0
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0 // bounded by attempt count, not wall time

	attempt := 0
	operation := func() error {
		attempt++

		opCtx, cancel := context.WithTimeout(ctx, r.opTimeout)
		defer cancel()

		err := op(opCtx)
		if err == nil {
			return nil
		}

		// Business outcomes are final, not transport failures
		if domain.IsBusinessRejection(err) {
			return backoff.Permanent(err)
		}

		logger.WarnCtx(ctx, "Retryable operation failed",
			zap.String("operation", name),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.maxAttempts),
			zap.Error(err),
		)
		return err
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(b, uint64(r.maxAttempts-1)), ctx)) //nolint:gosec,G115
	if err != nil {
		if domain.IsBusinessRejection(err) {
			return err
		}
		return fmt.Errorf("%s failed after %d attempts: %w", name, attempt, err)
	}

	return nil
}
