package content

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RetryPolicy bounds how a mutation is retried on transient store failures.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Timeout     time.Duration
}

// DefaultRetryPolicy returns three attempts, 50ms base backoff and a 5s
// per-attempt deadline.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Timeout: 5 * time.Second}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

func (p RetryPolicy) normalized() RetryPolicy {
	defaults := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Timeout < 0 {
		p.Timeout = 0
	}
	return p
}

// RetryClassifier reports whether a store error is transient.
type RetryClassifier func(error) bool

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// transactionRunner executes a closure in a database transaction, retrying
// the whole closure when the classifier marks the failure as transient.
// The closure must be safe to re-run: it reloads everything it reads.
type transactionRunner struct {
	db          *gorm.DB
	policy      RetryPolicy
	isRetryable RetryClassifier
	sleep       SleepFunc
	logger      *zap.Logger
}

func (r transactionRunner) run(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	policy := r.policy.normalized()
	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := r.attempt(ctx, policy.Timeout, fn)
		if err == nil {
			return nil
		}
		if isTerminal(err) {
			return err
		}
		var transient *TransientStoreError
		if !errors.As(err, &transient) && !r.classify(err) {
			return &FatalStoreError{Operation: operation, Attempts: attempt, Err: err}
		}
		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}
		delay := policy.Delay(attempt)
		r.logger.Warn("retrying transaction",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
		if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
			return &FatalStoreError{Operation: operation, Attempts: attempt, Err: sleepErr}
		}
	}
	return &FatalStoreError{Operation: operation, Attempts: policy.MaxAttempts, Err: lastErr}
}

func (r transactionRunner) attempt(ctx context.Context, timeout time.Duration, fn func(tx *gorm.DB) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	attemptCtx := ctx
	cancel := func() {}
	if timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()
	err := r.db.WithContext(attemptCtx).Transaction(fn)
	if err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &TransientStoreError{Err: err}
	}
	return err
}

func (r transactionRunner) classify(err error) bool {
	if r.isRetryable == nil {
		return false
	}
	return r.isRetryable(err)
}
