package content

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errBusy = errors.New("database is busy")

type recordedSleeps struct {
	delays []time.Duration
}

func (r *recordedSleeps) sleep(ctx context.Context, d time.Duration) error {
	r.delays = append(r.delays, d)
	return ctx.Err()
}

func newTestRunner(t *testing.T, policy RetryPolicy, sleeps *recordedSleeps) transactionRunner {
	t.Helper()
	return transactionRunner{
		db:          openTestDatabase(t),
		policy:      policy,
		isRetryable: func(err error) bool { return errors.Is(err, errBusy) },
		sleep:       sleeps.sleep,
		logger:      zap.NewNop(),
	}
}

func TestRetryPolicyDelayDoubles(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 4, BaseDelay: 50 * time.Millisecond}
	expected := []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}
	for index, want := range expected {
		if got := policy.Delay(index + 1); got != want {
			t.Fatalf("attempt %d: expected %s, got %s", index+1, want, got)
		}
	}
	if DefaultRetryPolicy() != (RetryPolicy{MaxAttempts: 3, BaseDelay: 50 * time.Millisecond, Timeout: 5 * time.Second}) {
		t.Fatalf("unexpected default policy %#v", DefaultRetryPolicy())
	}
}

func TestRunnerRetriesTransientErrorsUntilSuccess(t *testing.T) {
	sleeps := &recordedSleeps{}
	runner := newTestRunner(t, RetryPolicy{MaxAttempts: 3, BaseDelay: 10 * time.Millisecond}, sleeps)

	attempts := 0
	err := runner.run(context.Background(), "test.op", func(tx *gorm.DB) error {
		attempts++
		if attempts < 3 {
			return errBusy
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if len(sleeps.delays) != 2 || sleeps.delays[0] != 10*time.Millisecond || sleeps.delays[1] != 20*time.Millisecond {
		t.Fatalf("unexpected backoff delays %v", sleeps.delays)
	}
}

func TestRunnerPromotesExhaustedRetriesToFatal(t *testing.T) {
	sleeps := &recordedSleeps{}
	runner := newTestRunner(t, RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}, sleeps)

	attempts := 0
	err := runner.run(context.Background(), "test.op", func(tx *gorm.DB) error {
		attempts++
		return errBusy
	})
	var fatal *FatalStoreError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected fatal store error, got %v", err)
	}
	if fatal.Attempts != 3 || attempts != 3 {
		t.Fatalf("expected 3 attempts, got fatal=%d run=%d", fatal.Attempts, attempts)
	}
	if !errors.Is(err, errBusy) {
		t.Fatalf("fatal error should wrap the last cause")
	}
	if len(sleeps.delays) != 2 {
		t.Fatalf("expected no sleep after the final attempt, got %v", sleeps.delays)
	}
}

func TestRunnerDoesNotRetryDomainErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "validation", err: &ValidationError{Violations: []Violation{{Field: "title", Message: "title required"}}}},
		{name: "not found", err: ErrProjectNotFound},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			sleeps := &recordedSleeps{}
			runner := newTestRunner(t, DefaultRetryPolicy(), sleeps)
			attempts := 0
			err := runner.run(context.Background(), "test.op", func(tx *gorm.DB) error {
				attempts++
				return test.err
			})
			if !errors.Is(err, test.err) {
				t.Fatalf("expected %v unchanged, got %v", test.err, err)
			}
			var fatal *FatalStoreError
			if errors.As(err, &fatal) {
				t.Fatalf("domain errors must not be wrapped as fatal")
			}
			if attempts != 1 || len(sleeps.delays) != 0 {
				t.Fatalf("domain errors must not be retried, attempts=%d", attempts)
			}
		})
	}
}

func TestRunnerTreatsAttemptDeadlineAsTransient(t *testing.T) {
	sleeps := &recordedSleeps{}
	runner := newTestRunner(t, RetryPolicy{MaxAttempts: 2, BaseDelay: time.Millisecond, Timeout: 20 * time.Millisecond}, sleeps)

	attempts := 0
	err := runner.run(context.Background(), "test.op", func(tx *gorm.DB) error {
		attempts++
		if attempts == 1 {
			<-tx.Statement.Context.Done()
			return tx.Statement.Context.Err()
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected second attempt to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestRunnerStopsWhenParentContextIsCancelled(t *testing.T) {
	sleeps := &recordedSleeps{}
	runner := newTestRunner(t, DefaultRetryPolicy(), sleeps)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := runner.run(ctx, "test.op", func(tx *gorm.DB) error {
		attempts++
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if attempts != 0 {
		t.Fatalf("cancelled context must not start a transaction")
	}
}

func TestSleepContextHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
}
