// Package readiness waits for asynchronous external state with a bounded
// number of fixed-interval probes.
package readiness

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/felixgeelhaar/vpsctl/internal/domain/precondition"
)

// Outcome is the result of a poll.
type Outcome int

const (
	// Ready means the predicate returned true within the attempt budget.
	Ready Outcome = iota
	// TimedOut means every attempt came back not-ready.
	TimedOut
	// Aborted means polling stopped early: the context ended or the
	// predicate returned a permanent error.
	Aborted
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Ready:
		return "ready"
	case TimedOut:
		return "timed-out"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Errors returned by WaitUntilReady.
var (
	ErrTimedOut    = errors.New("readiness poll timed out")
	ErrInvalidSpec = errors.New("invalid readiness spec")
)

// Spec describes one wait point.
type Spec struct {
	Name        string
	Predicate   precondition.Func
	Interval    time.Duration
	MaxAttempts int
}

// Budget is the longest time the poll can sleep in total.
func (s Spec) Budget() time.Duration {
	if s.MaxAttempts < 2 {
		return 0
	}
	return time.Duration(s.MaxAttempts-1) * s.Interval
}

func (s Spec) validate() error {
	if s.Predicate == nil {
		return fmt.Errorf("%w: %s has no predicate", ErrInvalidSpec, s.Name)
	}
	if s.MaxAttempts < 1 {
		return fmt.Errorf("%w: %s needs at least one attempt", ErrInvalidSpec, s.Name)
	}
	if s.Interval < 0 {
		return fmt.Errorf("%w: %s has a negative interval", ErrInvalidSpec, s.Name)
	}
	return nil
}

// TimeoutError reports an exhausted poll. It matches ErrTimedOut and
// unwraps to the last probe error, if any.
type TimeoutError struct {
	Name     string
	Attempts int
	Last     error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("%s not ready after %d attempts", e.Name, e.Attempts)
	if e.Last != nil {
		msg += ": last error: " + e.Last.Error()
	}
	return msg
}

// Is makes errors.Is(err, ErrTimedOut) true.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimedOut
}

func (e *TimeoutError) Unwrap() error {
	return e.Last
}

// PermanentError marks a predicate error that must stop polling.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent marks err as non-retryable. Permanent(nil) returns nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// IsPermanent checks if an error is non-retryable.
func IsPermanent(err error) bool {
	var p *PermanentError
	return errors.As(err, &p)
}

// attemptFunc observes each probe; attempt is 1-based.
type attemptFunc func(attempt int, ready bool, err error)

// WaitUntilReady calls spec.Predicate at most spec.MaxAttempts times,
// sleeping spec.Interval between attempts (never after the last one).
// A predicate error counts as not-ready unless it is Permanent.
func WaitUntilReady(ctx context.Context, spec Spec) (Outcome, error) {
	return wait(ctx, spec, nil)
}

func wait(ctx context.Context, spec Spec, observe attemptFunc) (Outcome, error) {
	if err := spec.validate(); err != nil {
		return Aborted, err
	}

	var last error
	for attempt := 1; attempt <= spec.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Aborted, fmt.Errorf("waiting for %s: %w", spec.Name, err)
		}

		ready, err := spec.Predicate(ctx)
		if observe != nil {
			observe(attempt, ready && err == nil, err)
		}
		if err == nil && ready {
			return Ready, nil
		}
		if err != nil {
			if IsPermanent(err) {
				return Aborted, fmt.Errorf("waiting for %s: %w", spec.Name, err)
			}
			last = err
		}

		if attempt < spec.MaxAttempts {
			if err := sleep(ctx, spec.Interval); err != nil {
				return Aborted, fmt.Errorf("waiting for %s: %w", spec.Name, err)
			}
		}
	}

	return TimedOut, &TimeoutError{Name: spec.Name, Attempts: spec.MaxAttempts, Last: last}
}

func sleep(ctx context.Context, d time.Duration) error {
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
