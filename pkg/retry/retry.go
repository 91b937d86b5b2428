// Package retry classifies transient failures and runs operations with
// bounded, jittered backoff.
package retry

import (
	"context"
	"math/rand"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/d4l-data4life/go-svc/pkg/logging"
)

// Transient substrings matched against error text, case-insensitive. This is
// a loose last-resort heuristic on top of the structural checks below.
var transientMarkers = []string{
	"network",
	"timeout",
	"connection",
	"message too long",
	"temporary",
	"unavailable",
}

// Policy configures one retry behavior. Delay between attempt k and k+1 is
// k*BaseDelay plus a uniform random jitter in [0, MaxJitter).
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration

	// sleep is replaced in tests; nil means real sleeping.
	sleep func(ctx context.Context, d time.Duration) error
}

// DefaultPolicy is the read-path policy.
var DefaultPolicy = Policy{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxJitter:   200 * time.Millisecond,
}

// WritePolicy is the tighter policy for mutating calls.
var WritePolicy = Policy{
	MaxAttempts: 2,
	BaseDelay:   300 * time.Millisecond,
	MaxJitter:   200 * time.Millisecond,
}

// WithSleep returns a copy of the policy that uses the given sleep function.
func (p Policy) WithSleep(sleep func(ctx context.Context, d time.Duration) error) Policy {
	p.sleep = sleep
	return p
}

// Do runs op up to MaxAttempts times. Retries happen only for retryable
// errors; the last error is returned unwrapped once attempts are exhausted
// or the failure is not retryable.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == attempts || !IsRetryable(lastErr) {
			return lastErr
		}

		delay := time.Duration(attempt)*p.BaseDelay + p.jitter()
		logging.LogDebugf("retrying after failure (%d/%d), waiting %s: %v",
			attempt, attempts, delay, lastErr)
		if err := p.doSleep(ctx, delay); err != nil {
			return lastErr
		}
	}
	return lastErr
}

func (p Policy) jitter() time.Duration {
	if p.MaxJitter <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(p.MaxJitter)))
}

func (p Policy) doSleep(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsRetryable reports whether err looks like a transient transport failure.
// Business errors, parse errors and validation errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	for _, errno := range []syscall.Errno{
		syscall.ETIMEDOUT,
		syscall.ECONNREFUSED,
		syscall.ECONNRESET,
		syscall.ECONNABORTED,
		syscall.ENOTCONN,
		syscall.EHOSTUNREACH,
		syscall.ENETUNREACH,
		syscall.EMSGSIZE,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}

	text := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}

	return false
}
