package domain

import (
	"context"
	"errors"
	"net"
	"syscall"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrRateLimited       = errors.New("rate limited")
	ErrOrderRetryable    = errors.New("order rejected, retryable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrQueueFull         = errors.New("queue full")
	ErrDuplicateInFlight = errors.New("opportunity for market already in flight")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrScanInProgress    = errors.New("scan already in progress")
	ErrPositionLimit     = errors.New("position limit reached")
	ErrQuotingHalted     = errors.New("quoting halted for market")
	ErrStrategyRunning   = errors.New("strategy already running")
	ErrStrategyStopped   = errors.New("strategy not running")
	ErrEmptyBook         = errors.New("empty orderbook")
	ErrInsufficientDepth = errors.New("insufficient orderbook depth")
	ErrLockHeld          = errors.New("lock already held")
)

// Transient reports whether an upstream error is worth retrying with
// backoff rather than failing the enclosing opportunity outright: rate
// limits, timeouts, connection resets, and rejections the venue itself
// flagged as retryable. Deliberate cancellation is not transient.
func Transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrOrderRetryable) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
