package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ConnectivityError marks a failure to reach a backend at all, as decided by the
// adapter from transport facts (refused connection, timeout, closed pool).
type ConnectivityError struct {
	Op  string
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("%s: backend unreachable: %v", e.Op, e.Err)
}

func (e *ConnectivityError) Unwrap() error { return e.Err }

// IsConnectivity reports whether err (or anything it wraps) is a ConnectivityError.
func IsConnectivity(err error) bool {
	var ce *ConnectivityError
	return errors.As(err, &ce)
}

// Failover pairs a primary backend with a local fallback. The zero Primary means
// no primary is configured and every call goes straight to Fallback.
type Failover[T any] struct {
	Primary  T
	Fallback T
	Logger   *slog.Logger
}

// NewFailover builds a selector over the two backends.
func NewFailover[T any](primary, fallback T, logger *slog.Logger) *Failover[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Failover[T]{Primary: primary, Fallback: fallback, Logger: logger}
}

func (f *Failover[T]) hasPrimary() bool  { return any(f.Primary) != nil }
func (f *Failover[T]) hasFallback() bool { return any(f.Fallback) != nil }

// Try runs fn against the primary and, if the primary is unreachable, against the
// fallback. Every call decides afresh; nothing is pinned between calls.
func Try[T, R any](ctx context.Context, f *Failover[T], op string, fn func(context.Context, T) (R, error)) (R, error) {
	if !f.hasPrimary() {
		return fn(ctx, f.Fallback)
	}
	res, err := fn(ctx, f.Primary)
	if err == nil || !IsConnectivity(err) || !f.hasFallback() || ctx.Err() != nil {
		return res, err
	}
	f.Logger.WarnContext(ctx, "primary store unreachable, using fallback", "op", op, "err", err)
	return fn(ctx, f.Fallback)
}

// Exec is Try for operations without a result.
func Exec[T any](ctx context.Context, f *Failover[T], op string, fn func(context.Context, T) error) error {
	_, err := Try(ctx, f, op, func(ctx context.Context, backend T) (struct{}, error) {
		return struct{}{}, fn(ctx, backend)
	})
	return err
}
