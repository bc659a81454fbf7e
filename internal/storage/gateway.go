// Package storage manages pooled access to the relational store. This file
// implements the transactional gateway: every unit of work runs on a
// validated connection, commits on success, rolls back on error, and returns
// a classified failure. Retry policy deliberately lives with the caller, not
// here.
package storage

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// Gateway executes units of work against the store using pooled connections.
type Gateway struct {
	Pool *Pool
	Log  zerolog.Logger
}

// NewGateway constructs a Gateway bound to pool.
func NewGateway(pool *Pool, log zerolog.Logger) *Gateway {
	return &Gateway{
		Pool: pool,
		Log:  log.With().Str("component", "storage.gateway").Logger(),
	}
}

// WithTransaction acquires a validated connection and runs fn inside a
// transaction: commit when fn returns nil, rollback otherwise. The returned
// error is classified per the package taxonomy (ErrConflict, ErrUnavailable,
// or the original error).
func (g *Gateway) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db, err := g.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := db.Transaction(fn); err != nil {
		return g.classify(ctx, err)
	}
	return nil
}

// Read acquires a validated connection and runs fn without wrapping it in a
// transaction. Used for single-statement reads (counts, lookups) and for
// work that manages its own statements, such as the startup schema
// migration.
func (g *Gateway) Read(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, err := g.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	if err := fn(db); err != nil {
		return g.classify(ctx, err)
	}
	return nil
}

// classify maps a raw storage error into the package taxonomy. Connectivity
// failures additionally trigger pool reinitialization before propagating.
func (g *Gateway) classify(ctx context.Context, err error) error {
	switch {
	case isConflict(err):
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case isConnFailure(err):
		g.Log.Error().Err(err).Msg("connectivity failure, reinitializing pool")
		if rerr := g.Pool.Reinitialize(ctx); rerr != nil {
			g.Log.Error().Err(rerr).Msg("pool reinitialization failed")
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	default:
		g.Log.Error().Err(err).Msg("storage operation failed")
		return err
	}
}

// isConflict reports whether err is a unique-constraint violation. The GORM
// translated sentinel covers postgres and sqlite; the string checks catch
// drivers that bypass translation.
func isConflict(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "SQLSTATE 23505")
}

// isConnFailure reports whether err is a connectivity-class failure that
// warrants pool reinitialization.
func isConnFailure(err error) bool {
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var netErr *net.OpError
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "bad connection")
}
