// Package storage manages pooled access to the relational store. This file
// implements the connection pool wrapper: open-with-retry, per-acquire
// validation, hot reinitialization on failure, and pool statistics for the
// health probe.
//
// The pool rides on database/sql's connection management underneath GORM:
// acquire hands out a validated session, and connections return to the pool
// automatically when each statement or transaction completes. Idle
// connections beyond the configured idle window are closed by
// SetConnMaxIdleTime rather than a hand-rolled reaper.
package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	sqlite "github.com/glebarez/sqlite"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"
)

// Supported database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// poolReinits counts hot reinitializations, whether triggered by a failed
// validation round-trip, a failed transaction, or the maintenance loop.
var poolReinits = prometheus.NewCounter(prometheus.CounterOpts{
	Name: "storage_pool_reinitializations_total",
	Help: "Total number of connection pool reinitializations.",
})

func init() {
	prometheus.MustRegister(poolReinits)
}

// PoolConfig holds the tunables for a Pool.
type PoolConfig struct {
	Driver           string        // DriverPostgres or DriverSQLite
	DSN              string        // connection string / file path
	MinConns         int           // kept idle and ready
	MaxConns         int           // hard upper bound on open connections
	ConnectTimeout   time.Duration // per-dial budget
	StatementTimeout time.Duration // server-side cap per statement
	IdleTimeout      time.Duration // idle connections older than this are closed
	MaxAttempts      int           // initialization attempts before ErrPoolInit
	RetryInterval    time.Duration // base backoff between attempts
	Tracing          bool          // attach the OTel GORM plugin
}

func (c *PoolConfig) applyDefaults() {
	if c.MinConns <= 0 {
		c.MinConns = 1
	}
	if c.MaxConns < c.MinConns {
		c.MaxConns = c.MinConns
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.StatementTimeout <= 0 {
		c.StatementTimeout = 5 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Hour
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = time.Second
	}
}

// PoolStats is a snapshot of pool utilization for the health probe.
type PoolStats struct {
	MaxOpen int `json:"max_open"`
	Open    int `json:"open"`
	Idle    int `json:"idle"`
	InUse   int `json:"in_use"`
}

// Pool owns the GORM handle and guards its replacement during
// reinitialization. Safe for concurrent use.
type Pool struct {
	mu  sync.RWMutex
	db  *gorm.DB
	cfg PoolConfig
	log zerolog.Logger

	// open is the dial function; replaced in tests to inject failures.
	open func(ctx context.Context, cfg PoolConfig) (*gorm.DB, error)
}

// NewPool constructs an uninitialized Pool. Call Initialize before use.
func NewPool(cfg PoolConfig, log zerolog.Logger) *Pool {
	cfg.applyDefaults()
	return &Pool{
		cfg:  cfg,
		log:  log.With().Str("component", "storage.pool").Logger(),
		open: openGorm,
	}
}

// Initialize opens the pool, retrying up to MaxAttempts times with
// exponential backoff. Exhausting the attempts surfaces ErrPoolInit, which
// aborts startup.
func (p *Pool) Initialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.initLocked(ctx)
}

func (p *Pool) initLocked(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.cfg.RetryInterval
	bo.MaxInterval = 10 * p.cfg.RetryInterval

	var db *gorm.DB
	attempt := 0
	op := func() error {
		attempt++
		var err error
		db, err = p.open(ctx, p.cfg)
		if err != nil {
			p.log.Warn().Err(err).Int("attempt", attempt).Msg("pool open failed")
		}
		return err
	}
	err := backoff.Retry(op, backoff.WithContext(
		backoff.WithMaxRetries(bo, uint64(p.cfg.MaxAttempts-1)), ctx))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPoolInit, err)
	}

	if p.db != nil {
		closeQuietly(p.db)
	}
	p.db = db
	p.log.Info().
		Int("min_conns", p.cfg.MinConns).
		Int("max_conns", p.cfg.MaxConns).
		Str("driver", p.cfg.Driver).
		Msg("connection pool initialized")
	return nil
}

// Reinitialize atomically replaces the pool with a freshly opened one,
// closing the previous handle. Used after connectivity failures and by the
// maintenance loop.
func (p *Pool) Reinitialize(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	poolReinits.Inc()
	return p.initLocked(ctx)
}

// Acquire returns a request-scoped session after validating connectivity
// with a trivial round-trip. On validation failure the pool reinitializes
// itself and the error is returned: Acquire is fallible by contract and
// callers must not retry indefinitely.
func (p *Pool) Acquire(ctx context.Context) (*gorm.DB, error) {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()

	if db == nil {
		return nil, fmt.Errorf("%w: pool not initialized", ErrUnavailable)
	}
	if err := db.WithContext(ctx).Exec("SELECT 1").Error; err != nil {
		p.log.Warn().Err(err).Msg("connection validation failed, reinitializing pool")
		if rerr := p.Reinitialize(ctx); rerr != nil {
			p.log.Error().Err(rerr).Msg("pool reinitialization failed")
		}
		return nil, fmt.Errorf("%w: validation: %v", ErrUnavailable, err)
	}
	return db.WithContext(ctx), nil
}

// Ping reports storage connectivity. Used by the readiness probe.
func (p *Pool) Ping(ctx context.Context) error {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("%w: pool not initialized", ErrUnavailable)
	}
	return db.WithContext(ctx).Exec("SELECT 1").Error
}

// Maintain is the periodic health check run by the background scheduler. A
// failed round-trip triggers reinitialization; idle-connection trimming is
// delegated to the SetConnMaxIdleTime window configured at open time.
func (p *Pool) Maintain(ctx context.Context) {
	if err := p.Ping(ctx); err != nil {
		p.log.Warn().Err(err).Msg("pool health check failed, reinitializing")
		if rerr := p.Reinitialize(ctx); rerr != nil {
			p.log.Error().Err(rerr).Msg("pool reinitialization failed")
		}
		return
	}
	st := p.Stats()
	p.log.Debug().
		Int("open", st.Open).
		Int("idle", st.Idle).
		Int("in_use", st.InUse).
		Msg("pool healthy")
}

// Stats snapshots the underlying database/sql pool counters.
func (p *Pool) Stats() PoolStats {
	p.mu.RLock()
	db := p.db
	p.mu.RUnlock()
	if db == nil {
		return PoolStats{}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return PoolStats{}
	}
	s := sqlDB.Stats()
	return PoolStats{
		MaxOpen: s.MaxOpenConnections,
		Open:    s.OpenConnections,
		Idle:    s.Idle,
		InUse:   s.InUse,
	}
}

// Close releases the pool. Safe to call on an uninitialized pool.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.db != nil {
		closeQuietly(p.db)
		p.db = nil
	}
}

// openGorm dials the configured driver, tunes the database/sql pool beneath
// it, and verifies the connection with a ping bounded by ConnectTimeout.
func openGorm(ctx context.Context, cfg PoolConfig) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch cfg.Driver {
	case DriverPostgres:
		dial = postgres.Open(withTimeouts(cfg.DSN, cfg.StatementTimeout, cfg.ConnectTimeout))
	case DriverSQLite:
		dial = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConns)
	sqlDB.SetMaxIdleConns(cfg.MinConns)
	sqlDB.SetConnMaxIdleTime(cfg.IdleTimeout)

	if cfg.Driver == DriverSQLite {
		db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", cfg.StatementTimeout.Milliseconds()))
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA foreign_keys=ON;")
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if cfg.Tracing {
		if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// withTimeouts appends statement_timeout and connect_timeout to a postgres
// DSN unless the caller already set them. pgx forwards unknown keywords as
// server runtime parameters, which is exactly what statement_timeout needs.
func withTimeouts(dsn string, stmt, connect time.Duration) string {
	stmtMS := stmt.Milliseconds()
	connectS := int(connect.Seconds())
	if connectS < 1 {
		connectS = 1
	}

	if strings.Contains(dsn, "://") { // URL form
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		if !strings.Contains(dsn, "statement_timeout") {
			dsn += fmt.Sprintf("%sstatement_timeout=%d", sep, stmtMS)
			sep = "&"
		}
		if !strings.Contains(dsn, "connect_timeout") {
			dsn += fmt.Sprintf("%sconnect_timeout=%d", sep, connectS)
		}
		return dsn
	}

	// keyword=value form
	if !strings.Contains(dsn, "statement_timeout") {
		dsn += fmt.Sprintf(" statement_timeout=%d", stmtMS)
	}
	if !strings.Contains(dsn, "connect_timeout") {
		dsn += fmt.Sprintf(" connect_timeout=%d", connectS)
	}
	return strings.TrimSpace(dsn)
}

func closeQuietly(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
