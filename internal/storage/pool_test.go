package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

func sqlitePoolConfig(t *testing.T) PoolConfig {
	t.Helper()
	return PoolConfig{
		Driver:        DriverSQLite,
		DSN:           filepath.Join(t.TempDir(), fmt.Sprintf("pool_test_%d.db", time.Now().UnixNano())),
		MinConns:      1,
		MaxConns:      4,
		MaxAttempts:   3,
		RetryInterval: time.Millisecond,
	}
}

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	p := NewPool(sqlitePoolConfig(t), zerolog.Nop())
	if err := p.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

func TestInitialize_FatalAfterBoundedRetries(t *testing.T) {
	p := NewPool(sqlitePoolConfig(t), zerolog.Nop())

	attempts := 0
	p.open = func(ctx context.Context, cfg PoolConfig) (*gorm.DB, error) {
		attempts++
		return nil, errors.New("dial refused")
	}

	err := p.Initialize(context.Background())
	if !errors.Is(err, ErrPoolInit) {
		t.Fatalf("expected ErrPoolInit, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestAcquire_SucceedsOnHealthyPool(t *testing.T) {
	p := newTestPool(t)
	db, err := p.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if db == nil {
		t.Fatalf("expected usable session")
	}
}

func TestAcquire_Uninitialized(t *testing.T) {
	p := NewPool(sqlitePoolConfig(t), zerolog.Nop())
	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestAcquire_ReinitializesAfterConnectionFailure(t *testing.T) {
	p := newTestPool(t)

	// Simulate a dropped connection by closing the handle out from under
	// the pool.
	closeQuietly(p.db)

	if _, err := p.Acquire(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable after simulated failure, got %v", err)
	}

	// The failed acquire must have reinitialized the pool: a subsequent
	// acquire succeeds without caller intervention.
	if _, err := p.Acquire(context.Background()); err != nil {
		t.Fatalf("expected recovery after reinitialization, got %v", err)
	}
}

func TestMaintain_RecoversUnhealthyPool(t *testing.T) {
	p := newTestPool(t)
	closeQuietly(p.db)

	p.Maintain(context.Background())

	if err := p.Ping(context.Background()); err != nil {
		t.Fatalf("expected healthy pool after Maintain, got %v", err)
	}
}

func TestStats_ReflectsConfiguredBounds(t *testing.T) {
	p := newTestPool(t)
	st := p.Stats()
	if st.MaxOpen != 4 {
		t.Fatalf("expected max_open=4, got %+v", st)
	}
}

func TestWithTimeouts_URLForm(t *testing.T) {
	dsn := withTimeouts("postgres://u:p@db:5432/bot", 5*time.Second, 5*time.Second)
	if !strings.Contains(dsn, "statement_timeout=5000") || !strings.Contains(dsn, "connect_timeout=5") {
		t.Fatalf("unexpected DSN: %s", dsn)
	}
}

func TestWithTimeouts_KeywordFormAndExisting(t *testing.T) {
	dsn := withTimeouts("host=db user=bot statement_timeout=1000", 5*time.Second, 5*time.Second)
	if strings.Contains(dsn, "statement_timeout=5000") {
		t.Fatalf("caller-set statement_timeout must be preserved: %s", dsn)
	}
	if !strings.Contains(dsn, "connect_timeout=5") {
		t.Fatalf("expected connect_timeout appended: %s", dsn)
	}
}
