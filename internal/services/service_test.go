package services

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/cache"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// newTestGateway opens a migrated throwaway sqlite store behind a real pool.
func newTestGateway(t *testing.T) *storage.Gateway {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	pool := storage.NewPool(storage.PoolConfig{
		Driver:        storage.DriverSQLite,
		DSN:           dsn,
		MaxAttempts:   1,
		RetryInterval: time.Millisecond,
	}, zerolog.Nop())
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("pool init: %v", err)
	}
	t.Cleanup(pool.Close)

	gw := storage.NewGateway(pool, zerolog.Nop())
	if err := gw.Read(context.Background(), func(db *gorm.DB) error {
		return repo.AutoMigrate(db)
	}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return gw
}

// stubChecker returns a fixed status per user, or a global error.
type stubChecker struct {
	status map[int64]string
	err    error
	calls  int
}

func (c *stubChecker) ChatMember(_ context.Context, _ string, userID int64) (string, error) {
	c.calls++
	if c.err != nil {
		return "", c.err
	}
	if s, ok := c.status[userID]; ok {
		return s, nil
	}
	return "left", nil
}

// stubSender records sends and optionally fails for chosen recipients.
type stubSender struct {
	sent   []int64
	failOn map[int64]bool
}

func (s *stubSender) SendMessage(_ context.Context, userID int64, _ string) error {
	if s.failOn[userID] {
		return fmt.Errorf("send to %d failed", userID)
	}
	s.sent = append(s.sent, userID)
	return nil
}

func (s *stubSender) SendPhoto(ctx context.Context, userID int64, _, _ string) error {
	return s.SendMessage(ctx, userID, "")
}

func (s *stubSender) SendVoice(ctx context.Context, userID int64, _, _ string) error {
	return s.SendMessage(ctx, userID, "")
}

func (s *stubSender) SendSticker(ctx context.Context, userID int64, _ string) error {
	return s.SendMessage(ctx, userID, "")
}

// newTestEligibility wires an EligibilityService over gw with an instant
// retry policy and generous caches.
func newTestEligibility(gw *storage.Gateway, checker platform.MembershipChecker, shares int) *EligibilityService {
	return &EligibilityService{
		Gateway:        gw,
		Membership:     checker,
		Channel:        "@channel",
		SharesRequired: shares,
		Members:        cache.New[int64, bool](100, time.Minute),
		Referrals:      cache.New[int64, int](100, time.Minute),
		Retry:          RetryPolicy{MaxAttempts: 1, InitialInterval: time.Millisecond},
		Log:            zerolog.Nop(),
	}
}
