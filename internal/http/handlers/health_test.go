package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/luckyjet/go-prediction-backend/internal/cache"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

func newHealthPool(t *testing.T) *storage.Pool {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("health_test_%d.db", time.Now().UnixNano()))
	pool := storage.NewPool(storage.PoolConfig{
		Driver:      storage.DriverSQLite,
		DSN:         dsn,
		MaxAttempts: 1,
	}, zerolog.Nop())
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("pool init: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func performHealth(h *HealthHandler, path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/", h.Live)
	r.GET("/health", h.Health)
	r.GET("/ready", h.Ready)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestLive(t *testing.T) {
	w := performHealth(&HealthHandler{}, "/")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestHealth_ReportsPoolAndCaches(t *testing.T) {
	members := cache.New[int64, bool](10, time.Minute)
	members.Set(1, true)
	members.Set(2, false)
	h := &HealthHandler{
		Pool:        newHealthPool(t),
		Caches:      map[string]Occupancy{"membership": members},
		PingTimeout: time.Second,
	}

	w := performHealth(h, "/health")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (body %s)", w.Code, w.Body.String())
	}

	var body struct {
		Status string `json:"status"`
		Pool   struct {
			MaxOpen int `json:"max_open"`
		} `json:"pool"`
		Caches map[string]int `json:"caches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %q, want ok", body.Status)
	}
	if body.Pool.MaxOpen < 1 {
		t.Fatalf("pool stats missing: %+v", body.Pool)
	}
	if body.Caches["membership"] != 2 {
		t.Fatalf("cache occupancy = %d, want 2", body.Caches["membership"])
	}
}

func TestHealthAndReady_DegradedStorage(t *testing.T) {
	pool := newHealthPool(t)
	pool.Close() // unreachable storage from here on
	h := &HealthHandler{Pool: pool, PingTimeout: time.Second}

	if w := performHealth(h, "/health"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/health status = %d, want 503", w.Code)
	}
	if w := performHealth(h, "/ready"); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("/ready status = %d, want 503", w.Code)
	}
}

func TestReady_HealthyStorage(t *testing.T) {
	h := &HealthHandler{Pool: newHealthPool(t), PingTimeout: time.Second}
	if w := performHealth(h, "/ready"); w.Code != http.StatusOK {
		t.Fatalf("/ready status = %d, want 200", w.Code)
	}
}
