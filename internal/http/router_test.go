package httpapi

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

	"github.com/luckyjet/go-prediction-backend/internal/bot"
	"github.com/luckyjet/go-prediction-backend/internal/cache"
	"github.com/luckyjet/go-prediction-backend/internal/config"
	"github.com/luckyjet/go-prediction-backend/internal/http/handlers"
	"github.com/luckyjet/go-prediction-backend/internal/services"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

func newTestEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("router_test_%d.db", time.Now().UnixNano()))
	pool := storage.NewPool(storage.PoolConfig{
		Driver:      storage.DriverSQLite,
		DSN:         dsn,
		MaxAttempts: 1,
	}, zerolog.Nop())
	if err := pool.Initialize(context.Background()); err != nil {
		t.Fatalf("pool init: %v", err)
	}
	t.Cleanup(pool.Close)

	t.Setenv("BOT_TOKEN", "123:token")
	t.Setenv("CHANNEL_USERNAME", "@chan")
	t.Setenv("WEBHOOK_SECRET", "s3cret")
	cfg := config.MustLoad()

	members := cache.New[int64, bool](10, time.Minute)
	predictions := services.NewPredictionService(time.Minute, time.Minute, nil, zerolog.Nop())
	r := gin.New()
	RegisterRoutes(r, Deps{
		Pool:       pool,
		Dispatcher: &bot.Dispatcher{Log: zerolog.Nop()},
		Caches: map[string]handlers.Occupancy{
			"membership": members,
			"cooldowns":  predictions.Cooldowns,
		},
	}, cfg)
	return r
}

func perform(r *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestRegisterRoutes_HealthSurface(t *testing.T) {
	r := newTestEngine(t)

	if w := perform(r, http.MethodGet, "/"); w.Code != http.StatusOK {
		t.Fatalf("GET / -> %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/health"); w.Code != http.StatusOK {
		t.Fatalf("GET /health -> %d (body %s)", w.Code, w.Body.String())
	}
	if w := perform(r, http.MethodGet, "/ready"); w.Code != http.StatusOK {
		t.Fatalf("GET /ready -> %d", w.Code)
	}
	if w := perform(r, http.MethodGet, "/metrics"); w.Code != http.StatusOK {
		t.Fatalf("GET /metrics -> %d", w.Code)
	}
}

func TestRegisterRoutes_Fallbacks(t *testing.T) {
	r := newTestEngine(t)

	if w := perform(r, http.MethodGet, "/nope"); w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d, want 404", w.Code)
	}
	if w := perform(r, http.MethodDelete, "/health"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("DELETE /health -> %d, want 405", w.Code)
	}
}

func TestRegisterRoutes_WebhookSecretMismatch(t *testing.T) {
	r := newTestEngine(t)

	if w := perform(r, http.MethodPost, "/webhook/guess"); w.Code != http.StatusNotFound {
		t.Fatalf("POST /webhook/guess -> %d, want 404", w.Code)
	}
	if w := perform(r, http.MethodGet, "/webhook/s3cret"); w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /webhook/s3cret -> %d, want 405", w.Code)
	}
}

func TestRegisterRoutes_HealthReportsCooldownOccupancy(t *testing.T) {
	r := newTestEngine(t)

	w := perform(r, http.MethodGet, "/health")
	var body struct {
		Caches map[string]int `json:"caches"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode /health: %v (body %s)", err, w.Body.String())
	}
	for _, ns := range []string{"membership", "cooldowns"} {
		if _, ok := body.Caches[ns]; !ok {
			t.Fatalf("caches = %v, want a %q namespace", body.Caches, ns)
		}
	}
}

func TestRegisterRoutes_WebhookIsNotThrottledPerIP(t *testing.T) {
	t.Setenv("RATE_RPS", "0")
	t.Setenv("RATE_BURST", "1")
	r := newTestEngine(t)

	// All deliveries share the platform's egress IPs: the webhook must keep
	// answering however many arrive from one address.
	for i := 0; i < 5; i++ {
		if w := perform(r, http.MethodPost, "/webhook/guess"); w.Code != http.StatusNotFound {
			t.Fatalf("delivery %d -> %d, want 404", i, w.Code)
		}
	}

	// The probe surface keeps its per-IP bucket.
	perform(r, http.MethodGet, "/")
	if w := perform(r, http.MethodGet, "/"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second GET / -> %d, want 429", w.Code)
	}
}

func TestRegisterRoutes_RequestIDHeader(t *testing.T) {
	r := newTestEngine(t)

	w := perform(r, http.MethodGet, "/")
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID on the response")
	}
}
