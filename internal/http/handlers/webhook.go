package handlers

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/luckyjet/go-prediction-backend/internal/platform"
)

// SenderLimiter rations inbound work per key.
type SenderLimiter interface {
	Allow(key string) bool
}

// WebhookHandler receives platform updates. The platform retries deliveries
// that do not answer quickly, so the handler acknowledges immediately and
// dispatches on a detached context: a slow storage call must not turn into a
// redelivery storm.
type WebhookHandler struct {
	// Secret is the expected path segment; requests with any other value
	// get 404 so the route does not confirm its own existence.
	Secret string
	// Dispatch handles one decoded update.
	Dispatch func(ctx context.Context, u platform.Update)
	// Timeout bounds each dispatched update. Zero means 30s.
	Timeout time.Duration
	// Limiter, when set, sheds per-sender floods after decode. Over-limit
	// updates are acknowledged and dropped so the platform does not
	// redeliver them. Keying happens here rather than in middleware because
	// all deliveries share the platform's few egress IPs.
	Limiter SenderLimiter

	Log zerolog.Logger
}

// Handle is the POST /webhook/:secret endpoint.
func (h *WebhookHandler) Handle(c *gin.Context) {
	secret := c.Param("secret")
	if subtle.ConstantTimeCompare([]byte(secret), []byte(h.Secret)) != 1 {
		c.JSON(http.StatusNotFound, gin.H{"code": "not_found", "message": "route not found"})
		return
	}

	var u platform.Update
	if err := c.ShouldBindJSON(&u); err != nil {
		h.Log.Warn().Err(err).Msg("malformed webhook payload")
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "message": "malformed update"})
		return
	}

	if h.Limiter != nil && !h.Limiter.Allow(senderKey(u)) {
		h.Log.Debug().Int64("update_id", u.UpdateID).Msg("update shed by sender rate limit")
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	go func() {
		// Detached from the request: the ack below must not cancel the work.
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		h.Dispatch(ctx, u)
	}()

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// senderKey derives the rate-limit bucket key from the update's sender.
func senderKey(u platform.Update) string {
	switch {
	case u.Message != nil:
		return fmt.Sprintf("sender:%d", u.Message.From.ID)
	case u.Callback != nil:
		return fmt.Sprintf("sender:%d", u.Callback.From.ID)
	}
	return "sender:unknown"
}
