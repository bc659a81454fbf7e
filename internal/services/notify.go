package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// AdminNotifier delivers best-effort notifications to every admin. Delivery
// failures are logged and skipped; one unreachable admin never blocks the
// rest.
type AdminNotifier struct {
	Gateway *storage.Gateway
	Sender  platform.Sender
	Log     zerolog.Logger
}

// NotifyAll sends text to each registered admin.
func (n *AdminNotifier) NotifyAll(ctx context.Context, text string) error {
	var admins []int64
	err := n.Gateway.Read(ctx, func(db *gorm.DB) error {
		var e error
		admins, e = repo.ListAdmins(ctx, db)
		return e
	})
	if err != nil {
		return err
	}
	for _, id := range admins {
		if err := n.Sender.SendMessage(ctx, id, text); err != nil {
			n.Log.Warn().Err(err).Int64("admin_id", id).Msg("admin notification failed")
		}
	}
	return nil
}
