// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains the schema migration helper.
package repo

import (
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

// AutoMigrate creates or updates the tables required by the gating engine.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Referral{},
		&domain.PendingReferral{},
		&domain.LiveRequest{},
		&domain.Admin{},
	)
}
