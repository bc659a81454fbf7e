// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for confirmed and
// pending referrals.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

// UpsertPendingReferral records a pending referral keyed by referred user.
// A later invite for the same referred user overwrites the referrer (last
// invite wins). Validation of referrer != referred happens in the service
// layer before this is reached.
func UpsertPendingReferral(ctx context.Context, db *gorm.DB, referrerID, referredID int64) error {
	pr := domain.PendingReferral{
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referred_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"referrer_id": referrerID}),
		}).
		Create(&pr).Error
}

// TakePendingReferral atomically deletes the pending row for referredID and
// returns its referrer. Exactly one concurrent caller observes ok=true; any
// other sees ok=false, which callers treat as a no-op, not an error.
func TakePendingReferral(ctx context.Context, db *gorm.DB, referredID int64) (referrerID int64, ok bool, err error) {
	var taken []domain.PendingReferral
	err = db.WithContext(ctx).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "referrer_id"}}}).
		Where("referred_id = ?", referredID).
		Delete(&taken).Error
	if err != nil || len(taken) == 0 {
		return 0, false, err
	}
	return taken[0].ReferrerID, true, nil
}

// GetPendingReferral fetches the pending row for a referred user, if any.
func GetPendingReferral(ctx context.Context, db *gorm.DB, referredID int64) (*domain.PendingReferral, error) {
	var pr domain.PendingReferral
	if err := db.WithContext(ctx).Where("referred_id = ?", referredID).First(&pr).Error; err != nil {
		return nil, err
	}
	return &pr, nil
}

// CreateReferral persists a confirmed referral, ignoring duplicates so a
// repeated confirmation cannot double-credit. Returns true when a new row
// was written.
func CreateReferral(ctx context.Context, db *gorm.DB, referrerID, referredID int64) (bool, error) {
	r := domain.Referral{
		ReferrerID: referrerID,
		ReferredID: referredID,
		CreatedAt:  time.Now().UTC(),
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&r)
	return res.RowsAffected > 0, res.Error
}

// CountReferrals uses a raw COUNT over confirmed referrals for a referrer.
// This is the authoritative source behind the referral count cache.
func CountReferrals(ctx context.Context, db *gorm.DB, referrerID int64) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM referrals WHERE referrer_id = ?", referrerID).
		Scan(&total).Error
	return total, err
}

// ListReferrers returns the referrers credited for a given referred user.
// Used to invalidate referrer caches when the referred user is persisted.
func ListReferrers(ctx context.Context, db *gorm.DB, referredID int64) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Model(&domain.Referral{}).
		Where("referred_id = ?", referredID).
		Pluck("referrer_id", &ids).Error
	return ids, err
}
