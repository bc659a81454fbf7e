// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for live
// prediction requests.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

// CreateLiveRequest records a live prediction request. UserID is unique, so
// a user with an outstanding request gets created=false.
func CreateLiveRequest(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	lr := domain.LiveRequest{UserID: userID, CreatedAt: time.Now().UTC()}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&lr)
	return res.RowsAffected > 0, res.Error
}

// CountLiveRequests uses a raw COUNT so a missing table surfaces as an error.
func CountLiveRequests(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM live_requests").Scan(&total).Error
	return total, err
}

// ListLiveRequests returns up to limit requesting user ids, newest first.
func ListLiveRequests(ctx context.Context, db *gorm.DB, limit int) ([]int64, error) {
	var ids []int64
	q := db.WithContext(ctx).Model(&domain.LiveRequest{}).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Pluck("user_id", &ids).Error
	return ids, err
}

// ClearLiveRequests deletes all outstanding requests and reports how many
// were dropped. DELETE rather than TRUNCATE so the statement works on both
// postgres and sqlite.
func ClearLiveRequests(ctx context.Context, db *gorm.DB) (int64, error) {
	res := db.WithContext(ctx).Exec("DELETE FROM live_requests")
	return res.RowsAffected, res.Error
}
