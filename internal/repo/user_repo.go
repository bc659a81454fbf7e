// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

// CreateUser inserts a user row if it does not already exist. Returns true
// when a new row was written, false when the user was already present.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) (bool, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(u)
	return res.RowsAffected > 0, res.Error
}

// GetUser fetches a user by platform id.
func GetUser(ctx context.Context, db *gorm.DB, userID int64) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// ListUsers returns all stored users ordered by creation time.
func ListUsers(ctx context.Context, db *gorm.DB) ([]domain.User, error) {
	var out []domain.User
	err := db.WithContext(ctx).Order("created_at ASC, user_id ASC").Find(&out).Error
	return out, err
}

// ListUserIDs returns the ids of all stored users, the broadcast candidate set.
func ListUserIDs(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Model(&domain.User{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}

// CountUsers uses a raw COUNT so a missing table surfaces as an error.
func CountUsers(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw("SELECT COUNT(*) FROM users").Scan(&total).Error
	return total, err
}
