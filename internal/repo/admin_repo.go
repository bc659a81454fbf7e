// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the admin
// allow-list.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
)

// IsAdmin reports whether userID is on the admin allow-list. Absence is not
// an error.
func IsAdmin(ctx context.Context, db *gorm.DB, userID int64) (bool, error) {
	var a domain.Admin
	err := db.WithContext(ctx).
		Select("id").
		Where("user_id = ?", userID).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListAdmins returns all admin user ids.
func ListAdmins(ctx context.Context, db *gorm.DB) ([]int64, error) {
	var ids []int64
	err := db.WithContext(ctx).Model(&domain.Admin{}).
		Order("user_id ASC").
		Pluck("user_id", &ids).Error
	return ids, err
}
