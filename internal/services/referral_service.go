// Package services – ReferralService
//
// This file implements the pending→confirmed referral lifecycle. A referral
// starts PENDING when a user arrives through an invite link, and becomes
// CONFIRMED when the referred user's channel membership is verified. Pending
// rows have no expiry: an abandoned invite can still be confirmed whenever
// the invited user eventually joins (at most one small row per un-verified
// invitee, so the table stays bounded by the invitee population).
package services

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/domain"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// ReferralService manages referral state transitions and the eligible-user
// persistence rule.
type ReferralService struct {
	Gateway     *storage.Gateway
	Eligibility *EligibilityService
	Log         zerolog.Logger
}

// RegisterPending records a pending referral for referredID. Invalid
// attributions (zero referrer, self-referral) are silently skipped and never
// reach the store. A later invite for the same referred user overwrites the
// referrer. Returns whether a pending attribution now exists.
func (s *ReferralService) RegisterPending(ctx context.Context, referrerID, referredID int64) (bool, error) {
	if referrerID == 0 || referrerID == referredID {
		return false, nil
	}
	err := s.Gateway.WithTransaction(ctx, func(tx *gorm.DB) error {
		return repo.UpsertPendingReferral(ctx, tx, referrerID, referredID)
	})
	if err != nil {
		return false, err
	}
	s.Log.Info().Int64("referrer_id", referrerID).Int64("referred_id", referredID).
		Msg("pending referral stored")
	return true, nil
}

// ConfirmPending promotes the referred user's pending referral, if any, to a
// confirmed one. The pending row is deleted and read atomically, so exactly
// one of N concurrent confirmations wins it; the confirmed insert ignores
// duplicates. With no pending row the call is a no-op, not an error.
//
// On success both affected cache entries are invalidated: the referrer's
// count and the referred user's membership. Nothing is invalidated when the
// write fails, so caches are never poisoned by a rolled-back transaction.
func (s *ReferralService) ConfirmPending(ctx context.Context, referredID int64) (referrerID int64, confirmed bool, err error) {
	err = s.Gateway.WithTransaction(ctx, func(tx *gorm.DB) error {
		rid, ok, e := repo.TakePendingReferral(ctx, tx, referredID)
		if e != nil || !ok {
			return e
		}
		if _, e := repo.CreateReferral(ctx, tx, rid, referredID); e != nil {
			return e
		}
		referrerID, confirmed = rid, true
		return nil
	})
	if errors.Is(err, storage.ErrConflict) {
		// A concurrent confirmation already credited this pair.
		err = nil
		confirmed = false
	}
	if err != nil {
		return 0, false, err
	}
	if confirmed {
		s.Eligibility.InvalidateReferrer(referrerID)
		s.Eligibility.Invalidate(referredID)
		s.Log.Info().Int64("referrer_id", referrerID).Int64("referred_id", referredID).
			Msg("referral confirmed")
	}
	return referrerID, confirmed, nil
}

// SaveUserIfEligible persists the user once they meet the full gate (member
// with the quota met). Status is resolved fresh; existing rows are left
// untouched. On a new save, the caches of everyone credited with referring
// this user are invalidated.
func (s *ReferralService) SaveUserIfEligible(ctx context.Context, user platform.UserInfo) (bool, error) {
	s.Eligibility.Invalidate(user.ID)
	st := s.Eligibility.Resolve(ctx, user.ID)
	if !s.Eligibility.Eligible(st) {
		return false, nil
	}

	var created bool
	var referrers []int64
	err := s.Gateway.WithTransaction(ctx, func(tx *gorm.DB) error {
		var e error
		created, e = repo.CreateUser(ctx, tx, &domain.User{
			UserID:    user.ID,
			Username:  user.Username,
			FirstName: user.FirstName,
			LastName:  user.LastName,
		})
		if e != nil || !created {
			return e
		}
		referrers, e = repo.ListReferrers(ctx, tx, user.ID)
		return e
	})
	if errors.Is(err, storage.ErrConflict) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	for _, rid := range referrers {
		s.Eligibility.InvalidateReferrer(rid)
	}
	if created {
		s.Log.Info().Int64("user_id", user.ID).Msg("eligible user saved")
	}
	return created, nil
}
