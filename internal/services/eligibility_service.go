// Package services – EligibilityService
//
// This file implements the eligibility resolver: it computes a user's
// {member, referral count, admin} tuple, consulting the caches first and the
// store / the external membership API on miss. Admin status is deliberately
// never cached: it is a low-cardinality, security-sensitive point read that
// gates destructive actions, so freshness wins over the saved round-trip.
//
// The resolver never errors toward its callers. Degraded paths (membership
// API down, storage hiccup on a count) resolve conservatively — not a
// member, zero referrals — and only successful lookups populate the caches,
// so a failure can never be laundered into a cached fact.
package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/cache"
	"github.com/luckyjet/go-prediction-backend/internal/platform"
	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// Status is the resolved eligibility tuple for one user.
type Status struct {
	IsMember      bool
	ReferralCount int
	IsAdmin       bool
}

// EligibilityService resolves user status with cache-aside reads over the
// storage gateway and the external membership collaborator.
//
// Mutating callers must invalidate the affected cache entries themselves
// (Invalidate / InvalidateReferrer) before the next Resolve is considered
// correct; the resolver does not auto-invalidate.
type EligibilityService struct {
	Gateway    *storage.Gateway
	Membership platform.MembershipChecker

	// Channel is the channel whose membership gates the feature.
	Channel string
	// SharesRequired is the referral quota; 0 disables the quota.
	SharesRequired int

	// Members caches the membership boolean per user id.
	Members *cache.Cache[int64, bool]
	// Referrals caches the confirmed referral count per referrer id.
	Referrals *cache.Cache[int64, int]

	Retry RetryPolicy
	Log   zerolog.Logger
}

// Resolve computes the status tuple for userID. It never fails: degraded
// lookups resolve fail-closed and are logged.
func (s *EligibilityService) Resolve(ctx context.Context, userID int64) Status {
	var st Status

	// Admin status: always fresh from storage.
	err := s.Gateway.Read(ctx, func(db *gorm.DB) error {
		isAdmin, err := repo.IsAdmin(ctx, db, userID)
		st.IsAdmin = isAdmin
		return err
	})
	if err != nil {
		s.Log.Warn().Err(err).Int64("user_id", userID).Msg("admin check failed")
	}

	// Membership: cache, then the external collaborator under retry.
	if member, ok := s.Members.Get(userID); ok {
		cacheLookups.WithLabelValues("membership", "hit").Inc()
		st.IsMember = member
	} else {
		cacheLookups.WithLabelValues("membership", "miss").Inc()
		var status string
		err := s.Retry.Do(ctx, func() error {
			var e error
			status, e = s.Membership.ChatMember(ctx, s.Channel, userID)
			return e
		})
		if err != nil {
			// Fail closed: treat as not a member, do not cache.
			s.Log.Warn().Err(err).Int64("user_id", userID).Msg("membership check failed, treating as non-member")
		} else {
			st.IsMember = platform.IsMemberStatus(status)
			s.Members.Set(userID, st.IsMember)
		}
	}

	// Referral count: cache, then the authoritative COUNT.
	if n, ok := s.Referrals.Get(userID); ok {
		cacheLookups.WithLabelValues("referrals", "hit").Inc()
		st.ReferralCount = n
	} else {
		cacheLookups.WithLabelValues("referrals", "miss").Inc()
		var n int64
		err := s.Gateway.Read(ctx, func(db *gorm.DB) error {
			var e error
			n, e = repo.CountReferrals(ctx, db, userID)
			return e
		})
		if err != nil {
			s.Log.Warn().Err(err).Int64("user_id", userID).Msg("referral count failed, treating as zero")
		} else {
			s.Referrals.Set(userID, int(n))
		}
		st.ReferralCount = int(n)
	}

	return st
}

// Eligible applies the gating predicate: member AND (no quota OR quota met).
func (s *EligibilityService) Eligible(st Status) bool {
	return st.IsMember && (s.SharesRequired == 0 || st.ReferralCount >= s.SharesRequired)
}

// Invalidate pops both cache entries for userID. Call after any mutation of
// the user's membership or referral state.
func (s *EligibilityService) Invalidate(userID int64) {
	s.Members.Pop(userID)
	s.Referrals.Pop(userID)
}

// InvalidateReferrer pops the referral count entry for a referrer whose
// count just changed.
func (s *EligibilityService) InvalidateReferrer(referrerID int64) {
	s.Referrals.Pop(referrerID)
}
