// Package domain defines the persistence models for users, referrals, live
// prediction requests, and admins. These types are mapped with GORM and form
// the core data layer of the eligibility gating engine.
package domain

import "time"

// User represents an end user who has fully unlocked the prediction feature.
// A row is created only once the user is eligible (channel member with the
// referral quota met) and is never deleted by this service.
//
// Fields:
//   - UserID: platform-assigned identity, used as the primary key directly
//     (no surrogate key; the platform guarantees uniqueness).
//   - Username / FirstName / LastName: profile snapshot taken at save time.
//   - CreatedAt: timestamp managed by GORM.
type User struct {
	UserID    int64     `json:"user_id"    gorm:"primaryKey;autoIncrement:false"`
	Username  string    `json:"username"   gorm:"type:varchar(255)"`
	FirstName string    `json:"first_name" gorm:"type:varchar(255)"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(255)"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Referral is a confirmed, durable invite relationship: the referred user was
// a channel member at confirmation time. The (referrer, referred) pair is
// unique so duplicate confirmations cannot double-credit an inviter.
type Referral struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	ReferrerID int64     `json:"referrer_id" gorm:"not null;index;uniqueIndex:ux_referrals_pair,priority:1"`
	ReferredID int64     `json:"referred_id" gorm:"not null;uniqueIndex:ux_referrals_pair,priority:2"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Referral.
func (Referral) TableName() string { return "referrals" }

// PendingReferral is an unconfirmed invite attribution awaiting the invitee's
// membership verification. ReferredID is unique on its own: at most one
// inviter can be credited per invitee, and a later invite overwrites the
// referrer (last invite wins). Rows are consumed exactly once, at
// confirmation time.
type PendingReferral struct {
	ID         int64     `json:"id"          gorm:"primaryKey"`
	ReferrerID int64     `json:"referrer_id" gorm:"not null"`
	ReferredID int64     `json:"referred_id" gorm:"not null;uniqueIndex:ux_pending_referred"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for PendingReferral.
func (PendingReferral) TableName() string { return "pending_referrals" }

// LiveRequest records a user's request for a live prediction. UserID is
// unique, so each user can have at most one outstanding request; the table is
// cleared in bulk by an admin action.
type LiveRequest struct {
	ID        int64     `json:"id"         gorm:"primaryKey"`
	UserID    int64     `json:"user_id"    gorm:"not null;uniqueIndex:ux_live_requests_user"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for LiveRequest.
func (LiveRequest) TableName() string { return "live_requests" }

// Admin is a static allow-list entry. Rows are seeded out of band and never
// mutated by this service.
type Admin struct {
	ID     int64 `json:"id"      gorm:"primaryKey"`
	UserID int64 `json:"user_id" gorm:"not null;uniqueIndex:ux_admins_user"`
}

// TableName returns the database table name for Admin.
func (Admin) TableName() string { return "admins" }
