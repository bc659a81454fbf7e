package services

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/luckyjet/go-prediction-backend/internal/repo"
	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// LiveRequestService records user requests for a live session. Each user may
// hold at most one outstanding request; admins list and clear the set.
type LiveRequestService struct {
	Gateway *storage.Gateway
	Log     zerolog.Logger
}

// Request files a live request for userID and returns the total number of
// outstanding requests. A second request by the same user returns
// ErrDuplicateLiveRequest along with the current total.
func (s *LiveRequestService) Request(ctx context.Context, userID int64) (total int64, err error) {
	var created bool
	err = s.Gateway.WithTransaction(ctx, func(tx *gorm.DB) error {
		var e error
		created, e = repo.CreateLiveRequest(ctx, tx, userID)
		if e != nil {
			return e
		}
		total, e = repo.CountLiveRequests(ctx, tx)
		return e
	})
	if err != nil {
		return 0, err
	}
	if !created {
		return total, ErrDuplicateLiveRequest
	}
	s.Log.Info().Int64("user_id", userID).Int64("total", total).Msg("live request filed")
	return total, nil
}

// Pending returns up to limit outstanding request user ids, newest first.
func (s *LiveRequestService) Pending(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	err := s.Gateway.Read(ctx, func(db *gorm.DB) error {
		var e error
		ids, e = repo.ListLiveRequests(ctx, db, limit)
		return e
	})
	return ids, err
}

// Clear removes all outstanding live requests and returns how many were
// dropped.
func (s *LiveRequestService) Clear(ctx context.Context) (int64, error) {
	var dropped int64
	err := s.Gateway.WithTransaction(ctx, func(tx *gorm.DB) error {
		var e error
		dropped, e = repo.ClearLiveRequests(ctx, tx)
		return e
	})
	if err != nil {
		return 0, err
	}
	s.Log.Info().Int64("dropped", dropped).Msg("live requests cleared")
	return dropped, nil
}
