// Package services – BroadcastService
//
// This file implements batched fan-out. Candidates are filtered to the
// currently eligible set, partitioned into fixed-size batches, and delivered
// with a pacing delay between batches so the platform rate limits are
// respected. Individual delivery failures are counted and logged, never
// fatal; only context cancellation aborts a run early.
package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SendFunc delivers one payload to one recipient.
type SendFunc func(ctx context.Context, userID int64) error

// BroadcastService fans a payload out to the eligible subset of a candidate
// list in paced batches.
type BroadcastService struct {
	Eligibility *EligibilityService

	// BatchSize is the number of recipients per batch. Zero or negative
	// falls back to 30.
	BatchSize int
	// Interval is the pause between consecutive batches. Zero disables
	// pacing.
	Interval time.Duration

	Log zerolog.Logger
}

// Broadcast filters candidates through the eligibility gate and delivers to
// each survivor via send. It returns the success and failure counts. The
// returned error is non-nil only when the run was aborted by ctx; partial
// counts are still meaningful in that case.
func (s *BroadcastService) Broadcast(ctx context.Context, candidates []int64, send SendFunc) (success, failure int, err error) {
	batchSize := s.BatchSize
	if batchSize <= 0 {
		batchSize = 30
	}

	runID := uuid.NewString()
	log := s.Log.With().Str("broadcast_id", runID).Logger()

	eligible := make([]int64, 0, len(candidates))
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			return success, failure, err
		}
		st := s.Eligibility.Resolve(ctx, id)
		if s.Eligibility.Eligible(st) {
			eligible = append(eligible, id)
		}
	}
	log.Info().Int("candidates", len(candidates)).Int("eligible", len(eligible)).
		Msg("broadcast starting")

	every := rate.Every(s.Interval)
	if s.Interval <= 0 {
		every = rate.Inf
	}
	limiter := rate.NewLimiter(every, 1)

	for _, batch := range partition(eligible, batchSize) {
		if err := limiter.Wait(ctx); err != nil {
			return success, failure, err
		}
		for _, id := range batch {
			if err := ctx.Err(); err != nil {
				return success, failure, err
			}
			if err := send(ctx, id); err != nil {
				failure++
				broadcastSends.WithLabelValues("failed").Inc()
				log.Warn().Err(err).Int64("user_id", id).Msg("broadcast send failed")
				continue
			}
			success++
			broadcastSends.WithLabelValues("ok").Inc()
		}
	}

	log.Info().Int("success", success).Int("failure", failure).Msg("broadcast finished")
	return success, failure, nil
}

// partition splits ids into consecutive chunks of at most size elements.
// Order is preserved; the last chunk may be short.
func partition(ids []int64, size int) [][]int64 {
	if size <= 0 || len(ids) == 0 {
		return nil
	}
	chunks := make([][]int64, 0, (len(ids)+size-1)/size)
	for len(ids) > size {
		chunks = append(chunks, ids[:size])
		ids = ids[size:]
	}
	return append(chunks, ids)
}
