// Package services – PredictionService
//
// This file generates the prediction payload handed to eligible users: a
// target time a fixed delay ahead in the configured zone, a coefficient, and
// a lower "assurance" coefficient capped below it. The numbers are
// entertainment output, not a model; what matters is the cooldown contract
// and the value ranges.
package services

import (
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"github.com/luckyjet/go-prediction-backend/internal/cache"
)

// Prediction is one generated prediction.
type Prediction struct {
	// At is the local target time, formatted HH:MM.
	At string
	// Coefficient is the headline multiplier, in [2.50, 4.50].
	Coefficient float64
	// Assurance is the safe multiplier, in [1.50, min(Coefficient, 3.00)].
	Assurance float64
}

// PredictionService hands out predictions under a per-user cooldown. The
// cooldown is the TTL of the Cooldowns cache: an entry present means the
// user must wait.
type PredictionService struct {
	// Cooldowns maps user id to the time their last prediction was issued.
	// Construct with the cooldown duration as the cache TTL.
	Cooldowns *cache.Cache[int64, time.Time]

	// Cooldown mirrors the cache TTL; used to compute the remaining wait.
	Cooldown time.Duration
	// Delay is how far ahead the target time lies.
	Delay time.Duration
	// Location is the zone the target time is rendered in.
	Location *time.Location

	Log zerolog.Logger

	now func() time.Time
}

// NewPredictionService wires a service with the given cooldown and delay.
// loc may be nil, in which case UTC is used.
func NewPredictionService(cooldown, delay time.Duration, loc *time.Location, log zerolog.Logger) *PredictionService {
	if loc == nil {
		loc = time.UTC
	}
	return &PredictionService{
		Cooldowns: cache.New[int64, time.Time](100_000, cooldown),
		Cooldown:  cooldown,
		Delay:     delay,
		Location:  loc,
		Log:       log,
		now:       time.Now,
	}
}

// Predict returns a prediction for userID, or a *CooldownError carrying the
// remaining wait when the user asked again too soon.
func (s *PredictionService) Predict(userID int64) (Prediction, error) {
	now := s.now()
	if issued, ok := s.Cooldowns.Get(userID); ok {
		remaining := s.Cooldown - now.Sub(issued)
		if remaining < 0 {
			remaining = 0
		}
		return Prediction{}, &CooldownError{Remaining: remaining}
	}
	s.Cooldowns.Set(userID, now)

	coef := round2(2.50 + rand.Float64()*2.00)
	safeMax := math.Min(coef, 3.00)
	safe := round2(1.50 + rand.Float64()*(safeMax-1.50))

	p := Prediction{
		At:          now.In(s.Location).Add(s.Delay).Format("15:04"),
		Coefficient: coef,
		Assurance:   safe,
	}
	s.Log.Debug().Int64("user_id", userID).Float64("coefficient", p.Coefficient).
		Msg("prediction issued")
	return p, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
