package services

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestPredict_ValueRanges(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	svc := NewPredictionService(0, 3*time.Minute, loc, zerolog.Nop())
	base := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return base }

	for i := int64(1); i <= 200; i++ {
		p, err := svc.Predict(i)
		if err != nil {
			t.Fatalf("Predict(%d): %v", i, err)
		}
		if p.Coefficient < 2.50 || p.Coefficient > 4.50 {
			t.Fatalf("coefficient %v out of range", p.Coefficient)
		}
		max := p.Coefficient
		if max > 3.00 {
			max = 3.00
		}
		if p.Assurance < 1.50 || p.Assurance > max {
			t.Fatalf("assurance %v out of range (coef %v)", p.Assurance, p.Coefficient)
		}
		// 12:00 UTC is 17:30 IST; plus the 3 minute delay.
		if p.At != "17:33" {
			t.Fatalf("At = %q, want 17:33", p.At)
		}
	}
}

func TestPredict_CooldownBlocksAndReportsRemaining(t *testing.T) {
	svc := NewPredictionService(2*time.Minute, time.Minute, nil, zerolog.Nop())
	base := time.Now()
	svc.now = func() time.Time { return base }

	if _, err := svc.Predict(7); err != nil {
		t.Fatalf("first Predict: %v", err)
	}

	svc.now = func() time.Time { return base.Add(30 * time.Second) }
	_, err := svc.Predict(7)
	var cd *CooldownError
	if !errors.As(err, &cd) {
		t.Fatalf("err = %v, want *CooldownError", err)
	}
	if cd.Remaining != 90*time.Second {
		t.Fatalf("Remaining = %v, want 90s", cd.Remaining)
	}

	// A different user is unaffected.
	if _, err := svc.Predict(8); err != nil {
		t.Fatalf("other user blocked: %v", err)
	}
}

func TestPredict_CooldownExpires(t *testing.T) {
	svc := NewPredictionService(30*time.Millisecond, time.Minute, nil, zerolog.Nop())

	if _, err := svc.Predict(7); err != nil {
		t.Fatalf("first Predict: %v", err)
	}
	time.Sleep(60 * time.Millisecond)
	if _, err := svc.Predict(7); err != nil {
		t.Fatalf("Predict after cooldown: %v", err)
	}
}
