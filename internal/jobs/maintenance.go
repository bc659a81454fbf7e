// Package jobs runs the background schedules: the periodic connection pool
// health check and the optional external uptime ping.
package jobs

import (
	"context"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/luckyjet/go-prediction-backend/internal/storage"
)

// Scheduler owns the cron instance and the jobs registered on it.
type Scheduler struct {
	Pool *storage.Pool
	// UptimeURL, when non-empty, is fetched every five minutes so an
	// external monitor sees the process alive.
	UptimeURL string
	Log       zerolog.Logger

	cron   *cron.Cron
	client *http.Client
}

// Start registers the schedules and launches the cron loop. The pool health
// check runs every five minutes; the uptime ping only when configured.
func (s *Scheduler) Start() error {
	s.cron = cron.New()
	s.client = &http.Client{Timeout: 5 * time.Second}

	if _, err := s.cron.AddFunc("@every 5m", s.maintainPool); err != nil {
		return err
	}
	if s.UptimeURL != "" {
		if _, err := s.cron.AddFunc("@every 5m", s.pingUptime); err != nil {
			return err
		}
	}

	s.cron.Start()
	s.Log.Info().Bool("uptime_ping", s.UptimeURL != "").Msg("background scheduler started")
	return nil
}

// Stop halts the schedules and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Scheduler) maintainPool() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Pool.Maintain(ctx)
}

func (s *Scheduler) pingUptime() {
	resp, err := s.client.Get(s.UptimeURL)
	if err != nil {
		s.Log.Warn().Err(err).Msg("uptime ping failed")
		return
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 400 {
		s.Log.Warn().Int("status", resp.StatusCode).Msg("uptime ping rejected")
	}
}
