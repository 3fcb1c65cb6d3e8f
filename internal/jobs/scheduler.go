package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"dormhub/api/internal/repository"
)

type Scheduler struct {
	cron         *cron.Cron
	sessions     *repository.SessionRepository
	laundry      *repository.LaundryRepository
	applications *repository.ApplicationRepository
	log          zerolog.Logger
}

func NewScheduler(
	sessions *repository.SessionRepository,
	laundry *repository.LaundryRepository,
	applications *repository.ApplicationRepository,
	log zerolog.Logger,
) *Scheduler {
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		sessions:     sessions,
		laundry:      laundry,
		applications: applications,
		log:          log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 0 * * *", s.runNightly); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("0 0 */1 * * *", s.purgeExpiredSessions); err != nil { // hourly
		return err
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() context.CancelFunc {
	_, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	go func() {
		s.cron.Stop()
		cancel()
	}()
	return cancel
}

// runNightly clears yesterday's laundry board and rejects applications
// whose day passed while still undecided.
func (s *Scheduler) runNightly() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	today := time.Now().Truncate(24 * time.Hour)

	if n, err := s.laundry.DeleteBefore(ctx, today); err != nil {
		s.log.Error().Err(err).Msg("laundry cleanup failed")
	} else if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("laundry reservations cleared")
	}

	if n, err := s.applications.RejectStalePending(ctx, today); err != nil {
		s.log.Error().Err(err).Msg("stale application sweep failed")
	} else if n > 0 {
		s.log.Info().Int64("rejected", n).Msg("stale applications rejected")
	}
}

func (s *Scheduler) purgeExpiredSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n, err := s.sessions.DeleteExpired(ctx); err != nil {
		s.log.Error().Err(err).Msg("expired session purge failed")
	} else if n > 0 {
		s.log.Info().Int64("deleted", n).Msg("expired sessions purged")
	}
}
