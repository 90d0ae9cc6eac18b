package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Enqueuer puts the periodic sweep task on the worker stream.
type Enqueuer interface {
	OTPSweep(ctx context.Context) error
}

type Scheduler struct {
	cron      *cron.Cron
	queue     Enqueuer
	sweepSpec string
	log       zerolog.Logger
}

func NewScheduler(queue Enqueuer, sweepSpec string, log zerolog.Logger) *Scheduler {
	c := cron.New(cron.WithSeconds())
	if sweepSpec == "" {
		sweepSpec = "0 * * * * *"
	}
	return &Scheduler{
		cron:      c,
		queue:     queue,
		sweepSpec: sweepSpec,
		log:       log,
	}
}

func (s *Scheduler) Start() error {
	if s.queue == nil {
		return nil
	}

	if _, err := s.cron.AddFunc(s.sweepSpec, s.enqueueSweep); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().Str("otp_sweep", s.sweepSpec).Msg("scheduler started")
	return nil
}

// Stop halts the cron and waits up to five seconds for a running job.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) enqueueSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.queue.OTPSweep(ctx); err != nil {
		s.log.Error().Err(err).Msg("enqueue otp sweep failed")
	}
}
