package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog"
)

// Scheduler periodically requests a weather push.
type Scheduler struct {
	scheduler *gocron.Scheduler
	interval  time.Duration
	job       func() bool
	log       zerolog.Logger
}

// New creates a Scheduler that calls job every interval. An interval of zero
// or less disables it.
func New(interval time.Duration, job func() bool, log zerolog.Logger) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	return &Scheduler{
		scheduler: s,
		interval:  interval,
		job:       job,
		log:       log.With().Str("component", "scheduler").Logger(),
	}
}

// Start schedules the periodic job and starts the underlying scheduler. The
// first run happens immediately.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		s.log.Info().Msg("periodic push disabled")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		if !s.job() {
			s.log.Warn().Msg("periodic push not queued")
			return
		}
		s.log.Debug().Msg("periodic push queued")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil && s.scheduler.IsRunning() {
		s.scheduler.Stop()
	}
}
