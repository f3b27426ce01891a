package phone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/scheduler"
	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

// ErrServiceStopped is returned by Start after Stop.
var ErrServiceStopped = errors.New("phone sync service stopped")

// BackoffConfig controls how fast a lost trigger connection is retried.
type BackoffConfig struct {
	InitialInterval time.Duration // defaults to 1s
	MaxInterval     time.Duration // defaults to 1m
}

// delay is InitialInterval doubled per attempt, capped at MaxInterval.
func (b BackoffConfig) delay(attempt int) time.Duration {
	d := b.InitialInterval
	for i := 0; i < attempt && d < b.MaxInterval; i++ {
		d *= 2
	}
	if d > b.MaxInterval {
		d = b.MaxInterval
	}
	return d
}

// ServiceConfig wires a Service. Publish and Trigger must be distinct
// transports; each owns its own connection.
type ServiceConfig struct {
	Publish   transport.Transport
	Trigger   transport.Transport
	Source    weather.Source
	Formatter weather.Formatter
	Location  weather.Location
	Metrics   *metrics.Metrics

	// SyncInterval schedules periodic pushes; zero disables them.
	SyncInterval time.Duration

	// Reconnect paces retries when the trigger connection drops. It only
	// applies to transports implementing transport.ConnectionWatcher.
	Reconnect BackoffConfig
}

// Service is the phone side of the sync protocol. Syncs run one at a time on
// a dedicated worker. A Service runs once: Start after Stop fails.
type Service struct {
	publisher *Publisher
	publish   transport.Transport
	trigger   transport.Transport
	listener  *TriggerListener
	worker    *Worker
	scheduler *scheduler.Scheduler
	backoff   BackoffConfig
	log       zerolog.Logger

	// ctx is cancelled by Stop and bounds reconnect attempts.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	remove       func()
	removeLost   func()
	stopped      bool
	reconnecting bool
}

// NewService creates a Service. Nothing runs until Start.
func NewService(cfg ServiceConfig, log zerolog.Logger) *Service {
	backoff := cfg.Reconnect
	if backoff.InitialInterval <= 0 {
		backoff.InitialInterval = time.Second
	}
	if backoff.MaxInterval <= 0 {
		backoff.MaxInterval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		publish: cfg.Publish,
		trigger: cfg.Trigger,
		worker:  NewWorker(),
		backoff: backoff,
		log:     log.With().Str("component", "phone").Logger(),
		ctx:     ctx,
		cancel:  cancel,
	}
	s.publisher = NewPublisher(PublisherConfig{
		Transport: cfg.Publish,
		Source:    cfg.Source,
		Formatter: cfg.Formatter,
		Location:  cfg.Location,
		Metrics:   cfg.Metrics,
	}, log)
	s.listener = NewTriggerListener(s.RequestSync, cfg.Metrics, log)
	s.scheduler = scheduler.New(cfg.SyncInterval, s.RequestSync, log)
	return s
}

// Start subscribes to the watch's signals and starts periodic pushes. When
// the trigger connection later drops, it is retried with exponential backoff
// until it comes back or Stop is called.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrServiceStopped
	}
	if s.remove != nil {
		return nil
	}
	if err := s.trigger.Connect(ctx); err != nil {
		return fmt.Errorf("connect trigger transport: %w", err)
	}
	s.remove = s.trigger.AddListener(s.listener)
	if w, ok := s.trigger.(transport.ConnectionWatcher); ok {
		s.removeLost = w.NotifyLost(s.triggerLost)
	}

	if err := s.scheduler.Start(); err != nil {
		s.remove()
		s.remove = nil
		if s.removeLost != nil {
			s.removeLost()
			s.removeLost = nil
		}
		_ = s.trigger.Disconnect()
		return fmt.Errorf("start scheduler: %w", err)
	}
	s.log.Info().Msg("phone sync service started")
	return nil
}

// Stop unsubscribes, finishes queued syncs and disconnects both transports.
func (s *Service) Stop() {
	s.mu.Lock()
	s.stopped = true
	remove, removeLost := s.remove, s.removeLost
	s.remove, s.removeLost = nil, nil
	s.mu.Unlock()

	s.cancel()
	if removeLost != nil {
		removeLost()
	}
	s.wg.Wait()

	s.scheduler.Stop()
	if remove != nil {
		remove()
	}
	s.worker.Close()

	if err := s.trigger.Disconnect(); err != nil {
		s.log.Warn().Err(err).Msg("disconnect trigger transport")
	}
	if err := s.publish.Disconnect(); err != nil {
		s.log.Warn().Err(err).Msg("disconnect publish transport")
	}
	s.log.Info().Msg("phone sync service stopped")
}

// triggerLost starts the reconnect loop unless one is already running.
func (s *Service) triggerLost(err error) {
	s.mu.Lock()
	if s.stopped || s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.wg.Add(1)
	s.mu.Unlock()

	s.log.Warn().Err(err).Msg("trigger transport lost, reconnecting")
	go s.reconnectTrigger()
}

func (s *Service) reconnectTrigger() {
	defer s.wg.Done()

	for attempt := 0; ; attempt++ {
		timer := time.NewTimer(s.backoff.delay(attempt))
		select {
		case <-s.ctx.Done():
			timer.Stop()
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			return
		case <-timer.C:
		}

		if err := s.trigger.Connect(s.ctx); err != nil {
			s.log.Debug().Err(err).Int("attempt", attempt+1).Msg("trigger reconnect failed")
			continue
		}

		// A drop right after Connect is ignored by triggerLost while
		// reconnecting is set, so check again before leaving the loop.
		s.mu.Lock()
		if !s.trigger.IsConnected() {
			s.mu.Unlock()
			continue
		}
		s.reconnecting = false
		s.mu.Unlock()

		s.log.Info().Int("attempt", attempt+1).Msg("trigger transport reconnected")
		// The watch may have asked while the phone was away.
		s.RequestSync()
		return
	}
}

// RequestSync queues one push. It reports false after Stop.
func (s *Service) RequestSync() bool {
	return s.worker.Submit(s.runSync)
}

func (s *Service) runSync() {
	if _, err := s.publisher.Sync(context.Background()); err != nil {
		if errors.Is(err, ErrConnectionUnavailable) {
			s.log.Warn().Err(err).Msg("weather push skipped")
			return
		}
		s.log.Error().Err(err).Msg("weather push failed")
	}
}
