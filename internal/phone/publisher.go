// Package phone pushes today's weather to the watch and answers the watch's
// requests for a fresh push.
package phone

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/weather"
	"github.com/i474232898/weather-watch-sync/internal/wire"
)

// ErrConnectionUnavailable is returned by Sync when the channel could not be
// connected. Nothing is written and the sync is not retried.
var ErrConnectionUnavailable = errors.New("connection unavailable")

// PublisherConfig holds the collaborators of a Publisher.
type PublisherConfig struct {
	Transport transport.Transport
	Source    weather.Source
	Formatter weather.Formatter
	Location  weather.Location
	Metrics   *metrics.Metrics
	// Now stamps snapshots; defaults to time.Now.
	Now func() time.Time
}

// Publisher reads today's weather from the local store and writes it to the
// watch under /weather.
type Publisher struct {
	transport transport.Transport
	source    weather.Source
	formatter weather.Formatter
	location  weather.Location
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger
}

// NewPublisher creates a Publisher.
func NewPublisher(cfg PublisherConfig, log zerolog.Logger) *Publisher {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Publisher{
		transport: cfg.Transport,
		source:    cfg.Source,
		formatter: cfg.Formatter,
		location:  cfg.Location,
		metrics:   cfg.Metrics,
		now:       now,
		log:       log.With().Str("component", "publisher").Logger(),
	}
}

// Sync pushes one snapshot. It returns (nil, nil) when the store has no
// record for today. The returned Result resolves when the channel accepts
// or rejects the write; callers may ignore it.
func (p *Publisher) Sync(ctx context.Context) (*transport.Result, error) {
	if !p.transport.IsConnected() {
		if err := p.transport.Connect(ctx); err != nil {
			p.metrics.Sync(metrics.SyncUnavailable)
			return nil, fmt.Errorf("%w: %v", ErrConnectionUnavailable, err)
		}
	}

	now := p.now()
	rec, err := p.source.QueryLatest(ctx, p.location, now)
	if errors.Is(err, weather.ErrNoData) {
		p.log.Debug().Str("location", p.location.Key()).Msg("no weather for today, nothing to push")
		p.metrics.Sync(metrics.SyncEmpty)
		return nil, nil
	}
	if err != nil {
		p.metrics.Sync(metrics.SyncFailed)
		return nil, fmt.Errorf("query weather for %s: %w", p.location.Key(), err)
	}

	snap := weather.Snapshot{
		ConditionCode:    rec.ConditionCode,
		ShortDescription: rec.ShortDescription,
		MaxTemperature:   p.formatter.FormatTemperature(rec.MaxTemp),
		MinTemperature:   p.formatter.FormatTemperature(rec.MinTemp),
		CapturedAt:       now,
	}

	res := p.transport.Put(ctx, transport.PutRequest{
		Path:   wire.WeatherPath,
		Data:   wire.PayloadFromSnapshot(snap).DataMap(),
		Urgent: true,
	})
	go p.logDelivery(res, snap)
	return res, nil
}

func (p *Publisher) logDelivery(res *transport.Result, snap weather.Snapshot) {
	<-res.Done()
	if err := res.Err(); err != nil {
		p.metrics.Sync(metrics.SyncFailed)
		p.log.Warn().Err(err).Msg("weather push not delivered")
		return
	}
	p.metrics.Sync(metrics.SyncSent)
	p.log.Info().
		Int("condition", snap.ConditionCode).
		Str("max", snap.MaxTemperature).
		Str("min", snap.MinTemperature).
		Msg("weather pushed")
}
