package phone

import (
	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/wire"
)

// TriggerListener starts a sync for every /initial item the watch writes.
type TriggerListener struct {
	requestSync func() bool
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// NewTriggerListener creates a TriggerListener that calls requestSync once
// per signal.
func NewTriggerListener(requestSync func() bool, m *metrics.Metrics, log zerolog.Logger) *TriggerListener {
	return &TriggerListener{
		requestSync: requestSync,
		metrics:     m,
		log:         log.With().Str("component", "trigger").Logger(),
	}
}

// OnDataChanged implements transport.Listener. Signals are not
// deduplicated: two in one batch start two syncs.
func (l *TriggerListener) OnDataChanged(events []transport.Event) {
	for _, ev := range events {
		if ev.Kind != transport.EventChanged || ev.Path != wire.InitialPath {
			continue
		}
		l.metrics.Trigger()
		if !l.requestSync() {
			l.log.Warn().Str("source", ev.Source).Msg("sync request dropped, worker closed")
			continue
		}
		l.log.Debug().Str("source", ev.Source).Msg("watch asked for weather")
	}
}
