// Package watch keeps the weather shown on the watch in sync with the phone.
package watch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/weather"
	"github.com/i474232898/weather-watch-sync/internal/wire"
)

// State is the connection state of a Listener.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DisplayState is what the watch face shows. It starts with no icon and no
// temperatures.
type DisplayState struct {
	ConditionCode  int               `json:"conditionCode"`
	Icon           weather.Condition `json:"icon,omitempty"`
	HasIcon        bool              `json:"hasIcon"`
	MaxTemperature string            `json:"maxTemperature"`
	MinTemperature string            `json:"minTemperature"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

// Listener connects the watch to the phone while it is active, asks for a
// push on every connect and applies /weather items to the display state.
type Listener struct {
	transport transport.Transport
	icons     weather.IconResolver
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger

	// lifecycle serializes Activate and Deactivate.
	lifecycle sync.Mutex

	mu      sync.Mutex
	state   State
	display DisplayState
	remove  func()

	updates chan DisplayState
}

// NewListener creates a Disconnected Listener. When t reports lost
// connections, the Listener falls back to Disconnected on its own.
func NewListener(t transport.Transport, icons weather.IconResolver, m *metrics.Metrics, log zerolog.Logger) *Listener {
	l := &Listener{
		transport: t,
		icons:     icons,
		metrics:   m,
		now:       time.Now,
		log:       log.With().Str("component", "watch").Logger(),
		updates:   make(chan DisplayState, 1),
	}
	if w, ok := t.(transport.ConnectionWatcher); ok {
		w.NotifyLost(l.connectionLost)
	}
	return l
}

// Activate connects, subscribes and writes one /initial signal. A failed
// connect is logged and leaves the Listener Disconnected; it is not retried.
// Activating a Listener whose transport is still connected does nothing.
func (l *Listener) Activate(ctx context.Context) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	if l.State() == Connected {
		if l.transport.IsConnected() {
			return
		}
		l.reset()
	}
	l.setState(Connecting)

	if err := l.transport.Connect(ctx); err != nil {
		l.log.Warn().Err(err).Msg("could not connect to phone")
		l.setState(Disconnected)
		return
	}

	remove := l.transport.AddListener(l)
	l.mu.Lock()
	l.remove = remove
	l.state = Connected
	l.mu.Unlock()
	l.log.Info().Msg("connected to phone")

	res := l.transport.Put(ctx, transport.PutRequest{
		Path:   wire.InitialPath,
		Data:   wire.InitialSignal(l.now()),
		Urgent: true,
	})
	l.metrics.InitialSent()
	go func() {
		<-res.Done()
		if err := res.Err(); err != nil {
			l.log.Warn().Err(err).Msg("initial signal not delivered")
			return
		}
		l.log.Debug().Msg("initial signal delivered")
	}()
}

// Deactivate unsubscribes and disconnects. The display state is kept.
func (l *Listener) Deactivate() {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	l.mu.Lock()
	remove := l.remove
	l.remove = nil
	was := l.state
	l.state = Disconnected
	l.mu.Unlock()

	if was == Disconnected {
		return
	}
	if remove != nil {
		remove()
	}
	if err := l.transport.Disconnect(); err != nil {
		l.log.Warn().Err(err).Msg("disconnect")
	}
	l.log.Info().Msg("disconnected from phone")
}

// connectionLost moves a Connected Listener whose transport dropped back to
// Disconnected, so the next Activate connects again.
func (l *Listener) connectionLost(err error) {
	l.lifecycle.Lock()
	defer l.lifecycle.Unlock()

	// Already reconnected, or the loss belongs to an older connection.
	if l.State() != Connected || l.transport.IsConnected() {
		return
	}
	l.reset()
	l.log.Warn().Err(err).Msg("lost connection to phone")
}

// reset drops the subscription and marks the Listener Disconnected. The
// caller holds lifecycle.
func (l *Listener) reset() {
	l.mu.Lock()
	remove := l.remove
	l.remove = nil
	l.state = Disconnected
	l.mu.Unlock()

	if remove != nil {
		remove()
	}
}

// OnDataChanged implements transport.Listener.
func (l *Listener) OnDataChanged(events []transport.Event) {
	for _, ev := range events {
		if ev.Kind != transport.EventChanged || ev.Path != wire.WeatherPath {
			continue
		}
		l.apply(ev.Data)
	}
}

func (l *Listener) apply(data transport.DataMap) {
	p, hasCondition := wire.DecodeSyncPayload(data)

	l.mu.Lock()
	if hasCondition {
		l.display.ConditionCode = p.ConditionCode
		if icon, ok := l.icons.ResolveIcon(p.ConditionCode); ok {
			l.display.Icon = icon
			l.display.HasIcon = true
		}
	}
	l.display.MaxTemperature = p.MaxTemperature
	l.display.MinTemperature = p.MinTemperature
	l.display.UpdatedAt = l.now()
	ds := l.display
	l.mu.Unlock()

	l.metrics.PayloadReceived()
	l.log.Debug().
		Int("condition", ds.ConditionCode).
		Str("icon", string(ds.Icon)).
		Str("max", ds.MaxTemperature).
		Str("min", ds.MinTemperature).
		Msg("weather updated")
	l.publish(ds)
}

// publish replaces any unread update with ds.
func (l *Listener) publish(ds DisplayState) {
	for {
		select {
		case l.updates <- ds:
			return
		default:
		}
		select {
		case <-l.updates:
		default:
		}
	}
}

// Updates delivers the latest display state after each change. Only the
// newest unread value is kept.
func (l *Listener) Updates() <-chan DisplayState {
	return l.updates
}

// Display returns a copy of the current display state.
func (l *Listener) Display() DisplayState {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.display
}

// State returns the connection state.
func (l *Listener) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

func (l *Listener) setState(s State) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}
