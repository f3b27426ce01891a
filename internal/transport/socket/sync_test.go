package socket_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-watch-sync/internal/phone"
	"github.com/i474232898/weather-watch-sync/internal/store"
	"github.com/i474232898/weather-watch-sync/internal/transport/socket"
	"github.com/i474232898/weather-watch-sync/internal/watch"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

var berlin = weather.Location{City: "Berlin", Country: "DE"}

// serveRelay starts a relay on addr and returns it with a func that shuts it
// down and waits for Serve to return.
func serveRelay(t *testing.T, addr string) (*socket.Server, func()) {
	t.Helper()

	srv := socket.NewServer(addr, zerolog.Nop())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = srv.Serve(ctx)
	}()
	return srv, func() {
		cancel()
		<-done
	}
}

func saveToday(t *testing.T, st store.Store, maxTemp float64) {
	t.Helper()
	require.NoError(t, st.SaveRecord(context.Background(), weather.Record{
		Location:      berlin,
		Date:          time.Now(),
		ConditionCode: 500,
		MaxTemp:       maxTemp,
		MinTemp:       maxTemp - 8,
	}))
}

func startPhone(t *testing.T, addr string, st store.Store) *phone.Service {
	t.Helper()

	client := func() *socket.Client {
		return socket.NewClient(socket.ClientConfig{
			Addr:           addr,
			DialTimeout:    time.Second,
			BreakerTimeout: 20 * time.Millisecond,
		}, zerolog.Nop())
	}
	svc := phone.NewService(phone.ServiceConfig{
		Publish:   client(),
		Trigger:   client(),
		Source:    st,
		Formatter: weather.TemperatureFormatter{Units: weather.UnitsMetric},
		Location:  berlin,
		Reconnect: phone.BackoffConfig{InitialInterval: 10 * time.Millisecond, MaxInterval: 50 * time.Millisecond},
	}, zerolog.Nop())
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Stop)
	return svc
}

func nextDisplay(t *testing.T, l *watch.Listener) watch.DisplayState {
	t.Helper()
	select {
	case ds := <-l.Updates():
		return ds
	case <-time.After(3 * time.Second):
		t.Fatal("watch received no weather")
		return watch.DisplayState{}
	}
}

func TestWatchActivatedRightAfterPhoneStarts(t *testing.T) {
	addr := "unix://" + filepath.Join(t.TempDir(), "relay.sock")
	_, stop := serveRelay(t, addr)
	defer stop()

	st := store.NewMemoryStore(0, 0)
	saveToday(t, st, 21)
	startPhone(t, addr, st)

	// No wait between the phone starting and the watch asking.
	wc := socket.NewClient(socket.ClientConfig{Addr: addr, NodeID: "watch"}, zerolog.Nop())
	l := watch.NewListener(wc, weather.ConditionIcons{}, nil, zerolog.Nop())
	l.Activate(context.Background())
	defer l.Deactivate()

	ds := nextDisplay(t, l)
	assert.Equal(t, "21°", ds.MaxTemperature)
	assert.Equal(t, "13°", ds.MinTemperature)
	assert.Equal(t, weather.ConditionRain, ds.Icon)
}

func TestSyncSurvivesRelayRestart(t *testing.T) {
	addr := "unix://" + filepath.Join(t.TempDir(), "relay.sock")
	_, stop := serveRelay(t, addr)

	st := store.NewMemoryStore(0, 0)
	saveToday(t, st, 21)
	startPhone(t, addr, st)

	wc := socket.NewClient(socket.ClientConfig{Addr: addr, NodeID: "watch"}, zerolog.Nop())
	l := watch.NewListener(wc, weather.ConditionIcons{}, nil, zerolog.Nop())
	l.Activate(context.Background())
	defer l.Deactivate()
	assert.Equal(t, "21°", nextDisplay(t, l).MaxTemperature)

	stop()
	require.Eventually(t, func() bool { return l.State() == watch.Disconnected }, 3*time.Second, 10*time.Millisecond)

	srv, stop := serveRelay(t, addr)
	defer stop()

	// The phone's trigger connection comes back on its own.
	require.Eventually(t, func() bool { return srv.Peers() >= 1 }, 5*time.Second, 10*time.Millisecond)

	saveToday(t, st, 25)
	l.Activate(context.Background())
	require.Equal(t, watch.Connected, l.State())

	require.Eventually(t, func() bool {
		select {
		case ds := <-l.Updates():
			return ds.MaxTemperature == "25°"
		default:
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)
}
