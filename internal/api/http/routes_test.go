package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/store"
	"github.com/i474232898/weather-watch-sync/internal/transport"
	"github.com/i474232898/weather-watch-sync/internal/transport/transporttest"
	"github.com/i474232898/weather-watch-sync/internal/watch"
	"github.com/i474232898/weather-watch-sync/internal/weather"
	"github.com/i474232898/weather-watch-sync/internal/wire"
)

var (
	paris = weather.Location{City: "Paris", Country: "FR"}
	noon  = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
)

type fakeSyncer struct {
	requests int
	stopped  bool
}

func (f *fakeSyncer) RequestSync() bool {
	if f.stopped {
		return false
	}
	f.requests++
	return true
}

func newPhoneApp(t *testing.T) (*fiber.App, *store.MemoryStore, *fakeSyncer) {
	t.Helper()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	m.Sync(metrics.SyncSent)

	st := store.NewMemoryStore(10, 0)
	syncer := &fakeSyncer{}
	app := NewApp("phone")
	RegisterPhoneRoutes(app, PhoneDeps{
		Store:    st,
		Syncer:   syncer,
		Location: paris,
		Gatherer: reg,
		Now:      func() time.Time { return noon },
	})
	return app, st, syncer
}

func do(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, string) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func TestHealth(t *testing.T) {
	app, _, _ := newPhoneApp(t)

	resp, body := do(t, app, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","service":"phone"}`, body)
}

func TestWeatherTodayNotFound(t *testing.T) {
	app, _, _ := newPhoneApp(t)

	resp, body := do(t, app, http.MethodGet, "/api/v1/weather/today", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Contains(t, body, `"error":true`)
}

func TestWeatherTodayValidation(t *testing.T) {
	app, _, _ := newPhoneApp(t)

	resp, _ := do(t, app, http.MethodGet, "/api/v1/weather/today?city=Paris", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostWeatherQueuesSync(t *testing.T) {
	app, st, syncer := newPhoneApp(t)

	resp, _ := do(t, app, http.MethodPost, "/api/v1/weather",
		`{"city":"Paris","country":"FR","date":"2024-06-01","conditionCode":500,"shortDescription":"rain","maxTemp":21.6,"minTemp":12.2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, syncer.requests)

	rec, err := st.QueryLatest(context.Background(), paris, noon)
	require.NoError(t, err)
	assert.Equal(t, 500, rec.ConditionCode)

	resp, body := do(t, app, http.MethodGet, "/api/v1/weather/today", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got weather.Record
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, 21.6, got.MaxTemp)

	// Another location is stored but not pushed.
	resp, _ = do(t, app, http.MethodPost, "/api/v1/weather",
		`{"city":"Lyon","country":"FR","date":"2024-06-01T08:00:00Z","conditionCode":800,"maxTemp":25,"minTemp":15}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, 1, syncer.requests)

	resp, _ = do(t, app, http.MethodGet, "/api/v1/weather/today?city=Lyon&country=FR", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestPostWeatherValidation(t *testing.T) {
	app, _, syncer := newPhoneApp(t)

	cases := map[string]string{
		"malformed":     `{"city":`,
		"missing city":  `{"country":"FR","date":"2024-06-01","maxTemp":1,"minTemp":0}`,
		"missing temps": `{"city":"Paris","country":"FR","date":"2024-06-01"}`,
		"bad date":      `{"city":"Paris","country":"FR","date":"June 1st","maxTemp":1,"minTemp":0}`,
		"min above max": `{"city":"Paris","country":"FR","date":"2024-06-01","maxTemp":1,"minTemp":5}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp, _ := do(t, app, http.MethodPost, "/api/v1/weather", body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
	assert.Zero(t, syncer.requests)
}

func TestPostSync(t *testing.T) {
	app, _, syncer := newPhoneApp(t)

	resp, _ := do(t, app, http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, syncer.requests)

	syncer.stopped = true
	resp, _ = do(t, app, http.MethodPost, "/api/v1/sync", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestMetricsEndpoint(t *testing.T) {
	app, _, _ := newPhoneApp(t)

	resp, body := do(t, app, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `watchsync_sync_total{result="sent"} 1`)
}

func TestWatchDisplay(t *testing.T) {
	tr := &transporttest.Fake{}
	l := watch.NewListener(tr, weather.ConditionIcons{}, nil, zerolog.Nop())
	app := NewApp("watch")
	RegisterWatchRoutes(app, l, nil)

	resp, body := do(t, app, http.MethodGet, "/api/v1/display", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"state":"disconnected"`)
	assert.Contains(t, body, `"hasIcon":false`)

	l.Activate(context.Background())
	tr.Emit(transport.Event{
		Path: wire.WeatherPath,
		Kind: transport.EventChanged,
		Data: wire.SyncPayload{ConditionCode: 801, MaxTemperature: "19°", MinTemperature: "9°"}.DataMap(),
	})

	resp, body = do(t, app, http.MethodGet, "/api/v1/display", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		State   string             `json:"state"`
		Display watch.DisplayState `json:"display"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	assert.Equal(t, "connected", got.State)
	assert.Equal(t, weather.ConditionLightClouds, got.Display.Icon)
	assert.Equal(t, "19°", got.Display.MaxTemperature)
}
