package httpapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/i474232898/weather-watch-sync/internal/store"
	"github.com/i474232898/weather-watch-sync/internal/watch"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

var validate = validator.New()

// Syncer queues a weather push to the watch.
type Syncer interface {
	RequestSync() bool
}

// PhoneDeps are the collaborators of the phone API.
type PhoneDeps struct {
	Store    store.Store
	Syncer   Syncer
	Location weather.Location
	Gatherer prometheus.Gatherer
	Now      func() time.Time
}

// RegisterPhoneRoutes wires the phone's HTTP handlers into the Fiber app.
func RegisterPhoneRoutes(app *fiber.App, deps PhoneDeps) {
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	registerMetrics(app, deps.Gatherer)

	v1 := app.Group("/api/v1")

	v1.Get("/weather/today", func(c *fiber.Ctx) error {
		loc, err := parseLocationQuery(c, deps.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		rec, err := deps.Store.QueryLatest(c.UserContext(), loc, now())
		if err != nil {
			if errors.Is(err, weather.ErrNoData) {
				return fiber.NewError(fiber.StatusNotFound, "no weather data for today")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read weather data")
		}
		return c.JSON(rec)
	})

	v1.Post("/weather", func(c *fiber.Ctx) error {
		var body recordBody
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		rec, err := body.toRecord()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := deps.Store.SaveRecord(c.UserContext(), rec); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to save weather data")
		}

		// Fresh data for the tracked location goes straight to the watch.
		queued := false
		if rec.Location == deps.Location {
			queued = deps.Syncer.RequestSync()
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"record":     rec,
			"syncQueued": queued,
		})
	})

	v1.Post("/sync", func(c *fiber.Ctx) error {
		if !deps.Syncer.RequestSync() {
			return fiber.NewError(fiber.StatusServiceUnavailable, "sync service stopped")
		}
		return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"queued": true})
	})
}

// DisplaySource exposes the watch's display state.
type DisplaySource interface {
	Display() watch.DisplayState
	State() watch.State
}

// RegisterWatchRoutes wires the watch's HTTP handlers into the Fiber app.
// A nil gatherer leaves out /metrics.
func RegisterWatchRoutes(app *fiber.App, src DisplaySource, gatherer prometheus.Gatherer) {
	registerMetrics(app, gatherer)

	v1 := app.Group("/api/v1")

	v1.Get("/display", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"state":   src.State().String(),
			"display": src.Display(),
		})
	})
}

func registerMetrics(app *fiber.App, g prometheus.Gatherer) {
	if g == nil {
		return
	}
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(g, promhttp.HandlerOpts{})))
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	City    string `validate:"required"`
	Country string `validate:"required"`
}

func (l locationQuery) toLocation() weather.Location {
	return weather.Location{
		City:    l.City,
		Country: l.Country,
	}
}

// parseLocationQuery reads city and country, falling back to def when both
// are omitted.
func parseLocationQuery(c *fiber.Ctx, def weather.Location) (weather.Location, error) {
	var q locationQuery

	q.City = c.Query("city")
	q.Country = c.Query("country")
	if q.City == "" && q.Country == "" {
		return def, nil
	}

	if err := validate.Struct(q); err != nil {
		return weather.Location{}, err
	}

	return q.toLocation(), nil
}

// recordBody is the JSON body of POST /weather.
type recordBody struct {
	City             string   `json:"city" validate:"required"`
	Country          string   `json:"country" validate:"required"`
	Date             string   `json:"date" validate:"required"`
	ConditionCode    int      `json:"conditionCode" validate:"gte=0"`
	ShortDescription string   `json:"shortDescription"`
	MaxTemp          *float64 `json:"maxTemp" validate:"required"`
	MinTemp          *float64 `json:"minTemp" validate:"required"`
}

func (b recordBody) toRecord() (weather.Record, error) {
	date, err := parseDate(b.Date)
	if err != nil {
		return weather.Record{}, err
	}
	if *b.MinTemp > *b.MaxTemp {
		return weather.Record{}, errors.New("minTemp must not exceed maxTemp")
	}
	return weather.Record{
		Location:         weather.Location{City: b.City, Country: b.Country},
		Date:             weather.StartOfDay(date),
		ConditionCode:    b.ConditionCode,
		ShortDescription: b.ShortDescription,
		MaxTemp:          *b.MaxTemp,
		MinTemp:          *b.MinTemp,
	}, nil
}

// parseDate accepts either YYYY-MM-DD or RFC3339.
func parseDate(s string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, s); err == nil {
		return d, nil
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	return time.Time{}, errors.New("invalid date format; use YYYY-MM-DD or RFC3339")
}
