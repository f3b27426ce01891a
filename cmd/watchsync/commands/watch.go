package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-watch-sync/internal/api/http"
	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/transport/socket"
	"github.com/i474232898/weather-watch-sync/internal/watch"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Run the watch side and expose its display state",
		Long: `Connects to the phone through the relay, asks for a weather push and keeps
the display state current. SIGHUP deactivates and activates again. While
disconnected, activation is retried every CONNECT_TIMEOUT.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}

			client := socket.NewClient(socket.ClientConfig{Addr: cfg.RelayAddr, DialTimeout: cfg.ConnectTimeout}, logger)
			listener := watch.NewListener(client, weather.ConditionIcons{}, m, logger)

			ctx, stop := signalContext()
			defer stop()

			go func() {
				for {
					select {
					case <-ctx.Done():
						return
					case ds := <-listener.Updates():
						logger.Info().
							Str("icon", string(ds.Icon)).
							Str("max", ds.MaxTemperature).
							Str("min", ds.MinTemperature).
							Msg("display refreshed")
					}
				}
			}()

			activate := func() {
				actx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
				defer cancel()
				listener.Activate(actx)
			}
			activate()
			defer listener.Deactivate()

			app := httpapi.NewApp("watchsync-watch")
			httpapi.RegisterWatchRoutes(app, listener, reg)
			go func() {
				if err := app.Listen(":" + cfg.WatchPort); err != nil {
					logger.Error().Err(err).Msg("fiber server stopped")
				}
			}()
			logger.Info().Str("port", cfg.WatchPort).Msg("watch running")

			hup := make(chan os.Signal, 1)
			signal.Notify(hup, syscall.SIGHUP)
			defer signal.Stop(hup)

			retry := time.NewTicker(cfg.ConnectTimeout)
			defer retry.Stop()

		loop:
			for {
				select {
				case <-ctx.Done():
					break loop
				case <-hup:
					listener.Deactivate()
					activate()
				case <-retry.C:
					if listener.State() == watch.Disconnected {
						activate()
					}
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error during shutdown")
			}
			return nil
		},
	}
}
