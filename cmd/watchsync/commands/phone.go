package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	httpapi "github.com/i474232898/weather-watch-sync/internal/api/http"
	"github.com/i474232898/weather-watch-sync/internal/metrics"
	"github.com/i474232898/weather-watch-sync/internal/phone"
	"github.com/i474232898/weather-watch-sync/internal/store"
	"github.com/i474232898/weather-watch-sync/internal/transport/socket"
	"github.com/i474232898/weather-watch-sync/internal/weather"
)

func newPhoneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "phone",
		Short: "Serve the local weather store and push it to the watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			loc, err := cfg.PhoneLocation()
			if err != nil {
				return err
			}

			st, err := store.Open(store.Options{
				Driver:     cfg.StoreDriver,
				Path:       cfg.StorePath,
				MaxHistory: cfg.StoreMaxHistory,
				MaxAge:     cfg.StoreMaxAge,
			}, logger)
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			m, err := metrics.New(reg)
			if err != nil {
				return err
			}

			// The publisher and the trigger listener never share a connection.
			publish := socket.NewClient(socket.ClientConfig{Addr: cfg.RelayAddr, DialTimeout: cfg.ConnectTimeout}, logger)
			trigger := socket.NewClient(socket.ClientConfig{Addr: cfg.RelayAddr, DialTimeout: cfg.ConnectTimeout}, logger)

			svc := phone.NewService(phone.ServiceConfig{
				Publish:      publish,
				Trigger:      trigger,
				Source:       st,
				Formatter:    weather.TemperatureFormatter{Units: cfg.Units},
				Location:     loc,
				Metrics:      m,
				SyncInterval: cfg.SyncInterval,
			}, logger)

			startCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
			err = svc.Start(startCtx)
			cancel()
			if err != nil {
				return err
			}
			defer svc.Stop()

			app := httpapi.NewApp("watchsync-phone")
			httpapi.RegisterPhoneRoutes(app, httpapi.PhoneDeps{
				Store:    st,
				Syncer:   svc,
				Location: loc,
				Gatherer: reg,
			})

			go func() {
				if err := app.Listen(":" + cfg.Port); err != nil {
					logger.Error().Err(err).Msg("fiber server stopped")
				}
			}()
			logger.Info().Str("port", cfg.Port).Str("location", loc.Key()).Msg("phone running")

			// Wait for termination signal
			ctx, stop := signalContext()
			defer stop()
			<-ctx.Done()

			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancelShutdown()
			if err := app.ShutdownWithContext(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("error during shutdown")
			}
			return nil
		},
	}
}
