package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/i474232898/weather-watch-sync/internal/config"
	"github.com/i474232898/weather-watch-sync/internal/logging"
)

// Root command flags
var logLevel string

var rootCmd = &cobra.Command{
	Use:   "watchsync",
	Short: "Keep a watch face's weather in sync with the phone",
	Long: `watchsync pushes today's weather from the phone's local store to the watch.
Run a relay, then a phone and a watch pointed at it through RELAY_ADDR.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error); overrides LOG_LEVEL")

	rootCmd.AddCommand(newRelayCmd())
	rootCmd.AddCommand(newPhoneCmd())
	rootCmd.AddCommand(newWatchCmd())
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("watchsync failed")
		os.Exit(1)
	}
}

// setup loads the configuration and builds the logger.
func setup() (*config.AppConfig, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	level := cfg.LogLevel
	if logLevel != "" {
		level = logLevel
	}
	return cfg, logging.New(level), nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
