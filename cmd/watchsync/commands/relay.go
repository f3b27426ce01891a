package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-watch-sync/internal/transport/socket"
)

func newRelayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "relay",
		Short: "Carry the data channel between phone and watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			srv := socket.NewServer(cfg.RelayAddr, logger)
			if err := srv.Listen(); err != nil {
				return fmt.Errorf("relay listen: %w", err)
			}
			logger.Info().Str("addr", srv.Addr()).Msg("relay listening")

			ctx, stop := signalContext()
			defer stop()

			if err := srv.Serve(ctx); err != nil {
				return fmt.Errorf("relay: %w", err)
			}
			logger.Info().Msg("relay stopped")
			return nil
		},
	}
}
