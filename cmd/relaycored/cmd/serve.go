package cmd

import (
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	stdcontext "context"

	"github.com/jmylchreest/relaycore/internal/channel"
	"github.com/jmylchreest/relaycore/internal/config"
	"github.com/jmylchreest/relaycore/internal/encoder"
	rhttp "github.com/jmylchreest/relaycore/internal/http"
	"github.com/jmylchreest/relaycore/internal/relaycore"
	"github.com/jmylchreest/relaycore/internal/relaylog"
	"github.com/spf13/cobra"
)

var (
	encoderPath string
	encoderArgs []string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the relay daemon's HTTP surface and live stream registry",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&encoderPath, "encoder-path", "ffmpeg", "encoder binary invoked per live stream")
	serveCmd.Flags().StringSliceVar(&encoderArgs, "encoder-args", nil, "arguments passed to the encoder binary")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := relaylog.New(cfg.Logging)
	logger.Info("starting relaycored", "address", cfg.Server.Address())

	channelProvider := channel.NewMemoryProvider()

	supervisorFactory := func(channelID, quality string) encoder.Supervisor {
		return &encoder.ProcessSupervisor{
			Name:          encoderPath,
			Args:          encoderArgs,
			OnAirFreeze:   cfg.RelayCore.OnAirFreezeTimeout.Duration(),
			StandbyFreeze: cfg.RelayCore.StandbyFreezeTimeout.Duration(),
			Checker:       encoder.GopsutilChecker{},
			Logger:        relaylog.WithComponent(logger, "encoder"),
		}
	}

	registry := relaycore.NewRegistry(cfg.RelayCore, logger, channelProvider, supervisorFactory, nil, nil)
	stopSweep := registry.StartSweep()
	defer stopSweep()

	handlers := &rhttp.Handlers{Registry: registry}
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handlers.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(stdcontext.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}

	return nil
}
