package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	app_service "energy-trading-dashboard/internal/application/service"
	domain_service "energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/blockchain"
	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"
	"energy-trading-dashboard/internal/infrastructure/messaging"
	"energy-trading-dashboard/internal/infrastructure/telemetry"
	"energy-trading-dashboard/internal/presentation/dashboard"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard over HTTP",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	app := fx.New(
		fx.Supply(cfg),
		fx.Supply(log),
		fx.Supply(&cfg.NATS),
		fx.Supply(cfg.Telemetry),

		// Infrastructure providers
		fx.Provide(
			messaging.NewNATSPublisher,
			fx.Annotate(blockchain.NewWalletConnector, fx.As(new(domain_service.WalletConnector))),
			fx.Annotate(telemetry.NewFeed, fx.As(new(domain_service.TelemetryFeed))),
			newTradeEventPublisher,
		),

		// Application providers
		fx.Provide(
			fx.Annotate(app_service.NewMarketSyncService, fx.As(new(domain_service.MarketSync))),
		),

		// Presentation
		fx.Provide(dashboard.NewPresenter),

		// Lifecycle hooks
		fx.Invoke(startPublisher),
		fx.Invoke(startDashboardServer),

		fx.WithLogger(func() fxevent.Logger {
			return fxevent.NopLogger
		}),
	)

	ctx := context.Background()
	if err := app.Start(ctx); err != nil {
		log.Error("Failed to start application", zap.Error(err))
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down application...")

	stopCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Error("Failed to stop application gracefully", zap.Error(err))
		return err
	}

	log.Info("Application stopped successfully")
	return nil
}

// newTradeEventPublisher picks the NATS publisher when enabled
func newTradeEventPublisher(cfg *config.NATSConfig, publisher *messaging.NATSPublisher) domain_service.TradeEventPublisher {
	if !cfg.Enabled {
		return messaging.NopPublisher{}
	}
	return publisher
}

// startPublisher connects to NATS when the publisher is enabled
func startPublisher(lifecycle fx.Lifecycle, publisher *messaging.NATSPublisher) {
	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := publisher.Connect(ctx); err != nil {
				return fmt.Errorf("failed to connect to NATS: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return publisher.Disconnect()
		},
	})
}

// startDashboardServer serves the dashboard pages and API
func startDashboardServer(
	lifecycle fx.Lifecycle,
	cfg *config.Config,
	presenter *dashboard.Presenter,
	market domain_service.MarketSync,
	logger *logger.Logger,
) {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.HTTPPort),
		Handler: presenter.Handler(),
	}

	lifecycle.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("Starting dashboard server...", zap.Int("port", cfg.App.HTTPPort))

			ln, err := net.Listen("tcp", server.Addr)
			if err != nil {
				return fmt.Errorf("failed to listen on %s: %w", server.Addr, err)
			}

			go func() {
				if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
					logger.Error("Dashboard server error", zap.Error(err))
				}
			}()

			logger.Info("Dashboard server started successfully")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Stopping dashboard server...")
			market.Logout()
			return server.Shutdown(ctx)
		},
	})
}
