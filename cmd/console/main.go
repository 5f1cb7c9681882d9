// Package main runs the inventory console: a session-aware HTTP front end over the remote catalog API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "net/http/pprof"

	"github.com/abgdnv/inventory-console/internal/app"
	"github.com/abgdnv/inventory-console/internal/catalog"
	"github.com/abgdnv/inventory-console/internal/config"
	"github.com/abgdnv/inventory-console/internal/events"
	"github.com/abgdnv/inventory-console/internal/session"
	"github.com/abgdnv/inventory-console/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/inventory-console/pkg/config"
	"github.com/abgdnv/inventory-console/pkg/config/configloader"
	"github.com/abgdnv/inventory-console/pkg/messaging"
	"github.com/abgdnv/inventory-console/pkg/nats"
	"github.com/abgdnv/inventory-console/pkg/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName   = "console"
	catalogStream = "CATALOG"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, wires the remote API client, the token store and the event publisher,
// and starts the HTTP and pprof servers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[*config.Config](serviceName, config.Defaults())
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	logger := bootstrap.NewLogger(cfg.Log.Level)
	slog.SetDefault(logger)

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Telemetry.Enabled {
		tracerProvider, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			logger.Error("error creating tracer provider", slog.Any("error", err))
			return err
		}
		// gracefully shutdown tracer provider
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down tracer provider")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to shutdown tracer provider: %w", err)
			}
			return nil
		})
	}

	meterProvider, metricsHandler, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		return err
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			logger.Error("failed to shutdown meter provider", slog.Any("error", err))
		}
	}()

	api, err := catalog.New(cfg.API, cfg.Resilience.CircuitBreaker, logger)
	if err != nil {
		return fmt.Errorf("failed to create API client: %w", err)
	}

	tokens, closeTokens, err := newTokenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTokens()

	publisher, closePublisher, err := newPublisher(ctx, cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer closePublisher()
	notifier := events.NewNotifier(publisher, cfg.NATS.Subject, cfg.NATS.Timeout, logger)

	deps := app.SetupDependencies(cfg, api, tokens, notifier, metricsHandler, logger)
	httpServer := app.SetupHttpServer(deps, cfg)

	// Start the HTTP server
	g.Go(func() error {
		logger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		logger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Evict idle workspaces; closes every workspace on shutdown
	g.Go(func() error {
		err := deps.Registry.Run(gCtx)
		notifier.Wait()
		return err
	})

	// Start the pprof server if enabled
	pprofServer := &http.Server{
		Addr: cfg.PProf.Addr,
	}
	if cfg.PProf.Enabled {
		g.Go(func() error {
			logger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			logger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newTokenStore opens the configured token store. The returned func releases it.
func newTokenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (session.TokenStore, func(), error) {
	if cfg.Session.Store != pkgconfig.TokenStorePostgres {
		store, err := session.NewFileStore(cfg.Session.File)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open token file: %w", err)
		}
		logger.Info("Using file token store", slog.String("file", cfg.Session.File))
		return store, func() {}, nil
	}

	if err := session.Migrate(cfg.Database.URL); err != nil {
		return nil, nil, fmt.Errorf("failed to migrate token store: %w", err)
	}
	dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create database connection pool: %w", err)
	}
	logger.Info("Successfully connected to the database!")
	return session.NewPgStore(dbPool), dbPool.Close, nil
}

// newPublisher connects to NATS when catalog events are enabled; otherwise events are dropped.
func newPublisher(ctx context.Context, cfg pkgconfig.NATSConfig, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.Enabled {
		return messaging.NopPublisher{}, func() {}, nil
	}
	natsConn, err := nats.NewClient(cfg.Url, serviceName, cfg.Timeout)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create NATS connection: %w", err)
	}
	js, err := nats.NewJetStreamContext(natsConn)
	if err != nil {
		return nil, nil, err
	}
	if err := nats.EnsureStream(ctx, js, catalogStream, cfg.Subject); err != nil {
		natsConn.Close()
		return nil, nil, err
	}
	logger.Info("Publishing catalog events", slog.String("subject", cfg.Subject))
	closeConn := func() {
		if err := natsConn.Drain(); err != nil {
			logger.Error("failed to drain NATS connection", slog.Any("error", err))
		}
	}
	return nats.NewNatsPublisher(js), closeConn, nil
}
