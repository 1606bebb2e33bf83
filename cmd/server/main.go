package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/lot-auction-backend/internal/archive"
	"github.com/DoyleJ11/lot-auction-backend/internal/broker"
	"github.com/DoyleJ11/lot-auction-backend/internal/config"
	"github.com/DoyleJ11/lot-auction-backend/internal/httpapi"
	"github.com/DoyleJ11/lot-auction-backend/internal/hub"
	"github.com/DoyleJ11/lot-auction-backend/internal/lobby"
	"github.com/DoyleJ11/lot-auction-backend/internal/logging"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	if err := run(cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks []lobby.Sink
	deps := httpapi.Deps{
		Logger:         logger,
		AdminSecret:    cfg.AdminSecret,
		PublicBaseURL:  cfg.PublicBaseURL,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	if cfg.DatabaseURL != "" {
		store, err := archive.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
		deps.Results = store
		logger.Info("archiving lot results to postgres")
	}
	if cfg.NATSURL != "" {
		pub, err := broker.Connect(cfg.NATSURL, logger)
		if err != nil {
			return err
		}
		defer pub.Close()
		sinks = append(sinks, pub)
		logger.Info("publishing room events to NATS", zap.String("url", cfg.NATSURL))
	}
	if cfg.AdminSecret == "" {
		logger.Warn("ADMIN_SECRET is not set, roster upload is disabled")
	}

	h := hub.NewHub(ctx, hub.Config{
		Lobby: lobby.Config{
			TickInterval: cfg.TickInterval,
			Logger:       logger,
			Sinks:        sinks,
		},
		Settings: cfg.Settings,
	})
	deps.Hub = h

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpapi.SetupRoutes(deps),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)

		select {
		case h.Inbox() <- hub.ShutdownHub{}:
		case <-shutdownCtx.Done():
		}
		return err
	})
	return g.Wait()
}
