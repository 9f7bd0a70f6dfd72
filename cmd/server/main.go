package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"lanes/internal/config"
	"lanes/internal/game"
	"lanes/internal/pubsub"
	"lanes/internal/server"
	"lanes/internal/session"
	"lanes/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}
	log, err := cfg.Logger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	registry := game.DefaultRegistry()
	if cfg.RulesetFile != "" {
		if err := config.LoadRulesets(cfg.RulesetFile, registry); err != nil {
			return err
		}
	}

	var pub pubsub.Publisher = pubsub.Nop{}
	if cfg.NATSURL != "" {
		nc, err := pubsub.Connect(cfg.NATSURL, log)
		if err != nil {
			return err
		}
		pub = nc
	}
	defer pub.Close()

	mgr := session.NewManager(registry, store,
		session.WithLogger(log),
		session.WithPublisher(pub),
		session.WithGracePeriod(cfg.GracePeriod),
		session.WithTurnTimeout(cfg.TurnTimeout),
	)
	if err := mgr.Restore(); err != nil {
		log.Warn("restore sessions", zap.Error(err))
	}
	go mgr.CleanupLoop(ctx, cfg.CleanupInterval, cfg.SessionMaxAge)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.New(registry, mgr, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
