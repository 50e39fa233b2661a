package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookfair/internal/config"
	"bookfair/internal/http/handlers"
	applog "bookfair/internal/log"
	"bookfair/internal/repos"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "bookfair:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := applog.Init(cfg.AppEnv, cfg.LogFile); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer applog.Sync()
	log := applog.L()

	db, err := repos.OpenDB(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	app := handlers.NewApp(cfg, db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer stop()

	group, gCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("server.start", zap.String("port", cfg.Port), zap.String("db", cfg.DBDriver), zap.String("env", cfg.AppEnv))
		return app.Listen(":" + cfg.Port)
	})
	group.Go(func() error {
		<-gCtx.Done()
		log.Info("server.stop")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
