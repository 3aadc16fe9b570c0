package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/thaitruongdao01-afk/saintpaul/api/routes"
	"github.com/thaitruongdao01-afk/saintpaul/internal/backend"
	"github.com/thaitruongdao01-afk/saintpaul/internal/preferences"
	"github.com/thaitruongdao01-afk/saintpaul/internal/session"
	"github.com/thaitruongdao01-afk/saintpaul/internal/views"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/config"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/db"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/env"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/instance"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/logger"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/metrics"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/migrate"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/redis"
	"github.com/thaitruongdao01-afk/saintpaul/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.URL != "" || cfg.Redis.Address != "" {
		redisClient, err = redis.New(ctx, cfg.Redis, cfg.Storage.Namespace, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
	}

	var dbClient *db.Client
	if cfg.Storage.Normalized() == config.StorageDriverSQL {
		dbClient, err = db.New(ctx, cfg.DB, logg)
		if err != nil {
			return err
		}
		closers = append(closers, dbClient.Close)

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			return err
		}
	}

	backendStore, err := storage.Open(ctx, cfg.Storage, storage.Deps{Redis: redisClient, DB: dbClient}, logg)
	if err != nil {
		return err
	}
	closers = append(closers, backendStore.Close)

	api, err := backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.Timeout))
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	sessions := session.NewRegistry(backendStore, api, logg, session.WithMetrics(metrics.NewSessionMetrics(reg)))
	viewReg := views.NewRegistry(api,
		views.WithLogger(logg),
		views.WithMetrics(metrics.NewViewMetrics(reg)),
		views.WithListConfig(cfg.Lists),
	)
	prefs := preferences.NewRegistry(backendStore, logg)
	sessions.OnEnded(viewReg.DropSession)
	sessions.OnDropped(viewReg.DropSession)
	sessions.OnDropped(prefs.Drop)
	closers = append(closers, func() error {
		viewReg.Close()
		prefs.Close()
		sessions.Close()
		return nil
	})

	addr := ":" + env.Get("PORT", cfg.App.Port)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:      cfg,
			Logger:      logg,
			Storage:     backendStore,
			Redis:       redisClient,
			Sessions:    sessions,
			Views:       viewReg,
			Preferences: prefs,
			Users:       api,
			Gatherer:    reg,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
		"storage":  cfg.Storage.Normalized(),
	})
	logg.Info(logCtx, "starting api server")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		idle := cfg.Session.EvictAfter()
		sessions.RunSweeper(gctx, sweepInterval(idle), idle)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logg.Info(logCtx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func sweepInterval(idle time.Duration) time.Duration {
	if interval := idle / 4; interval >= time.Second {
		return min(interval, 5*time.Minute)
	}
	return time.Second
}
