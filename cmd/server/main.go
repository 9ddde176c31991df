package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oggyb/fashionjiok/internal/app"
	"github.com/oggyb/fashionjiok/internal/cache"
	"github.com/oggyb/fashionjiok/internal/config"
	"github.com/oggyb/fashionjiok/internal/db"
	"github.com/oggyb/fashionjiok/internal/logger"
	"github.com/oggyb/fashionjiok/internal/server"
	"github.com/oggyb/fashionjiok/internal/service/match"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	// Init DB
	database, err := db.NewDB(cfg, log)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		os.Exit(1)
	}

	appCtx := app.New(cfg, database, redisCache, log)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database, db.DefaultSeedOptions(), log); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	svcs := server.NewServices(appCtx)
	httpApp := server.NewHTTPServer(appCtx, svcs)
	grpcServer := server.NewGRPCServer(log, match.NewRegistrar(appCtx))

	errCh := make(chan error, 2)
	go func() {
		log.Info("starting HTTP server", "addr", cfg.HTTP.Host+":"+cfg.HTTP.Port)
		errCh <- server.ServeHTTP(cfg, httpApp)
	}()
	go func() {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		errCh <- server.ServeGRPC(cfg, grpcServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", "err", err)
			exitCode = 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := httpApp.ShutdownWithContext(ctx); err != nil {
		log.Error("http shutdown", "err", err)
	}
	cancel()
	grpcServer.GracefulStop()

	if err := appCtx.Close(); err != nil {
		log.Error("close dependencies", "err", err)
	}
	log.Info("shutdown complete")
	os.Exit(exitCode)
}
