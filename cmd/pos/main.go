package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/Spok95/gelato-pos/internal/config"
	"github.com/Spok95/gelato-pos/internal/domain/catalog"
	"github.com/Spok95/gelato-pos/internal/domain/inventory"
	"github.com/Spok95/gelato-pos/internal/domain/sales"
	"github.com/Spok95/gelato-pos/internal/domain/syncqueue"
	"github.com/Spok95/gelato-pos/internal/infra/db"
	httpx "github.com/Spok95/gelato-pos/internal/infra/http"
	"github.com/Spok95/gelato-pos/internal/infra/logger"
	"github.com/Spok95/gelato-pos/internal/infra/metrics"
	"github.com/Spok95/gelato-pos/internal/infra/remote"
	"github.com/Spok95/gelato-pos/internal/netmon"
	syncsvc "github.com/Spok95/gelato-pos/internal/sync"
)

func main() {
	cfg, err := config.Load("config/example.yaml")
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	// без локальной базы офлайн-режим невозможен — это фатально
	sqlDB, err := db.Open(cfg.SQLite.Path)
	if err != nil {
		log.Error("local store unavailable", "err", err)
		return
	}
	defer func() { _ = sqlDB.Close() }()

	if err := db.Migrate(sqlDB); err != nil {
		log.Error("migrations failed", "err", err)
		return
	}
	log.Info("migrations applied", "path", cfg.SQLite.Path)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalogRepo := catalog.NewRepo(sqlDB)
	salesRepo := sales.NewRepo(sqlDB)
	inventoryRepo := inventory.NewRepo(sqlDB)
	queueRepo := syncqueue.NewRepo(sqlDB)

	remoteClient := remote.New(cfg.Remote.BaseURL, cfg.Remote.Token, cfg.Remote.CallTimeout)

	probeURL := cfg.Network.ProbeURL
	if probeURL == "" {
		probeURL = cfg.Remote.BaseURL + "/health"
	}
	monitor := netmon.New(netmon.HTTPProbe(probeURL), cfg.Network.ProbeInterval, log)

	svc := syncsvc.NewService(log, catalogRepo, salesRepo, inventoryRepo, queueRepo, remoteClient, monitor)

	// вернулась сеть — сразу пробуем догнать сервер
	monitor.SetOnOnline(func() {
		res := svc.Sync(ctx, syncsvc.Options{})
		log.Info("auto sync", "success", res.Success, "synced", res.SyncedItems, "errors", len(res.Errors))
	})
	monitor.AddListener(func(online bool) {
		if online {
			metrics.NetworkOnline.Set(1)
		} else {
			metrics.NetworkOnline.Set(0)
		}
	})
	monitor.Start(ctx)

	api := httpx.NewAPI(log, svc, monitor, queueRepo, salesRepo, catalogRepo)
	srv := httpx.New(cfg.HTTP.Addr, cfg.Metrics.Enabled, api)
	go func() {
		if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
			log.Error("http server error", "err", err)
		}
	}()
	log.Info("HTTP server started", "addr", cfg.HTTP.Addr)

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("graceful shutdown complete")
}
