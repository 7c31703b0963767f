package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yourusername/mc-instance-manager/internal/api"
	"github.com/yourusername/mc-instance-manager/internal/backup"
	"github.com/yourusername/mc-instance-manager/internal/config"
	"github.com/yourusername/mc-instance-manager/internal/database"
	"github.com/yourusername/mc-instance-manager/internal/events"
	"github.com/yourusername/mc-instance-manager/internal/hooks"
	"github.com/yourusername/mc-instance-manager/internal/instance"
	"github.com/yourusername/mc-instance-manager/internal/logging"
	"github.com/yourusername/mc-instance-manager/internal/metrics"
	"github.com/yourusername/mc-instance-manager/internal/ports"
	"github.com/yourusername/mc-instance-manager/internal/scheduler"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.Init(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logging.Close()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// One bus and one port coordinator serve every instance.
	bus := events.NewBus()
	coordinator := ports.NewCoordinator()

	// Persist every published event as history.
	recorderDone := make(chan struct{})
	go func() {
		db.RecordFromBus(bus)
		close(recorderDone)
	}()

	manager := instance.NewManager(cfg, bus, coordinator, db, hooks.ScriptRunner{})
	if err := manager.Restore(); err != nil {
		log.Fatalf("Failed to restore instances: %v", err)
	}

	var sched *scheduler.Scheduler
	if cfg.Scheduler.Enabled {
		sched = scheduler.New()
		for _, sup := range manager.List() {
			if err := sched.Register(sup); err != nil {
				logger.Warn("invalid restart schedule", "instance", sup.Name(), "error", err)
			}
		}
		sched.Start()
		defer sched.Stop()
	}

	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(manager, db,
			time.Duration(cfg.Metrics.IntervalSeconds)*time.Second,
			time.Duration(cfg.Metrics.RetentionDays)*24*time.Hour)
		collector.Start()
		defer collector.Stop()
	}

	var backups *backup.Manager
	if cfg.Backup.Enabled {
		dest, err := backup.NewDestination(cfg.Backup.Destination)
		if err != nil {
			log.Fatalf("Failed to set up backup destination: %v", err)
		}
		backups = backup.NewManager(dest, cfg.Backup.RetentionCount)
	}

	router := api.SetupRouter(cfg, manager, bus, db, sched, backups)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	// Stop running instances gracefully, then close the bus so the event
	// recorder drains and exits.
	manager.StopAll(events.System())
	bus.Close()
	select {
	case <-recorderDone:
	case <-time.After(10 * time.Second):
		logger.Warn("event recorder did not drain in time")
	}

	logger.Info("shutdown complete")
}
