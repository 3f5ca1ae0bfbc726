package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron"
	"tailscale.com/tsnet"

	"github.com/claude/formcoach/internal/config"
	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/server"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/training"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (optional)")
	migrateOnly := flag.Bool("migrate-only", false, "run journal migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("FormCoach starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	// Analysis journal is optional
	var (
		journal training.Journal
		history server.History
	)
	if cfg.Database.Enabled() {
		dsn := cfg.Database.DSN()
		if err := storage.RunMigrations(dsn, "migrations"); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("migrations applied")

		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}

		db, err := storage.New(ctx, dsn)
		if err != nil {
			log.Error("failed to connect database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		journal, history = db, db
		log.Info("analysis journal enabled")
	} else if *migrateOnly {
		log.Error("migrate-only requires a database")
		os.Exit(1)
	}

	client := fitness.NewClient(cfg.Backend.URL, cfg.Backend.Timeout, log)
	sessions := training.NewManager(client, training.Options{
		PollInterval:     cfg.Training.PollInterval,
		ProgressStep:     cfg.Training.ProgressStep,
		ProgressInterval: cfg.Training.ProgressInterval,
		Journal:          journal,
	}, cfg.Training.SessionTTL, log)

	// Expire sessions whose page went away without closing them
	sweeper := cron.New()
	if cfg.Training.SweepSchedule != "" && cfg.Training.SessionTTL > 0 {
		err := sweeper.AddFunc(cfg.Training.SweepSchedule, func() {
			sessions.Sweep(ctx, time.Now())
		})
		if err != nil {
			log.Error("invalid sweep schedule", "error", err)
			os.Exit(1)
		}
		sweeper.Start()
	}

	srv, err := server.New(client, sessions, history, log)
	if err != nil {
		log.Error("failed to create server", "error", err)
		os.Exit(1)
	}

	// Start server on tsnet or plain HTTP
	var listener net.Listener
	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr, "backend", cfg.Backend.URL)
	}

	httpSrv := &http.Server{Handler: srv}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)

	sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	// Closing sessions stops any live stream and ends open SSE streams.
	sessions.CloseAll(shutdownCtx)
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}
