package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/wfunc/tetris/config"
	"github.com/wfunc/tetris/logger"
	"github.com/wfunc/tetris/monitor"
	"github.com/wfunc/tetris/persistence"
	"github.com/wfunc/tetris/server"
	"github.com/wfunc/tetris/timer"
)

func main() {
	configPath := flag.String("config", ".", "directory holding config.yaml")
	flag.Parse()

	// Initialize logger at info until the configured level is known
	if err := logger.Init(""); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		logger.Log.Fatalf("Invalid log level %q: %v", cfg.Log.Level, err)
	}

	// Initialize Database
	db, err := persistence.NewDatabase(cfg.Database)
	if err != nil {
		logger.Log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Log.Infof("Database %q ready.", cfg.Database.Driver)

	timers := timer.NewTimerManager(cfg.Timer.Resolution)
	defer timers.Stop()

	mon := monitor.NewMonitor("tetris")
	if cfg.Server.MetricsAddress != "" {
		mon.StartServer(cfg.Server.MetricsAddress)
		defer mon.Stop()
	}

	// Initialize Game Server
	gameServer, err := server.NewGameServer(cfg, db, timers, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to create server: %v", err)
	}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Log.Info("Shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := gameServer.Shutdown(ctx); err != nil {
			logger.Log.Errorf("Shutdown error: %v", err)
		}
	}()

	// Start Server
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
