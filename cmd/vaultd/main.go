package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/vault-experiment/custody/config"
	"github.com/vault-experiment/custody/internal/api"
	"github.com/vault-experiment/custody/internal/deploy"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config/config.json", "Path to config.json")
	port := flag.Int("port", 0, "HTTP port (0 = use config.json)")
	storageDir := flag.String("storage-dir", "", "Directory for persistent state (empty = in-memory)")
	logLevel := flag.String("log-level", "", "Log level: trace, debug, info, warn, error")
	flag.Parse()

	// Environment variables override flags
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		*configPath = envPath
	}
	if envPort := os.Getenv("PORT"); envPort != "" {
		if p, err := strconv.Atoi(envPort); err == nil {
			*port = p
		}
	}
	if envDir := os.Getenv("STORAGE_DIR"); envDir != "" {
		*storageDir = envDir
	}
	if envLevel := os.Getenv("LOG_LEVEL"); envLevel != "" {
		*logLevel = envLevel
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		setupLogging(*logLevel)
		log.Warn("No usable config, using defaults", "path", *configPath, "err", err)
		cfg = config.Default()
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *storageDir != "" {
		cfg.StorageDir = *storageDir
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	setupLogging(cfg.LogLevel)

	sys, err := deploy.New(cfg, nil)
	if err != nil {
		log.Crit("Failed to deploy vault system", "err", err)
	}
	defer sys.Close()

	server := api.NewServer(sys)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(cfg.Port)
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Error("Server stopped", "err", err)
		os.Exit(1)
	}
}

func setupLogging(level string) {
	lvl := log.LevelInfo
	switch strings.ToLower(level) {
	case "trace":
		lvl = log.LevelTrace
	case "debug":
		lvl = log.LevelDebug
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	}
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, true)))
}
