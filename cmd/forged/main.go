package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/eike-heimpel/forge/internal/config"
	"github.com/eike-heimpel/forge/internal/openrouter"
	"github.com/eike-heimpel/forge/internal/pipeline"
	"github.com/eike-heimpel/forge/internal/prompttest"
	"github.com/eike-heimpel/forge/internal/session"
	"github.com/eike-heimpel/forge/internal/storage"
	"github.com/eike-heimpel/forge/internal/web"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var Version = "dev"

var buildInfo = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "forge_build_info",
		Help: "Build information with version and Go runtime details",
	},
	[]string{"version", "go_version"},
)

func init() {
	buildInfo.WithLabelValues(Version, runtime.Version()).Set(1)
}

func runHealthcheck(configPath string) int {
	// Config load failure is not fatal here; the service may be running
	// on env vars only.
	cfg, err := config.Load(configPath)
	port := "9090"
	if err == nil && cfg.Server.ListenPort != "" {
		port = cfg.Server.ListenPort
	} else if envPort := os.Getenv("FORGE_SERVER_PORT"); envPort != "" {
		port = envPort
	}

	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{
		Timeout: 5 * time.Second,
	}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Healthcheck failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Healthcheck returned status: %d\n", resp.StatusCode)
		return 1
	}
	return 0
}

func main() {
	// Set up JSON logging early (before config load) with default INFO level.
	// Will be reconfigured with correct level after config is loaded.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file found or failed to load, relying on environment variables")
	}

	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	healthcheck := flag.Bool("healthcheck", false, "run healthcheck and exit")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("forged", Version)
		os.Exit(0)
	}

	if *healthcheck {
		os.Exit(runHealthcheck(*configPath))
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	var logLevel slog.Level
	if err := logLevel.UnmarshalText([]byte(cfg.Log.Level)); err != nil {
		slog.Warn("unknown log level, defaulting to info", "level", cfg.Log.Level)
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	store, err := storage.NewSQLiteStore(logger, cfg.Database.Path)
	if err != nil {
		logger.Error("failed to create storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.Init(); err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}
	logger.Info("Database initialized successfully.")

	var client openrouter.Client
	if cfg.OpenRouter.BaseURL != "" {
		client, err = openrouter.NewClientWithBaseURL(logger, cfg.OpenRouter.APIKey, cfg.OpenRouter.ProxyURL, cfg.OpenRouter.BaseURL)
	} else {
		client, err = openrouter.NewClient(logger, cfg.OpenRouter.APIKey, cfg.OpenRouter.ProxyURL)
	}
	if err != nil {
		logger.Error("failed to create openrouter client", "error", err)
		os.Exit(1)
	}
	logger.Info("OpenRouter client created successfully.")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	engine := pipeline.NewEngine(store, store, store, client, logger)
	sessions := session.NewService(store, store, store, client, cfg.Session, logger)
	harness := prompttest.NewHarness(client, logger)

	webServer := web.NewServer(ctx, logger, cfg, store, engine, sessions, harness)

	logger.Info("Starting Forge AI service", "version", Version)

	srvDone := make(chan struct{})
	go func() {
		defer close(srvDone)
		if err := webServer.Start(ctx); err != nil {
			logger.Error("web server failed", "error", err)
			cancel() // Trigger graceful shutdown instead of os.Exit
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	// Server.Start waits for in-flight webhook processing before returning
	<-srvDone
	logger.Info("Web server stopped")
}
