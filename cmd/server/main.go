package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tjhsst/ion-verifier/internal/api"
	"tjhsst/ion-verifier/internal/config"
	"tjhsst/ion-verifier/internal/discord"
	"tjhsst/ion-verifier/internal/logging"
	"tjhsst/ion-verifier/internal/metrics"
	"tjhsst/ion-verifier/internal/providers"
	"tjhsst/ion-verifier/internal/routes"
	"tjhsst/ion-verifier/internal/verification"
)

func main() {
	log.SetOutput(os.Stdout)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Initialize structured logging
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "development"
	}

	if err := logging.Init(appEnv); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logging.Close()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Failed to load configuration", "error", err.Error())
	}

	table, err := cfg.RoleTable()
	if err != nil {
		logging.Fatal("Failed to parse role mapping table", "error", err.Error())
	}

	logging.Info("ION verifier starting up",
		"environment", cfg.AppEnv,
		"guild_id", cfg.GuildID,
		"mapped_roles", len(table),
		"timestamp", time.Now().Format(time.RFC3339),
	)

	// Pending verification store: Redis when configured, process memory
	// otherwise.
	var store verification.PendingStore
	var pinger api.Pinger
	if cfg.RedisAddr != "" {
		redisStore, err := verification.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.PendingTTL)
		if err != nil {
			logging.Fatal("Failed to connect to Redis", "error", err.Error())
		}
		store = redisStore
		pinger = redisStore
		logging.Info("Using Redis pending store", "addr", cfg.RedisAddr)
	} else {
		store = verification.NewMemoryStore(cfg.PendingTTL)
		logging.Info("Using in-memory pending store", "ttl", cfg.PendingTTL.String())
	}
	defer store.Close()

	provider := providers.NewIONProvider(cfg.IONClientID, cfg.IONClientSecret, cfg.IONRedirectURI)
	mutator := discord.NewRoleMutator(cfg.DiscordBotToken, table, cfg.RoleToRemove)

	publisher, err := discord.NewPromptPublisher(cfg.DiscordBotToken, cfg.BaseURL, cfg.GuildID, cfg.VerifyChannelID)
	if err != nil {
		logging.Fatal("Failed to create prompt publisher", "error", err.Error())
	}

	metricsReg := metrics.NewMetricsRegistry()
	handlers := api.NewVerifyHandlers(store, provider, mutator, metricsReg)

	upSince := time.Now()
	router := routes.RegisterRoutes(handlers, metricsReg, pinger, upSince)

	// Metrics endpoint lives outside the Chi router
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", router)
	logging.Info("Prometheus metrics endpoint registered at /metrics")

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logging.Info("Server starting", "port", cfg.Port, "environment", cfg.AppEnv)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		return publisher.Run(ctx)
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logging.Fatal("Server exited with error", "error", err.Error())
	}
	logging.Info("Server stopped")
}
