package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/librevious/deliverability-checker/internal/api"
	"github.com/librevious/deliverability-checker/internal/config"
	"github.com/librevious/deliverability-checker/internal/diag"
	"github.com/librevious/deliverability-checker/internal/emaillog"
	"github.com/librevious/deliverability-checker/internal/mailer"
	"github.com/librevious/deliverability-checker/internal/pkg/logger"
	"github.com/librevious/deliverability-checker/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database url is required (config database.url or DATABASE_URL)")
	}
	if cfg.Checks.Domain == "" {
		log.Fatal("check domain is required (config checks.domain or CHECK_DOMAIN)")
	}
	if cfg.Tracking.SigningKey == "" {
		log.Fatal("tracking signing key is required (config tracking.signing_key or TRACKING_SIGNING_KEY)")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Fatalf("ping database: %v", err)
	}

	store := emaillog.NewStore(db)

	prober := diag.NewProber(cfg.Checks.Domain, cfg.Checks.Timeout())
	validator := diag.NewProviderValidator(cfg.Provider, nil)
	checker := diag.NewChecker(prober, validator)

	var cache *diag.ReportCache
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			logger.Warn("redis unreachable, diagnostics cache disabled", "addr", cfg.Redis.Addr, "error", err.Error())
		} else {
			cache = diag.NewReportCache(rdb, cfg.Redis.CacheTTL())
		}
	}

	var sender api.Sender
	if cfg.Mailer.Host != "" {
		rewriter := tracking.NewRewriter(tracking.NewSigner(cfg.Tracking.SigningKey), cfg.Tracking.BaseURL)
		sender = mailer.NewSendService(mailer.NewSMTPMailer(cfg.Mailer), store, rewriter)
	}

	server := api.NewServer(cfg, checker, cache, store, sender)

	addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("deliverability checker listening", "addr", addr, "domain", cfg.Checks.Domain)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}
