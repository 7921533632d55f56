package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lysyi3m/rss-nest/app/api"
	"github.com/lysyi3m/rss-nest/app/cache"
	"github.com/lysyi3m/rss-nest/app/cfg"
	"github.com/lysyi3m/rss-nest/app/extract"
	"github.com/lysyi3m/rss-nest/app/feed"
	"github.com/lysyi3m/rss-nest/app/fetch"
	"github.com/lysyi3m/rss-nest/app/provider"
	"github.com/lysyi3m/rss-nest/app/registry"
	"github.com/lysyi3m/rss-nest/app/service"
	"github.com/lysyi3m/rss-nest/app/sites"
	"github.com/lysyi3m/rss-nest/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("RSS Nest stopped with error", "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting RSS Nest server", "version", appCfg.Version)

	ctx := context.Background()

	redisClient, err := cache.Connect(ctx, cache.ClientOptions{
		Addr:     appCfg.RedisAddr,
		Password: appCfg.RedisPassword,
		DB:       appCfg.RedisDB,
	})
	if err != nil {
		// Feeds are still served without caching until Redis comes back.
		slog.Warn("Redis unavailable, serving uncached until it recovers", "error", err)
	}
	defer redisClient.Close()

	store := cache.NewRedisStore(redisClient)

	loader := sites.NewLoader(appCfg.SitesDir)
	if err := loader.Run(); err != nil {
		return fmt.Errorf("failed to load site declarations: %w", err)
	}
	slog.Info("Site declarations loaded", "dir", appCfg.SitesDir, "count", loader.GetConfigCount())
	if disabled := disabledSites(loader); len(disabled) > 0 {
		slog.Info("Skipping disabled site declarations", "sites", disabled)
	}

	fetcher := fetch.NewClient(appCfg.FetchTimeout, appCfg.UserAgent)
	engine := extract.NewEngine()

	builtin := sites.Builtin()
	sources := slices.Concat(builtin, loader.Sources())

	providers := make([]*provider.Provider, 0, len(sources))
	for _, source := range sources {
		providers = append(providers, provider.New(source, fetcher, engine))
	}

	reg, err := registry.New(providers...)
	if err != nil {
		return fmt.Errorf("failed to register providers: %w", err)
	}
	slog.Info("Providers registered", "count", reg.Count(), "sites", reg.SiteIDs())

	coordinator := cache.NewCoordinator(store, store, cache.Config{
		Namespace:     appCfg.CacheNamespace,
		LockNamespace: appCfg.LockNamespace,
	}, cache.NewMetrics(prometheus.DefaultRegisterer))

	generator := feed.NewGenerator(appCfg.BaseUrl, appCfg.Version)
	feedService := service.New(reg, coordinator, generator, store, appCfg.Version)

	targets := warmTargets(appCfg.WarmSchedule, builtin, loader)
	scheduler := tasks.NewScheduler(feedService, targets, appCfg.WorkerCount)
	slog.Info("Starting background warm-up", "workers", appCfg.WorkerCount, "targets", len(targets))
	scheduler.Start()
	defer scheduler.Stop()

	server := api.NewServer(api.NewHandler(feedService), appCfg.APIAccessKey, prometheus.DefaultGatherer)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case runErr = <-serverErrChan:
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return runErr
}

func disabledSites(loader *sites.Loader) []string {
	var ids []string
	for id, config := range loader.GetConfigs() {
		if config.Disabled {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

// warmTargets combines the per-site warm declarations with the global
// schedule, which applies to every built-in site at its default params.
func warmTargets(schedule string, builtin []provider.Source, loader *sites.Loader) []sites.WarmTarget {
	targets := loader.WarmTargets()
	if schedule == "" {
		return targets
	}

	for _, source := range builtin {
		targets = append(targets, sites.WarmTarget{
			SiteID:   source.Descriptor().SiteID,
			Schedule: schedule,
		})
	}
	return targets
}
