package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/platefleet/zone-engine/core"
	"github.com/platefleet/zone-engine/internal/config"
	"github.com/platefleet/zone-engine/internal/geocode"
	"github.com/platefleet/zone-engine/internal/httpapi"
	"github.com/platefleet/zone-engine/internal/logging"
	"github.com/platefleet/zone-engine/internal/observability"
	"github.com/platefleet/zone-engine/model"
)

func main() {
	httpAddr := flag.String("http-addr", "", "override the HTTP listen address from the environment")
	zonesPath := flag.String("zones", "", "override the zone scenario path from the environment")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Error(ctx, "failed to load configuration", logging.Err(err))
		os.Exit(1)
	}
	if *httpAddr != "" {
		cfg.HTTPAddr = *httpAddr
	}
	if *zonesPath != "" {
		cfg.ScenarioPath = *zonesPath
	}

	collector, err := observability.NewEngineCollector(nil)
	if err != nil {
		log.Error(ctx, "failed to initialise metrics collector", logging.Err(err))
		os.Exit(1)
	}
	metricsSrv := serveMetrics(cfg.MetricsAddr, collector, log)

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		log.Warn(ctx, "tracing init failed; continuing without traces", logging.Err(err))
		shutdownTracing = nil
	}

	reg, defaults := loadZones(log, cfg.ScenarioPath)
	collector.SetZoneCount(reg.Len())
	unsubscribe := reg.Subscribe(func(ev core.ZoneEvent) {
		collector.SetZoneCount(ev.Count)
	})
	defer unsubscribe()

	resolver := core.NewPricingResolver(reg, defaults,
		core.WithResolverLogger(log),
		core.WithResolutionRecorder(collector),
	)

	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn(ctx, "redis unreachable; geocode cache disabled",
				logging.String("addr", cfg.RedisAddr), logging.Err(err))
			rdb = nil
		}
	}

	provider := geocode.NewClient(cfg.GeocodeBaseURL,
		geocode.WithHTTPClient(&http.Client{Timeout: cfg.GeocodeTimeout}),
		geocode.WithClientLogger(log),
		geocode.WithRecorder(collector),
	)
	cached := geocode.NewCachedProvider(provider, rdb, cfg.GeocodeCacheTTL, log)

	svc := httpapi.NewService(reg, resolver, cached, httpapi.WithServiceLogger(log))
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: httpapi.NewRouter(svc, collector, log),
	}

	log.Info(ctx, "starting zone engine API",
		logging.String("addr", cfg.HTTPAddr),
		logging.String("scope", reg.Scope()),
		logging.Int("zones", reg.Len()),
	)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error(ctx, "HTTP server exited", logging.Err(err))
		}
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	<-stopCtx.Done()

	log.Info(ctx, "shutting down zone engine")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)
	if rdb != nil {
		_ = rdb.Close()
	}
}

func serveMetrics(addr string, collector *observability.EngineCollector, log logging.Logger) *http.Server {
	if collector == nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}

// loadZones builds the registry from the configured scenario file. A missing
// or unreadable fixture is not fatal: the server starts empty and zones come
// in through the API.
func loadZones(log logging.Logger, path string) (*core.ZoneRegistry, model.DefaultPricing) {
	if path == "" {
		log.Info(context.Background(), "no zone scenario configured; starting with an empty registry")
		return core.NewZoneRegistry("default"), model.DefaultPricing{}
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn(context.Background(), "skipping zone scenario", logging.String("path", path), logging.Err(err))
		return core.NewZoneRegistry("default"), model.DefaultPricing{}
	}
	defer f.Close()

	reg, scenario, err := core.LoadZoneRegistry(f)
	if err != nil {
		log.Warn(context.Background(), "failed to load zone scenario", logging.String("path", path), logging.Err(err))
		return core.NewZoneRegistry("default"), model.DefaultPricing{}
	}

	log.Info(context.Background(), "loaded zone scenario",
		logging.String("path", path),
		logging.String("scope", scenario.Scope),
		logging.Int("zones", len(scenario.ZoneIDs)),
	)
	return reg, scenario.Defaults
}
