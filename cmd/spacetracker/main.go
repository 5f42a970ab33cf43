package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/jblestang/AISpaceTracker/internal/api"
	"github.com/jblestang/AISpaceTracker/internal/auth"
	"github.com/jblestang/AISpaceTracker/internal/cache"
	"github.com/jblestang/AISpaceTracker/internal/metrics"
	"github.com/jblestang/AISpaceTracker/internal/sim"
	"github.com/jblestang/AISpaceTracker/internal/stream"
	"github.com/jblestang/AISpaceTracker/internal/tle"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	addr := os.Getenv("SPACETRACK_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	authCfg, err := loadAuthConfig(logger)
	if err != nil {
		logger.Error("invalid auth configuration", "error", err)
		os.Exit(1)
	}

	tleCfg := loadTLEConfig(logger)
	simCfg := loadSimConfig(logger)
	streamCfg := loadStreamConfig(logger)

	store := tle.NewStore()
	snapCache := tle.NewSnapshotCache(tleCfg.CacheDir, logger)
	fetcher := tle.NewFetcher(tleCfg.SourceURL, logger)
	loader := tle.NewLoader(snapCache, fetcher, tleCfg.MaxAge, logger)

	// The one blocking external call: load the catalog at startup. A fetch
	// failure after a cache miss degrades to an empty catalog; the service
	// stays up and not-ready until a refresh succeeds.
	loadCtx, loadCancel := context.WithTimeout(context.Background(), 60*time.Second)
	catalog, err := loader.LoadCatalog(loadCtx)
	loadCancel()
	if err != nil {
		logger.Error("catalog load failed, starting with empty catalog", "error", err)
	} else {
		store.Set(catalog)
		metrics.SetCatalogSize(len(catalog.Records))
	}

	objects := sim.BuildObjects(catalog, simCfg.MaxObjects, logger)
	clock := sim.NewClock(time.Now().UTC(), simCfg.TimeAccel)
	engine := sim.NewEngine(objects, clock, sim.Config{
		Workers:              simCfg.Workers,
		TerminatorResolution: simCfg.TerminatorResolution,
	}, logger)

	buffer := cache.NewFrameBuffer(cache.Config{
		Step:   simCfg.TickInterval,
		Buffer: simCfg.FrameRetention,
	}, logger)

	streamHandler := stream.NewHandler(buffer, store, streamCfg, logger)

	refresh := func(ctx context.Context) (int, error) {
		store.Lock()
		defer store.Unlock()

		if err := snapCache.Clear(); err != nil {
			return 0, fmt.Errorf("clearing snapshot cache: %w", err)
		}
		fresh, err := loader.LoadCatalog(ctx)
		if err != nil {
			return 0, err
		}
		store.Set(fresh)
		metrics.SetCatalogSize(len(fresh.Records))
		engine.ReplaceObjects(sim.BuildObjects(fresh, simCfg.MaxObjects, logger))
		return len(fresh.Records), nil
	}

	srv := api.NewServer(addr, logger, authCfg, store, engine, buffer, streamHandler, refresh)

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go engine.Run(ctx, simCfg.TickInterval, buffer.Put)

	// Background goroutine to update the catalog age gauge.
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if age := store.AgeSeconds(); age >= 0 {
					metrics.SetCatalogAge(age)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		logger.Info("starting server",
			"addr", addr,
			"auth_enabled", authCfg.Enabled,
			"objects", engine.ObjectCount(),
			"tick_interval_s", simCfg.TickInterval.Seconds(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server listen error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}

type tleConfig struct {
	SourceURL string
	CacheDir  string
	MaxAge    time.Duration
}

func loadTLEConfig(logger *slog.Logger) tleConfig {
	cfg := tleConfig{
		CacheDir: "cache",
		MaxAge:   tle.DefaultMaxAge,
	}

	if v := os.Getenv("SPACETRACK_TLE_SOURCE_URL"); v != "" {
		cfg.SourceURL = v
	}
	if v := os.Getenv("SPACETRACK_TLE_CACHE_DIR"); v != "" {
		cfg.CacheDir = v
	}
	if v := os.Getenv("SPACETRACK_TLE_MAX_AGE"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil || seconds < 1 {
			logger.Warn("invalid SPACETRACK_TLE_MAX_AGE value, using default", "value", v, "default", 86400)
		} else {
			cfg.MaxAge = time.Duration(seconds) * time.Second
		}
	}

	logger.Info("TLE config",
		"source_url", cfg.SourceURL,
		"cache_dir", cfg.CacheDir,
		"max_age_hours", cfg.MaxAge.Hours(),
	)
	return cfg
}

type simConfig struct {
	Workers              int
	TickInterval         time.Duration
	FrameRetention       time.Duration
	TimeAccel            float64
	TerminatorResolution int
	MaxObjects           int
}

func loadSimConfig(logger *slog.Logger) simConfig {
	cfg := simConfig{
		Workers:              runtime.NumCPU(),
		TickInterval:         time.Second,
		FrameRetention:       60 * time.Second,
		TimeAccel:            1.0,
		TerminatorResolution: 128,
		MaxObjects:           10000,
	}

	if v := os.Getenv("SPACETRACK_PROP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_PROP_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}
	if v := os.Getenv("SPACETRACK_TICK_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_TICK_INTERVAL value, using default", "value", v, "default", 1)
		} else {
			cfg.TickInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SPACETRACK_FRAME_RETENTION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_FRAME_RETENTION value, using default", "value", v, "default", 60)
		} else {
			cfg.FrameRetention = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SPACETRACK_TIME_ACCEL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			logger.Warn("invalid SPACETRACK_TIME_ACCEL value, using default", "value", v, "default", 1.0)
		} else {
			cfg.TimeAccel = f
		}
	}
	if v := os.Getenv("SPACETRACK_TERMINATOR_RESOLUTION"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 3 {
			logger.Warn("invalid SPACETRACK_TERMINATOR_RESOLUTION value, using default", "value", v, "default", 128)
		} else {
			cfg.TerminatorResolution = n
		}
	}
	if v := os.Getenv("SPACETRACK_MAX_OBJECTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_MAX_OBJECTS value, using default", "value", v, "default", cfg.MaxObjects)
		} else {
			cfg.MaxObjects = n
		}
	}

	logger.Info("simulation config",
		"workers", cfg.Workers,
		"tick_interval_s", cfg.TickInterval.Seconds(),
		"time_accel", cfg.TimeAccel,
		"max_objects", cfg.MaxObjects,
	)
	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 10,
		KeepaliveInterval:  30 * time.Second,
	}

	if v := os.Getenv("SPACETRACK_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", 10)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}
	if v := os.Getenv("SPACETRACK_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_STREAM_MAX_TOTAL value, using default", "value", v, "default", 1000)
		} else {
			cfg.MaxConcurrentTotal = n
		}
	}
	if v := os.Getenv("SPACETRACK_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid SPACETRACK_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}
	if v := os.Getenv("SPACETRACK_TRUST_PROXY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			logger.Warn("invalid SPACETRACK_TRUST_PROXY value, defaulting to false", "value", v)
		} else {
			cfg.TrustProxy = b
		}
	}

	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	if v := os.Getenv("SPACETRACK_AUTH_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, errors.New("SPACETRACK_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("SPACETRACK_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("SPACETRACK_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}
