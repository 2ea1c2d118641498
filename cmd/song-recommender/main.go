// Command song-recommender serves song recommendations from pre-trained
// clustering artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/justestif/go-spotify-song-recommender/internal/artifacts"
	"github.com/justestif/go-spotify-song-recommender/internal/config"
	"github.com/justestif/go-spotify-song-recommender/internal/db"
	"github.com/justestif/go-spotify-song-recommender/internal/logger"
	"github.com/justestif/go-spotify-song-recommender/internal/lookup"
	"github.com/justestif/go-spotify-song-recommender/internal/metrics"
	"github.com/justestif/go-spotify-song-recommender/internal/recommend"
	"github.com/justestif/go-spotify-song-recommender/internal/spotify"
	"github.com/justestif/go-spotify-song-recommender/internal/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log, err := logger.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx := context.Background()

	store, err := artifacts.Load(cfg.Artifacts.Dir, artifacts.WithLogger(log.Named("artifacts")))
	if err != nil {
		return fmt.Errorf("loading artifacts from %s: %w", cfg.Artifacts.Dir, err)
	}

	provider, cleanup, err := buildProvider(ctx, &cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	engine := recommend.New(store, provider,
		recommend.WithLogger(log.Named("recommend")),
		recommend.WithLookupTimeout(cfg.Lookup.Timeout()),
		recommend.WithObserver(metrics.Recorder{}),
	)

	log.Info("recommender ready",
		zap.String("env", env),
		zap.Int("catalog_size", engine.CatalogSize()),
		zap.Int("clusters", engine.Clusters()),
		zap.Bool("spotify_lookup", cfg.SpotifyEnabled()),
		zap.String("lookup_cache", cfg.Lookup.Cache),
	)

	server := web.NewServer(web.ServerConfig{
		Addr:            cfg.HTTP.Addr,
		ReadTimeout:     cfg.HTTP.ReadTimeout(),
		WriteTimeout:    cfg.HTTP.WriteTimeout(),
		ShutdownTimeout: cfg.HTTP.ShutdownTimeout(),
		DefaultCount:    cfg.Lookup.DefaultCount,
	}, engine, log.Named("http"))

	return server.Run(ctx)
}

// buildProvider assembles the lookup chain: Spotify -> breaker -> cache.
// The returned cleanup releases any database pool.
func buildProvider(ctx context.Context, cfg *config.Config, log *zap.Logger) (lookup.Provider, func(), error) {
	cleanup := func() {}

	if !cfg.SpotifyEnabled() {
		log.Warn("spotify credentials not configured, every request will use fallback recommendations")
		return lookup.Disabled{}, cleanup, nil
	}

	retry := lookup.RetryPolicy{
		MaxAttempts: cfg.Lookup.MaxAttempts,
		BaseDelay:   cfg.Lookup.BaseDelay(),
		Multiplier:  cfg.Lookup.Multiplier,
	}
	client, err := spotify.NewWithCredentials(ctx, cfg.Spotify.ClientID, cfg.Spotify.ClientSecret,
		spotify.WithLogger(log.Named("spotify")),
		spotify.WithRetryPolicy(retry),
		spotify.WithRequestPause(cfg.Spotify.RequestPause()),
	)
	if err != nil {
		return nil, cleanup, fmt.Errorf("creating spotify client: %w", err)
	}

	var provider lookup.Provider = client
	if cfg.Breaker.Enabled {
		settings := lookup.DefaultBreakerSettings()
		settings.ConsecutiveFailures = cfg.Breaker.ConsecutiveFailures
		settings.Timeout = time.Duration(cfg.Breaker.TimeoutSec) * time.Second
		settings.Interval = time.Duration(cfg.Breaker.IntervalSec) * time.Second
		settings.Logger = log.Named("breaker")
		settings.OnStateChange = metrics.ObserveBreakerState
		provider = lookup.WithBreaker(provider, settings)
	}

	switch cfg.Lookup.Cache {
	case config.CacheFile:
		provider = lookup.Cached(provider, lookup.NewFileCache(cfg.Lookup.CacheFile), log.Named("cache"))
	case config.CachePostgres:
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("connecting to database: %w", err)
		}
		if err := database.EnsureSchema(ctx); err != nil {
			database.Close()
			return nil, cleanup, fmt.Errorf("ensuring schema: %w", err)
		}
		provider = lookup.Cached(provider, database.SongFeatures(), log.Named("cache"))
		cleanup = database.Close
	}

	return provider, cleanup, nil
}
