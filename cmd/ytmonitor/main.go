package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"nasfaqv2/brokerbot/ytmonitor/internal/config"
	"nasfaqv2/brokerbot/ytmonitor/internal/db"
	"nasfaqv2/brokerbot/ytmonitor/internal/livestreams"
	"nasfaqv2/brokerbot/ytmonitor/internal/logging"
	"nasfaqv2/brokerbot/ytmonitor/internal/monitor"
	"nasfaqv2/brokerbot/ytmonitor/internal/server"
	"nasfaqv2/brokerbot/ytmonitor/internal/snapshot"
	"nasfaqv2/brokerbot/ytmonitor/internal/youtube"
)

func main() {
	defaultConfig := os.Getenv("CONFIG_FILE")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	configPath := flag.String("config", defaultConfig, "path to config.yaml")
	flag.Parse()

	config.LoadDotEnv()

	if err := run(*configPath); err != nil {
		log.Fatalf("%v", err)
	}
}

// run owns every resource so its deferred closes happen before main exits.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	logFile, err := logging.Setup(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	})
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	defer logFile.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var pool *pgxpool.Pool
	var registry []db.Channel
	if cfg.DatabaseURL != "" {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
		defer pool.Close()

		if err := db.ApplySchema(ctx, pool); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
		registry, err = db.ListActiveChannels(ctx, pool)
		if err != nil {
			return fmt.Errorf("db: %w", err)
		}
	}

	sources := mergeSources(cfg.Channels, registry)
	if len(sources) == 0 {
		return fmt.Errorf("config: %w", config.ErrNoChannels)
	}

	store := snapshot.New(cfg.SnapshotDir)
	if n, err := store.ResetIfStale(time.Now()); err != nil {
		log.Printf("snapshot: startup reset failed: %v", err)
	} else if n > 0 {
		log.Printf("snapshot: removed %d snapshots from previous days", n)
	}

	yt := youtube.New(cfg.YouTubeAPIKey, cfg.RequestTimeout.Duration(), cfg.APIRequestsPerSecond)
	fetcher := &monitor.Fetcher{
		API:         yt,
		MaxResults:  cfg.SearchMaxResults,
		CallTimeout: cfg.RequestTimeout.Duration(),
	}

	mon := monitor.New(monitor.Config{
		CycleInterval:  cfg.CycleInterval.Duration(),
		StatusInterval: cfg.StatusInterval.Duration(),
		SearchInterval: cfg.SearchInterval.Duration(),
		Retention:      cfg.SnapshotRetention,
	}, store, fetcher, sources)

	hub := server.NewHub(mon.Streams)
	mon.AddSink(hub)

	if cfg.RedisURL != "" {
		rdb, err := newRedisClient(cfg.RedisURL, cfg.RedisPassword)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		defer func() { _ = rdb.Close() }()
		mon.AddSink(livestreams.NewRedisStore(rdb))
	}
	if pool != nil {
		mon.AddSink(&db.SelectionStore{Pool: pool, Now: time.Now})
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.New(mon, hub).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hub.Run(gctx)
		return nil
	})
	g.Go(func() error {
		return mon.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("http: listening on %s", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Printf("shutdown: %v", ctx.Err())
	return nil
}

// mergeSources lists config channels first, then registry channels not
// already present under the same key.
func mergeSources(cfgChannels []config.Channel, registry []db.Channel) []monitor.Source {
	seen := make(map[string]struct{}, len(cfgChannels)+len(registry))
	var out []monitor.Source
	add := func(src monitor.Source) {
		if _, dup := seen[src.Key()]; dup {
			log.Printf("config: duplicate channel %q ignored", src.Key())
			return
		}
		seen[src.Key()] = struct{}{}
		out = append(out, src)
	}
	for _, ch := range cfgChannels {
		add(monitor.SourceFor(ch.ChannelID, ch.Name))
	}
	for _, ch := range registry {
		add(ch.Source())
	}
	return out
}

func newRedisClient(redisURL, redisPassword string) (*redis.Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	if redisPassword != "" {
		opt.Password = redisPassword
	}
	rdb := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
