package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/cyberinferno/go-l2server/async"
	"github.com/cyberinferno/go-l2server/cacher"
	"github.com/cyberinferno/go-l2server/config"
	"github.com/cyberinferno/go-l2server/gameserver"
	"github.com/cyberinferno/go-l2server/idgenerator"
	"github.com/cyberinferno/go-l2server/logger"
	"github.com/cyberinferno/go-l2server/metrics"
	"github.com/cyberinferno/go-l2server/world"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	listen     string
	logLevel   string
	console    bool
}

func serveCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the game server",
		Long: `Run the game server until SIGINT or SIGTERM.

Settings come from the YAML file given with --config; flags override it.

Examples:
  l2gameserver serve
  l2gameserver serve --config=gameserver.yaml
  l2gameserver serve --listen=127.0.0.1:7777 --log-level=debug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, cfg, opts.console)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML configuration file")
	cmd.Flags().StringVarP(&opts.listen, "listen", "l", "", "Client listen address (overrides network.listen)")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (overrides log.level)")
	cmd.Flags().BoolVar(&opts.console, "console", false, "Human-readable log output")

	return cmd
}

// loadConfig reads the configuration file, if any, and applies the flag
// overrides.
func loadConfig(opts serveOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}

		cfg = loaded
	}

	if opts.listen != "" {
		cfg.Network.Listen = opts.listen
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func runServe(ctx context.Context, cfg config.Config, console bool) error {
	log, err := logger.New(logger.Options{
		Service: "gameserver",
		Level:   cfg.Log.Level,
		Console: console || cfg.Log.Console,
		Dir:     cfg.Log.Dir,
	})
	if err != nil {
		return err
	}
	defer log.Close()

	cache, closeCache, err := newCharacterCache(ctx, cfg.Cache)
	if err != nil {
		log.Error("cache unavailable", logger.Err(err))
		return err
	}
	defer closeCache()

	pool, err := async.NewPool(cfg.Workers.Size)
	if err != nil {
		return err
	}
	defer pool.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store := world.NewMemoryCharacterStore(idgenerator.NewPlayerIdGenerator())
	chars := world.NewCachedCharacterService(store, cache, cfg.Cache.TTL)
	auth := world.NewStaticAuthenticator()
	seeded, err := seedWorld(ctx, cfg.Seed, chars, auth)
	if err != nil {
		log.Error("seeding world failed", logger.Err(err))
		return err
	}
	log.Info("world seeded",
		logger.Field{Key: "accounts", Value: len(cfg.Seed.Accounts)},
		logger.Field{Key: "characters", Value: seeded},
	)

	srv, err := gameserver.New(cfg.Network, gameserver.Dependencies{
		Characters: chars,
		Auth:       auth,
		Pool:       pool,
		Logger:     log,
		Metrics:    metrics.New(registry),
	})
	if err != nil {
		return err
	}

	if err := srv.Start(); err != nil {
		return err
	}
	defer srv.Stop()

	var ops *http.Server
	opsErr := make(chan error, 1)
	if cfg.Metrics.Listen != "" {
		ops = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           newOpsRouter(registry, srv),
			ReadHeaderTimeout: 5 * time.Second,
		}

		go func() {
			log.Info("metrics endpoint started", logger.Field{Key: "addr", Value: cfg.Metrics.Listen})
			if err := ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				opsErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-opsErr:
		log.Error("metrics endpoint failed", logger.Err(err))
		return err
	}

	if ops != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			log.Warn("metrics endpoint shutdown", logger.Err(err))
		}
	}

	return nil
}

// newCharacterCache builds the character list cache for the configured
// backend.
//
// Returns:
//   - The cache and a function releasing it
//   - An error if the redis backend is unreachable
func newCharacterCache(ctx context.Context, cfg config.CacheConfig) (cacher.Cacher[[]world.Character], func(), error) {
	switch cfg.Backend {
	case config.CacheRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("redis %s: %w", cfg.RedisAddr, err)
		}

		return cacher.NewRedisCacher[[]world.Character](client, "gameserver"), func() { _ = client.Close() }, nil
	default:
		return cacher.NewMemoryCacher[[]world.Character](cfg.TTL, 2*cfg.TTL), func() {}, nil
	}
}

// seedWorld creates the configured characters and grants the configured
// session keys.
//
// Returns:
//   - The number of characters created
//   - An error if a character cannot be stored
func seedWorld(ctx context.Context, seed config.SeedConfig, chars world.CharacterService, auth *world.StaticAuthenticator) (int, error) {
	created := 0
	for _, a := range seed.Accounts {
		if k := a.SessionKey; k != nil {
			auth.Grant(a.Name, world.SessionKey{
				PlayKey1:  k.PlayKey1,
				PlayKey2:  k.PlayKey2,
				LoginKey1: k.LoginKey1,
				LoginKey2: k.LoginKey2,
			})
		}

		for _, ch := range a.Characters {
			level := ch.Level
			if level == 0 {
				level = 1
			}

			_, err := chars.Create(ctx, world.Character{
				Account: a.Name,
				Name:    ch.Name,
				Level:   level,
				Point:   world.Point{X: ch.X, Y: ch.Y, Z: ch.Z},
				Attack:  ch.Attack,
				Defence: ch.Defence,
			})
			if err != nil {
				return created, fmt.Errorf("seed %s/%s: %w", a.Name, ch.Name, err)
			}
			created++
		}
	}

	return created, nil
}
