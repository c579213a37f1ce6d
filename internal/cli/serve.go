package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"quiz-client/internal/app"
	"quiz-client/internal/auth"
	"quiz-client/internal/config"
	"quiz-client/internal/infra/api"
	"quiz-client/internal/infra/memory"
	"quiz-client/internal/infra/postgres"
	infraredis "quiz-client/internal/infra/redis"
	"quiz-client/internal/logging"
	transport "quiz-client/internal/transport/http"
)

// NewServeCmd builds the CLI subcommand to start the server.
func NewServeCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Aliases: []string{"start"},
		Short:   "Start the quiz websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	deps, cleanup, err := buildDeps(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer cleanup()

	client := api.NewClient(cfg.API.BaseURL, config.TTLDuration(cfg.API.Timeout, 15*time.Second), log)
	service := app.NewQuizService(
		deps.sessions,
		app.NewLoader(client, log),
		app.NewScoreReporter(client, config.TTLDuration(cfg.Quiz.SubmitTimeout, 10*time.Second), log),
		app.WithJournal(deps.journal),
		app.WithSessionConfig(app.SessionConfig{SecondsPerQuestion: cfg.Quiz.SecondsPerQuestion}),
		app.WithLogger(log),
	)
	wsHandler := transport.NewWSHandler(service, deps.tokens, client, cfg.Quiz.Packs, log)

	server := &http.Server{
		Addr:              ":" + finalPort,
		Handler:           transport.NewRouter(transport.RouterConfig{WSHandler: wsHandler, Packs: cfg.Quiz.Packs}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.WithFields(logrus.Fields{
			"port":     finalPort,
			"api_base": cfg.API.BaseURL,
		}).Info("starting quiz client")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

type serveDeps struct {
	sessions app.SessionRepository
	tokens   auth.TokenStore
	journal  app.Journal
}

// buildDeps picks Redis and Postgres backed stores when configured and
// in-memory ones otherwise.
func buildDeps(ctx context.Context, cfg config.Config, log *logrus.Logger) (serveDeps, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := serveDeps{
		sessions: memory.NewSessionStore(),
		tokens:   memory.NewTokenStore(),
		journal:  app.NewLogJournal(log),
	}

	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return serveDeps{}, cleanup, err
		}
		closers = append(closers, func() { _ = client.Close() })

		redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
		deps.sessions = infraredis.NewSessionStore(client, redisTTL, log)
		deps.tokens = memory.NewCachedTokenStore(
			infraredis.NewTokenStore(client, redisTTL),
			config.TTLDuration(cfg.Tokens.CacheTTL, config.DefaultTokenCacheTTL),
		)
		log.WithField("addr", cfg.Redis.Addr).Info("using redis stores")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			cleanup()
			return serveDeps{}, func() {}, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			cleanup()
			return serveDeps{}, func() {}, err
		}
		closers = append(closers, pool.Close)
		deps.journal = postgres.NewJournal(pool)
		log.Info("journaling attempts to postgres")
	}
	return deps, cleanup, nil
}

func newRedisClient(cfg config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}
