package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dailyquiz-service/internal/app"
	"dailyquiz-service/internal/auth"
	"dailyquiz-service/internal/config"
	"dailyquiz-service/internal/infra/memory"
	"dailyquiz-service/internal/infra/postgres"
	infraredis "dailyquiz-service/internal/infra/redis"
	transport "dailyquiz-service/internal/transport/http"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the daily quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, log, err := loadConfigAndLogger(configPath)
	if err != nil {
		return err
	}
	defer log.Sync()
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrations(ctx, cfg, log); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}

	deps := app.Deps{
		Log:          log,
		Grace:        config.TTLDuration(cfg.Quiz.SubmissionGrace, 5*time.Minute),
		DefaultLimit: cfg.Leaderboard.DefaultLimit,
		MaxLimit:     cfg.Leaderboard.MaxLimit,
	}

	var bank app.QuestionBank
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		store := postgres.NewStore(pool)
		deps.Store = store
		bank = postgres.NewQuestionBank(pool)
		log.Info("using postgres store")
	} else {
		memBank := memory.NewQuestionBank()
		store := memory.NewStore()
		if cfg.Quiz.SeedFile != "" {
			stats, err := seedMemory(cfg.Quiz.SeedFile, memBank, store)
			if err != nil {
				log.Warn("seed file not loaded", "file", cfg.Quiz.SeedFile, "error", err)
			} else {
				log.Info("seeded in-memory store", "questions", stats.Questions, "users", stats.Users)
			}
		}
		deps.Store = store
		bank = memBank
		log.Warn("postgres not configured; state is kept in memory")
	}
	deps.Bank = memory.NewQuestionCache(bank, config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute))

	var bus app.EventBus
	if redisClient != nil {
		deps.Quizzes = infraredis.NewQuizStore(redisClient, deps.Store, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
		deps.Cache = infraredis.NewLeaderboardCache(redisClient, config.TTLDuration(cfg.Leaderboard.CacheTTL, 30*time.Second))
		bus = infraredis.NewFeedBus(redisClient, log)
	} else {
		bus = memory.NewEventBus()
	}
	deps.Bus = bus

	service := app.NewQuizService(deps)

	feedCtx, stopFeed := context.WithCancel(ctx)
	defer stopFeed()
	go func() {
		if err := service.RunFeed(feedCtx, bus); err != nil {
			log.Error("leaderboard feed stopped", "error", err)
		}
	}()

	tokens := auth.NewTokens(cfg.Auth.JWTSecret, config.TTLDuration(cfg.Auth.TokenTTL, 30*24*time.Hour))

	gin.SetMode(cfg.Server.Mode)
	router := transport.NewRouter(transport.RouterConfig{
		QuizHandler:    transport.NewQuizHandler(service, log),
		WSHandler:      transport.NewWSHandler(service, log),
		Verifier:       tokens,
		Log:            log,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// no WriteTimeout: websocket connections are long-lived
	}

	go func() {
		log.Info("starting daily quiz service", "port", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
	}

	stopFeed()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
