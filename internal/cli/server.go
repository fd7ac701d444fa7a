package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bridgebites-service/internal/app"
	"bridgebites-service/internal/config"
	"bridgebites-service/internal/domain"
	"bridgebites-service/internal/infra/auth"
	"bridgebites-service/internal/infra/memory"
	"bridgebites-service/internal/infra/postgres"
	redisinfra "bridgebites-service/internal/infra/redis"
	"bridgebites-service/internal/logging"
	"bridgebites-service/internal/metrics"
	transport "bridgebites-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the challenge server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	log := logging.New("bridgebites")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
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
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 10*time.Minute)
	catalogTTL := config.TTLDuration(cfg.Catalog.TTL, 10*time.Minute)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
	}

	var (
		challenges  app.ChallengeRepository
		profiles    app.ProfileRepository
		attempts    app.AttemptRepository
		feed        app.FeedRepository
		friendships app.FriendshipRepository
	)
	if pool != nil {
		store := postgres.NewStore(pool)
		challenges = store
		profiles = app.NewProvisioningProfiles(store)
		attempts = store
		feed = store
		friendships = store
	} else {
		store := memory.NewStore()
		store.SeedChallenges(sampleChallenges()...)
		challenges = store
		profiles = app.NewProvisioningProfiles(store)
		attempts = store
		feed = store
		friendships = store
		log.Warn("no postgres url configured, serving demo data from memory")
	}

	var notifier app.FeedNotifier
	var sessions app.SessionRepository
	if redisClient != nil {
		challenges = redisinfra.NewCatalogCache(redisClient, challenges, catalogTTL)
		notifier = redisinfra.NewFeedNotifier(redisClient)
		sessions = redisinfra.NewSessionStore(redisClient, redisTTL)
	} else {
		notifier = memory.NewFeedNotifier()
		sessions = memory.NewSessionStore()
	}

	reg := prometheus.DefaultRegisterer
	m := metrics.New(reg)
	authProvider := auth.Context{}

	sessionService := app.NewSessionService(app.SessionConfig{
		Auth:       authProvider,
		Sessions:   sessions,
		Challenges: challenges,
		Profiles:   profiles,
		Attempts:   attempts,
		Feed:       feed,
		Notifier:   notifier,
		Log:        log,
		Metrics:    m,
	})
	feedService := app.NewFeedService(authProvider, feed, profiles, notifier, log)
	friendService := app.NewFriendService(authProvider, friendships, profiles, log)

	wsHandler := transport.NewWSHandler(sessionService, feedService, friendService, log, m)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ws", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.WithField("port", finalPort).Info("starting challenge service")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("failed to start server")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutting down server...")
	case <-ctx.Done():
		log.Info("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// sampleChallenges provides a minimal demo catalog for memory mode.
func sampleChallenges() []domain.Challenge {
	now := time.Now().UTC()
	return []domain.Challenge{
		{
			ID:            "ch-france-capital",
			Title:         "Capital Quiz: France",
			Description:   "Which city is the capital of France?",
			Type:          domain.ChallengeQuiz,
			Country:       "France",
			Flag:          "🇫🇷",
			Points:        50,
			Difficulty:    "easy",
			Options:       &domain.ChoiceSet{Choices: []string{"Paris", "Lyon", "Marseille", "Nice"}},
			CorrectAnswer: "Paris",
			IsDaily:       true,
			CreatedAt:     now,
		},
		{
			ID:            "ch-japan-dish",
			Title:         "Taste of Japan",
			Description:   "Name the Japanese dish of vinegared rice topped with fish.",
			Type:          domain.ChallengeCultural,
			Country:       "Japan",
			Flag:          "🇯🇵",
			Points:        60,
			Difficulty:    "medium",
			CorrectAnswer: "Sushi",
			CreatedAt:     now.Add(-time.Minute),
		},
		{
			ID:            "ch-brazil-landmark",
			Title:         "Landmark Spotting: Brazil",
			Description:   "Identify the statue overlooking Rio de Janeiro.",
			Type:          domain.ChallengeVisual,
			Country:       "Brazil",
			Flag:          "🇧🇷",
			Points:        70,
			Difficulty:    "medium",
			Options:       &domain.ChoiceSet{Choices: []string{"Christ the Redeemer", "Statue of Liberty", "Sagrada Familia"}},
			CorrectAnswer: "Christ the Redeemer",
			IsDaily:       true,
			CreatedAt:     now.Add(-2 * time.Minute),
		},
	}
}
