// Package server assembles the progress service: stores, engine, evaluator
// pool, event sinks, cron jobs and the chi router.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/cmdshift-learn/internal/auth"
	"github.com/sakif/cmdshift-learn/internal/config"
	"github.com/sakif/cmdshift-learn/internal/content"
	"github.com/sakif/cmdshift-learn/internal/eventlog"
	"github.com/sakif/cmdshift-learn/internal/handler"
	"github.com/sakif/cmdshift-learn/internal/jobs"
	"github.com/sakif/cmdshift-learn/internal/metrics"
	"github.com/sakif/cmdshift-learn/internal/middleware"
	"github.com/sakif/cmdshift-learn/internal/progress"
	"github.com/sakif/cmdshift-learn/internal/repository"
	"github.com/sakif/cmdshift-learn/internal/repository/memory"
	sqliteRepo "github.com/sakif/cmdshift-learn/internal/repository/sqlite"
	"github.com/sakif/cmdshift-learn/internal/service"
)

const shutdownTimeout = 30 * time.Second

// Server owns every long-lived resource and closes them on shutdown.
type Server struct {
	router *chi.Mux
	config config.Config
	logger *slog.Logger

	db        *sqliteRepo.DB // nil with STORE=memory
	redis     *redis.Client  // nil without REDIS_ADDR
	metrics   *metrics.Metrics
	evaluator *progress.Evaluator
	scheduler *jobs.Scheduler
	engine    *progress.Engine
}

// stores groups the three repositories; sqlite provides all of them, the
// memory backend pairs its store with an in-memory catalog.
type stores struct {
	profiles repository.ProfileRepository
	events   repository.EventRepository
	content  repository.ContentRepository
}

// New builds the server. On error everything opened so far is closed again.
func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	s := &Server{
		router:  chi.NewRouter(),
		config:  cfg,
		logger:  logger,
		metrics: metrics.New(),
	}

	if err := s.setup(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Server) setup(ctx context.Context) error {
	st, err := s.openStores(ctx)
	if err != nil {
		return err
	}

	sink, err := s.eventSink(ctx, st.events)
	if err != nil {
		return err
	}

	s.evaluator = progress.NewEvaluator(st.profiles, sink, s.metrics, progress.EvaluatorConfig{
		Workers:   s.config.EvaluatorWorkers,
		QueueSize: s.config.EvaluatorQueue,
		Timeout:   progress.DefaultEvaluatorConfig().Timeout,
	}, s.logger)
	s.evaluator.Start()

	s.engine = progress.NewEngine(st.profiles, sink, s.evaluator, s.logger, progress.WithMetrics(s.metrics))

	s.scheduler = jobs.NewScheduler(s.logger)
	if s.config.EventRetention > 0 {
		pruner := jobs.NewEventPruner(st.events, s.config.EventRetention, s.metrics, s.logger)
		if err := s.scheduler.Add(s.config.PruneSchedule, "prune-events", pruner); err != nil {
			return err
		}
	}

	if err := s.setupRoutes(st); err != nil {
		return fmt.Errorf("setting up routes: %w", err)
	}
	return nil
}

func (s *Server) openStores(ctx context.Context) (stores, error) {
	switch s.config.Store {
	case config.StoreMemory:
		catalog := content.NewCatalog()
		if err := content.Seed(ctx, catalog, content.DefaultItems()); err != nil {
			return stores{}, err
		}
		mem := memory.New()
		s.logger.Warn("using in-memory store; profiles are lost on restart",
			slog.Int("contentItems", len(catalog.Items())),
		)
		return stores{profiles: mem, events: mem, content: catalog}, nil

	default:
		if dir := filepath.Dir(s.config.DBPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return stores{}, fmt.Errorf("creating database directory %s: %w", dir, err)
			}
		}
		db, err := sqliteRepo.New(s.config.DBPath)
		if err != nil {
			return stores{}, fmt.Errorf("opening database: %w", err)
		}
		s.db = db
		if s.config.SeedContent {
			if err := content.Seed(ctx, db, content.DefaultItems()); err != nil {
				return stores{}, err
			}
		}
		return stores{profiles: db, events: db, content: db}, nil
	}
}

// eventSink fans events out to the log, the event table and, when
// configured, a Redis stream.
func (s *Server) eventSink(ctx context.Context, events repository.EventRepository) (eventlog.Sink, error) {
	sinks := eventlog.Multi{
		eventlog.NewSlogSink(s.logger),
		eventlog.NewStoreSink(events),
	}
	if s.config.RedisAddr == "" {
		return sinks, nil
	}

	client, err := eventlog.NewRedisClient(ctx, s.config.RedisAddr, s.config.RedisPassword, s.config.RedisDB)
	if err != nil {
		return nil, err
	}
	s.redis = client
	s.logger.Info("publishing events to redis",
		slog.String("addr", s.config.RedisAddr),
		slog.String("stream", s.config.RedisStream),
	)
	return append(sinks, eventlog.NewRedisSink(client, s.config.RedisStream, 0)), nil
}

func (s *Server) setupRoutes(st stores) error {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.Metrics(s.metrics))

	checks := map[string]handler.Pinger{}
	if s.db != nil {
		checks["database"] = s.db
	}
	if s.redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return s.redis.Ping(ctx).Err()
		})
	}
	health := handler.NewHealthHandler(checks, s.logger)
	s.router.Get("/healthz", health.HandleHealth)
	s.router.Handle("/metrics", s.metrics.Handler())

	keys, err := auth.NewAPIKeyValidator(s.config.APIKeys)
	if err != nil {
		return err
	}
	authn := auth.Authenticator{Keys: keys}

	if s.config.AuthEnabled() {
		tokens, err := auth.NewTokenService(s.config.JWTSecret)
		if err != nil {
			return err
		}
		authn.Tokens = tokens

		if s.config.GitHubClientID != "" {
			github := auth.NewGitHubProvider(s.config.GitHubClientID, s.config.GitHubClientSecret, s.config.GitHubCallbackURL)
			logins := service.NewAuthService(s.engine, tokens, s.logger)
			secure := strings.HasPrefix(s.config.GitHubCallbackURL, "https://")
			authHandler := handler.NewAuthHandler(github, logins, tokens, secure, s.logger)

			s.router.Route("/auth", func(r chi.Router) {
				r.Get("/github/login", authHandler.HandleGitHubLogin)
				r.Get("/github/callback", authHandler.HandleGitHubCallback)
				r.Post("/logout", authHandler.HandleLogout)
			})
		} else {
			s.logger.Warn("GITHUB_CLIENT_ID not set; OAuth login routes are disabled")
		}
	} else {
		s.logger.Warn("JWT_SECRET not set; only API keys can authenticate")
	}

	profiles := handler.NewProfileHandler(s.engine, s.logger)
	prog := handler.NewProgressHandler(s.engine, content.NewLookup(st.content), s.logger)
	events := handler.NewEventHandler(st.events, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(auth.RequireAuth(authn))

		r.Route("/profile", func(r chi.Router) {
			r.Get("/me", profiles.HandleGetMe)
			r.Put("/me", profiles.HandleUpdateMe)
			r.Post("/xp", profiles.HandleAwardXP)
			r.Post("/daily-login", profiles.HandleDailyLogin)
			r.Get("/achievements", profiles.HandleAchievements)
		})

		r.Route("/progress", func(r chi.Router) {
			r.Get("/", prog.HandleGetProgress)
			r.Post("/tutorials/{id}/complete", prog.HandleCompleteTutorial)
			r.Post("/challenges/{id}/complete", prog.HandleCompleteChallenge)
		})

		r.Get("/events", events.HandleList)
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until SIGINT/SIGTERM, then shuts down gracefully and
// releases every resource.
func (s *Server) Start() error {
	defer s.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	s.scheduler.Start()
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("store", s.config.Store),
			slog.String("url", fmt.Sprintf("http://localhost:%d", s.config.Port)),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		if err := s.scheduler.Stop(ctx); err != nil {
			s.logger.Warn("scheduler did not stop cleanly", slog.String("error", err.Error()))
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close drains the evaluator and closes Redis and the database. It is safe
// to call on a partly built server and more than once.
func (s *Server) Close() error {
	if s.evaluator != nil {
		s.evaluator.Close()
	}
	var errs []error
	if s.redis != nil {
		errs = append(errs, s.redis.Close())
		s.redis = nil
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
		s.db = nil
	}
	return errors.Join(errs...)
}
