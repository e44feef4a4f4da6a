package server

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lms/internal/domain/audit"
	"lms/internal/domain/auth"
	"lms/internal/domain/directory"
	"lms/internal/domain/leave"
	"lms/internal/domain/reports"
	"lms/internal/domain/workflow"
	"lms/internal/platform/config"
	"lms/internal/platform/db"
	"lms/internal/platform/jobs"
	audithandler "lms/internal/transport/http/handlers/audit"
	authhandler "lms/internal/transport/http/handlers/auth"
	directoryhandler "lms/internal/transport/http/handlers/directory"
	leavehandler "lms/internal/transport/http/handlers/leave"
	reportshandler "lms/internal/transport/http/handlers/reports"
	workflowhandler "lms/internal/transport/http/handlers/workflow"
	"lms/internal/transport/http/middleware"
)

type App struct {
	Config config.Config
	DB     *pgxpool.Pool
	Router http.Handler
	Jobs   *jobs.Service
}

// New connects, migrates, seeds, and wires the full service graph and router.
// Background jobs are constructed but not started; Run does that.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			pool.Close()
			return nil, err
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			pool.Close()
			return nil, err
		}
	}

	authStore := auth.NewStore(pool)
	authService := auth.NewService(authStore, cfg.JWTSecret, cfg.TokenTTL)
	auditService := audit.New(pool)
	leaveStore := leave.NewStore(pool)
	leaveService := leave.NewService(leaveStore)
	directoryStore := directory.NewStore(pool)
	directoryService := directory.NewService(directoryStore)
	workflowStore := workflow.NewStore(pool, leaveStore)
	workflowStore.LockTimeout = cfg.LockTimeout
	engine := workflow.NewEngine(workflowStore, directoryService)
	workflowService := workflow.NewService(workflowStore, directoryService)
	reportsService := reports.NewService(reports.NewStore(pool))

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle("/metrics", promhttp.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(authService, auditService).RegisterRoutes(r)
		directoryhandler.NewHandler(directoryService, authStore, auditService).RegisterRoutes(r)
		leavehandler.NewHandler(leaveService, authStore, auditService).RegisterRoutes(r)
		workflowhandler.NewHandler(engine, workflowService, authStore, auditService).RegisterRoutes(r)
		reportshandler.NewHandler(reportsService, authStore).RegisterRoutes(r)
		audithandler.NewHandler(auditService, authStore).RegisterRoutes(r)
	})

	return &App{
		Config: cfg,
		DB:     pool,
		Router: router,
		Jobs:   jobs.New(pool, cfg, leaveStore, workflowStore),
	}, nil
}

func (a *App) Close() {
	a.DB.Close()
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	ctx := context.Background()
	app, err := New(ctx, cfg)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()

	app.Jobs.Start(ctx)

	slog.Info("server listening", "addr", cfg.Addr, "env", cfg.Environment)
	if err := http.ListenAndServe(cfg.Addr, app.Router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
