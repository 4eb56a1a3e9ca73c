//	@title			Dropserve API
//	@version		1.0
//	@description	File hosting and URL shortening service.
//
//	@host		localhost:8080
//	@BasePath	/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Session JWT or static API token. Format: **Bearer {token}**

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/dropserve/service/internal/auth"
	"github.com/dropserve/service/internal/cache"
	"github.com/dropserve/service/internal/config"
	"github.com/dropserve/service/internal/db"
	"github.com/dropserve/service/internal/file"
	"github.com/dropserve/service/internal/link"
	appMiddleware "github.com/dropserve/service/internal/middleware"
	"github.com/dropserve/service/internal/reconcile"
	"github.com/dropserve/service/internal/response"
	"github.com/dropserve/service/internal/storage"
	"github.com/dropserve/service/internal/user"

	_ "github.com/dropserve/service/docs/swagger"
)

func main() {
	cfg := config.Load()

	pool, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}

	backend, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("storage backend init failed: %v", err)
	}
	if err := backend.Login(context.Background()); err != nil {
		log.Fatalf("storage backend login failed: %v", err)
	}
	log.Printf("storage backend ready (mode=%s)", cfg.StorageMode)

	downloadCache, err := cache.New(cfg.CacheDir)
	if err != nil {
		log.Fatalf("download cache init failed: %v", err)
	}

	// Wire dependencies: repository → service → handler
	userRepo := user.NewRepository(pool)
	userSvc := user.NewService(userRepo)
	userHandler := user.NewHandler(userSvc)

	authRepo := auth.NewRepository(pool)
	authSvc := auth.NewService(authRepo, userSvc, cfg)
	authHandler := auth.NewHandler(authSvc)

	fileRepo := file.NewRepository(pool)
	fileSvc := file.NewService(fileRepo, backend, downloadCache, generatorFor(userSvc), nil)
	fileHandler := file.NewHandler(fileSvc, cfg.PublicBase)

	linkRepo := link.NewRepository(pool)
	linkSvc := link.NewService(linkRepo, userSvc)
	linkHandler := link.NewHandler(linkSvc, cfg.PublicBase)

	reconciler := reconcile.New(fileRepo, authRepo, backend, downloadCache,
		cfg.IsProduction(), cfg.ReconcileInterval, cfg.ExpirySweepInterval)
	reconciler.Start(context.Background())

	requireAuth := appMiddleware.RequireAuth(cfg.JWTSecret, authSvc.ResolveToken)
	optionalAuth := appMiddleware.OptionalAuth(cfg.JWTSecret, authSvc.ResolveToken)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		response.OK(w, map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", promhttp.Handler())

	// Swagger UI, served at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	// Public content routes
	r.With(optionalAuth).Get("/f/{id}", fileHandler.Download)
	r.Get("/s/{id}", linkHandler.Redirect)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.With(requireAuth).Post("/signup-tokens", authHandler.CreateSignUpToken)
		})

		r.Route("/files", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", fileHandler.Upload)
			r.Get("/", fileHandler.List)
			r.Delete("/{id}", fileHandler.Delete)
			r.Patch("/{id}/privacy", fileHandler.SetPrivacy)
			r.Patch("/{id}/expiry", fileHandler.SetExpiry)
		})

		r.Route("/links", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/", linkHandler.Shorten)
			r.Get("/", linkHandler.List)
			r.Delete("/{id}", linkHandler.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(requireAuth)
			r.Get("/me", userHandler.GetMe)
			r.Patch("/me/generator", userHandler.SetGenerator)
			r.Post("/me/token", userHandler.RegenerateToken)
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
		// No read/write deadlines: large uploads and downloads are
		// expected to outlive any sane fixed timeout.
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Start server in goroutine; wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("server listening on :%s (env=%s)", cfg.Port, cfg.AppEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-quit
	log.Println("shutting down gracefully...")

	reconciler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("forced shutdown: %v", err)
	}

	log.Println("server stopped")
}

// generatorFor adapts the user service to the lifecycle manager's strategy
// lookup. A missing user falls back to the default strategy.
func generatorFor(userSvc *user.Service) file.GeneratorResolver {
	return func(ctx context.Context, ownerID string) string {
		u, err := userSvc.GetByID(ctx, ownerID)
		if err != nil {
			return "random"
		}
		return u.Generator
	}
}
