package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/jwtauth"
	"github.com/go-chi/render"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"github.com/tendant/chi-demo/app"
	apikey "github.com/tendant/chi-demo/middleware"
	"github.com/tendant/simple-omnibar/pkg/omnibar/api"
	"github.com/tendant/simple-omnibar/pkg/omnibar/config"
)

func main() {
	envFile := flag.String("env", ".env", "optional dotenv file loaded before reading the environment")
	flag.Usage = cleanenv.FUsage(flag.CommandLine.Output(), &config.EnvSettings{}, nil, flag.Usage)
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil {
		// It's okay if the file doesn't exist, the environment and defaults still apply
		slog.Info("No .env file loaded", "file", *envFile, "err", err)
	}

	serverConfig, err := config.Load(config.WithEnv())
	if err != nil {
		slog.Error("Failed to load server configuration", "err", err)
		os.Exit(1)
	}

	ctx := context.Background()
	services, err := serverConfig.BuildServices(ctx, logger)
	if err != nil {
		slog.Error("Failed to build services", "err", err)
		os.Exit(1)
	}
	defer services.Close()

	registry := api.NewRegistry(logger, services.CompositionOptions()...)

	handler, err := routes(serverConfig, services, registry, logger)
	if err != nil {
		slog.Error("Failed to set up routes", "err", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%s", serverConfig.Port),
		Handler: handler,
	}

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go sweepIdle(sweepCtx, registry, serverConfig.IdleTimeout)

	go func() {
		slog.Info("Omnibar server starting",
			"port", serverConfig.Port,
			"env", serverConfig.Environment,
			"database", serverConfig.DatabaseType,
			"storage", serverConfig.Storage.Type,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server error", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "err", err)
	}
	// Open compositions are kept as drafts.
	registry.Shutdown(shutdownCtx)

	slog.Info("Server exiting")
}

func routes(cfg *config.ServerConfig, services *config.Services, registry *api.Registry, logger *slog.Logger) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(api.LoggingMiddleware(logger))
	r.Use(api.RecoveryMiddleware(logger))
	r.Use(middleware.Timeout(60 * time.Second))

	if cfg.Environment == "development" {
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

				if r.Method == http.MethodOptions {
					w.WriteHeader(http.StatusOK)
					return
				}

				next.ServeHTTP(w, r)
			})
		})
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]interface{}{
			"status":       "healthy",
			"environment":  cfg.Environment,
			"database":     cfg.DatabaseType,
			"storage":      cfg.Storage.Type,
			"compositions": registry.Len(),
		})
	})

	app.RoutesHealthz(r)
	app.RoutesHealthzReady(r)

	var apiKeyMiddleware func(http.Handler) http.Handler
	if cfg.APIKeySHA256 != "" {
		mw, err := apikey.ApiKeyMiddleware(apikey.ApiKeyConfig{
			APIKeys: map[string]string{"omnibar": cfg.APIKeySHA256},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize API key middleware: %w", err)
		}
		apiKeyMiddleware = mw
	}

	compositions := api.NewCompositionHandler(registry, logger).Routes()
	posts := api.NewPostHandler(services.Repository, logger)
	r.Route("/api/v1", func(r chi.Router) {
		if apiKeyMiddleware != nil {
			r.Use(apiKeyMiddleware)
		}
		r.Route("/compositions", func(r chi.Router) {
			if cfg.JWTSecret != "" {
				r.Use(api.Authenticated(jwtauth.New("HS256", []byte(cfg.JWTSecret), nil)))
			}
			r.Mount("/", compositions)
		})
		r.Mount("/posts", posts.Routes())
		r.Mount("/authors", posts.AuthorRoutes())
	})

	return r, nil
}

// sweepIdle cancels abandoned compositions so their drafts are kept and
// their memory released.
func sweepIdle(ctx context.Context, registry *api.Registry, idle time.Duration) {
	ticker := time.NewTicker(max(idle/2, time.Second))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := registry.Expire(ctx, idle); n > 0 {
				slog.Info("Expired idle compositions", "count", n)
			}
		}
	}
}
