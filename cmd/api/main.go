package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"dinedeals-api/internal/auth"
	"dinedeals-api/internal/cache"
	"dinedeals-api/internal/config"
	"dinedeals-api/internal/database"
	"dinedeals-api/internal/events"
	"dinedeals-api/internal/features"
	"dinedeals-api/internal/handler"
	"dinedeals-api/internal/middleware"
	"dinedeals-api/internal/service"
	"dinedeals-api/internal/tracing"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
)

func main() {
	configFile := flag.String("config", "", "Path to JSON config file")
	flag.Parse()

	// .env is optional; real environments set variables directly.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Initialize tracing
	_, err = tracing.Init(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: "dinedeals-api",
		Environment: cfg.Tracing.Environment,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracing.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracing: %v", err)
		}
	}()

	// Initialize database
	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	// Cache backend: Redis when configured, in-memory otherwise.
	var c cache.Cache
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer rc.Close()
		c = rc
		log.Printf("Cache: redis at %s", cfg.Redis.Addr)
	} else {
		c = cache.NewMemoryCache()
		log.Println("Cache: in-memory")
	}

	// Feature flags
	flags := features.NewManager()
	flags.Register(features.CacheEnabled, cfg.Features.CacheEnabled)
	flags.Register(features.EventHooksEnabled, cfg.Features.EventHooksEnabled)

	// Event hooks
	ev := events.NewManager(cfg.Features.EventHooksEnabled)
	defer ev.Shutdown()
	registerEventLogging(ev)

	// Service and handlers
	svc := service.NewService(db, c, flags, ev)
	h := handler.NewHandlerWithOptions(svc, handler.NewHandlerOptions{
		MaxBodySize: cfg.Security.MaxRequestBodySize,
	})

	// Rate limiter
	rateLimiter := middleware.NewRateLimiter(cfg.RateLimit.Rate,
		time.Duration(cfg.RateLimit.Window)*time.Second)
	defer rateLimiter.Stop()

	// Setup router
	r := chi.NewRouter()

	// Middleware (order matters)
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)

	if cfg.RateLimit.Enabled {
		r.Use(middleware.RateLimit(rateLimiter))
	}
	if cfg.Tracing.Enabled {
		r.Use(middleware.Tracing())
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   strings.Split(cfg.Security.AllowedOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Use(auth.Middleware(db))

	// Routes
	r.Post("/rpc", h.RPC)
	r.Get("/health", h.Health)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Database: %s", cfg.Database.Path)
	if cfg.RateLimit.Enabled {
		log.Printf("Rate limit: %d requests per %d seconds", cfg.RateLimit.Rate, cfg.RateLimit.Window)
	}

	server := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	// Graceful shutdown
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt, syscall.SIGTERM)
		<-sigint

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down server: %v", err)
		}
	}()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Server failed: %v", err)
	}
}

// registerEventLogging attaches a log line to every domain event.
func registerEventLogging(ev *events.Manager) {
	logEvent := func(ctx context.Context, e events.Event) error {
		log.Printf("event %s: %+v", e.Type, e.Data)
		return nil
	}
	ev.Subscribe(events.EventCouponClaimed, logEvent)
	ev.Subscribe(events.EventDealActivated, logEvent)
	ev.Subscribe(events.EventOrderCreated, logEvent)
	ev.Subscribe(events.EventOrderStatusChanged, logEvent)
}
