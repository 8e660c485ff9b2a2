package main

import (
	"encoding/json"
	stdlog "log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/dansever/fleet-ai-sub002/src/cache"
	"github.com/dansever/fleet-ai-sub002/src/config"
	"github.com/dansever/fleet-ai-sub002/src/database"
	"github.com/dansever/fleet-ai-sub002/src/handlers"
	"github.com/dansever/fleet-ai-sub002/src/logger"
	"github.com/dansever/fleet-ai-sub002/src/processors"
	"github.com/dansever/fleet-ai-sub002/src/services"
	"github.com/dansever/fleet-ai-sub002/src/units"
)

var limiter = rate.NewLimiter(rate.Every(100*time.Millisecond), 30)

func rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.Allow() {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			logger.L.Warn("Rate limit exceeded", "path", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func enableCORS(next http.Handler) http.Handler {
	allowedOrigins := make(map[string]bool)
	for _, origin := range config.Cfg.AllowedOrigins {
		allowedOrigins[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE, PATCH")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Requested-With")
		} else if origin == "" {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func main() {
	config.LoadConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	logger.L.Info("Fuel bid conversion server starting...")

	logger.L.Info("Initializing cache database...", "path", config.Cfg.CacheDBPath)
	db := database.InitDB(config.Cfg.CacheDBPath)
	database.RunMigrations(db)
	defer db.Close()

	conversionCache := cache.New(db, config.Cfg.CacheKeyPrefix)
	defer conversionCache.Close()

	provider := services.NewProviderClient(
		config.Cfg.ProviderBaseURL,
		config.Cfg.ProviderTimeout,
		config.Cfg.ProviderRateLimitRPS,
		config.Cfg.ProviderBurst,
	)

	converter := services.NewConversionService(units.NewConverter(), provider)
	aggregator := processors.NewFeeAggregator(config.Cfg.EstimatedTaxRate)
	bidService := services.NewBidConversionService(
		converter,
		aggregator,
		conversionCache,
		config.Cfg.RateCacheTTL,
		config.Cfg.RunCacheTTL,
	)

	conversionHandler := handlers.NewConversionHandler(bidService, converter, conversionCache)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(handlers.ContextualLoggerMiddleware)
	r.Use(enableCORS)
	r.Use(rateLimitMiddleware)

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"message": "Fuel bid conversion backend is running"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", conversionHandler.HandleHealth)
		r.Get("/units", conversionHandler.HandleListUnits)
		r.Post("/conversions", conversionHandler.HandleConvert)
		r.Post("/conversions/bids", conversionHandler.HandleConvertBids)
		r.Post("/cache/clear", conversionHandler.HandleClearCache)
	})

	serverAddr := ":" + config.Cfg.Port
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	logger.L.Info("Server starting", "address", serverAddr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		stdlog.Fatalf("Failed to start server: %v", err)
	}
}
