package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"roomviz/internal/analytics"
	"roomviz/internal/catalog"
	"roomviz/internal/generation"
	"roomviz/internal/http/handlers"
	"roomviz/internal/http/httpapi"
	"roomviz/internal/infra"
	"roomviz/internal/infra/geoip"
	"roomviz/internal/middleware"
	"roomviz/internal/providers/genai"
	"roomviz/internal/providers/imageedit"
	"roomviz/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	genaiClient, err := genai.NewClient(genai.Options{
		APIKey:     cfg.ImageAPIKey,
		BaseURL:    cfg.ImageBaseURL,
		Model:      cfg.ImageModel,
		HTTPClient: &http.Client{Timeout: cfg.HTTPWriteTimeout * 6},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure image client")
	}

	claimer := generation.NewClaimer(runner, cfg.StalePendingAfter, logger)
	publisher := generation.NewPublisher(runner, store, logger)
	engine := generation.NewEngine(runner, store, imageedit.NewGenAIEditor(genaiClient), publisher, cfg.StageAttemptBudget, logger)

	var countryLookup middleware.CountryLookup
	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip database unavailable; country resolution disabled")
	} else if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Catalog:        catalog.NewStore(runner),
		Claimer:        claimer,
		Engine:         engine,
		Store:          store,
		Analytics:      analytics.NewRecorder(runner, logger),
		Logger:         logger,
		StorageBaseURL: cfg.StorageBaseURL,
		DefaultModel:   cfg.ImageModel,
	}

	router := httpapi.NewRouter(app, httpapi.Options{
		Logger:          logger,
		AllowedOrigins:  cfg.AllowedOrigins,
		RateLimitPerMin: cfg.RateLimitPerMin,
		DefaultLocale:   "en",
		CountryLookup:   countryLookup,
	})

	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
