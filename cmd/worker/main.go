package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"roomviz/internal/generation"
	"roomviz/internal/infra"
	"roomviz/internal/providers/genai"
	"roomviz/internal/providers/imageedit"
	"roomviz/internal/storage"
)

const claimPollInterval = 2 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	storagePath := cfg.StoragePath
	if !filepath.IsAbs(storagePath) {
		if abs, err := filepath.Abs(storagePath); err == nil {
			storagePath = abs
		}
	}
	store, err := storage.NewFileStore(storagePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	apiKey := strings.TrimSpace(cfg.ImageAPIKey)
	genaiClient, err := genai.NewClient(genai.Options{
		APIKey:     apiKey,
		BaseURL:    cfg.ImageBaseURL,
		Model:      cfg.ImageModel,
		HTTPClient: &http.Client{Timeout: 180 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure image client")
	}
	if apiKey == "" {
		logger.Warn().Str("model", genaiClient.Model()).Msg("worker: image api key missing, rendering synthetic frames")
	}

	publisher := generation.NewPublisher(runner, store, logger)
	engine := generation.NewEngine(runner, store, imageedit.NewGenAIEditor(genaiClient), publisher, cfg.StageAttemptBudget, logger)

	concurrency := cfg.WorkerConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	logger.Info().Int("concurrency", concurrency).Msg("worker: started")

	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runClaimLoop(ctx, engine, logger)
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("worker: stopped with error")
		return
	}
	logger.Info().Msg("worker: stopped")
}

// runClaimLoop drains the run queue one stage at a time, sleeping only when
// no work is available. Stages from the same run are serialized by the queue
// itself, so concurrent loops never touch one run simultaneously.
func runClaimLoop(ctx context.Context, engine *generation.Engine, logger infra.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := engine.RunOnce(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("worker: claim failed")
		}
		if claimed && err == nil {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(claimPollInterval):
		}
	}
}
