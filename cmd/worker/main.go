package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mycloset/internal/domain"
	"mycloset/internal/imagefetch"
	"mycloset/internal/infra"
	"mycloset/internal/providers/genai"
	"mycloset/internal/storage"
	"mycloset/internal/tryon"
)

const (
	pollInterval    = 2 * time.Second
	cleanupInterval = time.Minute
)

// The worker drains pending sessions the API left behind (client crashed or
// never called process) and runs the periodic cleanup pass. Sessions younger
// than StalePendingAfter are left alone so in-request processing wins.
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

	geminiClient, err := genai.NewClient(ctx, genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GenerateTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	defer geminiClient.Close()

	store, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure storage")
	}

	processor := tryon.NewProcessor(tryon.Options{
		SQL:           runner,
		Generator:     geminiClient,
		Downloader:    imagefetch.New(&http.Client{Timeout: cfg.GenerateTimeout}, cfg.MaxImageBytes),
		Publisher:     storage.NewPublisher(store, logger),
		MaxRetries:    cfg.MaxGenerateRetry,
		BaseDelay:     cfg.RetryBaseDelay,
		PendingTTL:    cfg.PendingTTL,
		ProcessingTTL: cfg.ProcessingTTL,
		Logger:        logger,
	})

	if err := run(ctx, processor, cfg.StalePendingAfter, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func run(ctx context.Context, processor *tryon.Processor, grace time.Duration, logger infra.Logger) error {
	logger.Info().Msg("worker: started")
	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			if _, _, err := processor.Cleanup(ctx); err != nil {
				logger.Error().Err(err).Msg("worker: cleanup failed")
			}
			continue
		default:
		}

		session, err := processor.ProcessNext(ctx, grace)
		if err != nil {
			if errors.Is(err, domain.ErrNotClaimable) {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(pollInterval):
				}
				continue
			}
			logger.Error().Err(err).Msg("worker: session processing failed")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(pollInterval):
			}
			continue
		}
		logger.Info().
			Str("session_id", session.ID).
			Str("status", string(session.Status)).
			Msg("worker: session finished")
	}
}

func newObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.SignedURLTTL)
	}
	logger.Warn().Str("path", cfg.StoragePath).Msg("worker: no s3 bucket configured, using filesystem storage")
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
