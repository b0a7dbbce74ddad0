package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"mycloset/internal/http/handlers"
	httpapi "mycloset/internal/http/httpapi"
	"mycloset/internal/imagefetch"
	"mycloset/internal/infra"
	"mycloset/internal/providers/genai"
	"mycloset/internal/storage"
	"mycloset/internal/tryon"
	"mycloset/internal/validation"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	dbpool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to connect database")
	}
	defer dbpool.Close()

	runner := infra.NewSQLRunner(dbpool, logger)

	geminiClient, err := genai.NewClient(ctx, genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		Model:   cfg.GeminiModel,
		Timeout: cfg.GenerateTimeout,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure gemini client")
	}
	defer geminiClient.Close()

	store, err := newObjectStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("api: failed to configure storage")
	}
	publisher := storage.NewPublisher(store, logger)
	fetcher := imagefetch.New(&http.Client{Timeout: cfg.GenerateTimeout}, cfg.MaxImageBytes)

	processor := tryon.NewProcessor(tryon.Options{
		SQL:           runner,
		Generator:     geminiClient,
		Downloader:    fetcher,
		Publisher:     publisher,
		MaxRetries:    cfg.MaxGenerateRetry,
		BaseDelay:     cfg.RetryBaseDelay,
		PendingTTL:    cfg.PendingTTL,
		ProcessingTTL: cfg.ProcessingTTL,
		Logger:        logger,
	})

	app := handlers.NewApp(runner, cfg, logger, validation.New(), processor, geminiClient, fetcher)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("api: http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("api: failed to shutdown server")
	}
	logger.Info().Msg("api: stopped")
}

// newObjectStore selects S3 when a bucket is configured, otherwise the local
// filesystem store for development.
func newObjectStore(ctx context.Context, cfg *infra.Config, logger infra.Logger) (storage.ObjectStore, error) {
	if cfg.S3Bucket != "" {
		return storage.NewS3Store(ctx, cfg.S3Bucket, cfg.S3Region, cfg.SignedURLTTL)
	}
	logger.Warn().Str("path", cfg.StoragePath).Msg("api: no s3 bucket configured, using filesystem storage")
	return storage.NewFileStore(cfg.StoragePath, cfg.StorageBaseURL)
}
