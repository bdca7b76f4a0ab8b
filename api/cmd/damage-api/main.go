package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"damage-control/api/internal/catalog"
	"damage-control/api/internal/config"
	"damage-control/api/internal/engine/azuredi"
	"damage-control/api/internal/engine/gemini"
	"damage-control/api/internal/engine/openai"
	"damage-control/api/internal/engine/whisper"
	"damage-control/api/internal/extract"
	"damage-control/api/internal/forms"
	"damage-control/api/internal/handle"
	"damage-control/api/internal/httpserver"
	"damage-control/api/internal/inspect"
	"damage-control/api/internal/jobs"
	"damage-control/api/internal/media"
	"damage-control/api/internal/report"
	"damage-control/api/internal/store"
	"damage-control/api/internal/transcription"
)

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	parts, err := catalog.Load(cfg.VehicleConfigPath)
	if err != nil {
		log.Fatalf("vehicle config: %v", err)
	}
	reg, err := forms.Load(cfg.FormsDir)
	if err != nil {
		log.Fatalf("output forms: %v", err)
	}

	// Engines
	vision := gemini.New(cfg.GeminiAPIKey, cfg.GeminiModel, logger)
	reader := azuredi.New(azuredi.Config{
		Endpoint:   cfg.DIEndpoint,
		APIKey:     cfg.DIAPIKey,
		APIVersion: cfg.DIAPIVersion,
		ModelID:    cfg.DIModelID,
	}, logger)
	chat := openai.New(chatConfig(cfg), logger)
	speech := whisper.New(whisper.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.WhisperModel,
	}, logger)

	extractor := extract.New(chat, reg, logger)

	reportOpts := []report.Option{report.WithMaxSide(cfg.ImageMaxSide)}
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		repo := store.NewReportRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			log.Fatalf("database schema: %v", err)
		}
		reportOpts = append(reportOpts, report.WithArchive(repo, cfg.ReportCacheTTL))
		go purgeArchive(ctx, repo, cfg.ReportCacheTTL, logger)
		log.Infow("report archive enabled", "ttl", cfg.ReportCacheTTL.String())
	}

	// Jobs
	jobStore := jobs.NewStore(
		jobs.WithTTL(cfg.JobTTL),
		jobs.WithPendingTimeout(cfg.JobTimeout+time.Minute),
		jobs.WithQueueTimeout(cfg.JobQueueTimeout),
		jobs.WithStoreLogger(logger),
	)
	go jobStore.Run(ctx, cfg.JobSweepInterval)
	pool := jobs.NewPool(jobStore, logger,
		jobs.WithWorkers(cfg.JobWorkers),
		jobs.WithQueueSize(cfg.JobQueueSize),
		jobs.WithTaskTimeout(cfg.JobTimeout),
	)

	fetcher := media.NewFetcher(&http.Client{Timeout: 30 * time.Second}, cfg.DownloadConcurrency, logger)
	h := handle.New(
		inspect.New(vision, fetcher, parts, logger),
		report.New(reader, extractor, logger, reportOpts...),
		transcription.New(jobStore, pool, speech, extractor, logger),
		logger,
		handle.WithRequestTimeout(cfg.RequestTimeout),
		handle.WithMaxUploadMB(cfg.MaxUploadMB),
	)

	srv := httpserver.New(":"+cfg.Port, h.Routes(), logger)
	log.Infow("damage-control api starting",
		"port", cfg.Port,
		"vision_model", vision.GetModel(),
		"chat_model", chat.GetModel(),
		"azure_chat", cfg.UseAzureChat(),
		"workers", cfg.JobWorkers,
	)
	if err := srv.Run(ctx, 15*time.Second); err != nil {
		log.Errorf("http server: %v", err)
	}

	sctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	pool.Shutdown(sctx)
	log.Info("stopped.")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}

func chatConfig(cfg *config.Config) openai.Config {
	if cfg.UseAzureChat() {
		return openai.Config{
			BaseURL:    cfg.AzureOpenAIEndpoint,
			APIKey:     cfg.AzureOpenAIAPIKey,
			Model:      cfg.AzureOpenAIDeployment,
			APIVersion: cfg.AzureOpenAIAPIVersion,
		}
	}
	return openai.Config{
		BaseURL: cfg.OpenAIBaseURL,
		APIKey:  cfg.OpenAIAPIKey,
		Model:   cfg.OpenAIModel,
	}
}

// purgeArchive drops archived reports past the cache TTL once a day.
func purgeArchive(ctx context.Context, repo *store.ReportRepo, ttl time.Duration, logger *zap.Logger) {
	if ttl <= 0 {
		return
	}
	t := time.NewTicker(24 * time.Hour)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			n, err := repo.PurgeOlderThan(ctx, ttl)
			if err != nil {
				logger.Warn("report.archive.purge_failed", zap.Error(err))
				continue
			}
			logger.Info("report.archive.purged", zap.Int64("rows", n))
		}
	}
}
