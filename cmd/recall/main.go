// Command recall is a transcript store with retrieval-augmented chat.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/custodia-labs/recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/logger"
	"github.com/custodia-labs/recall/internal/metrics"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

// version is set at build time.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cli.SetVersion(version)

	appDir, err := file.DefaultDir()
	if err != nil {
		return err
	}
	if err := services.LoadDotEnv(".env", filepath.Join(appDir, ".env")); err != nil {
		return err
	}

	configStore, err := file.NewConfigStore(appDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	settingsService := services.NewSettingsService(configStore, appDir)

	settings, err := settingsService.Get()
	if err != nil {
		// Only the settings commands can run until the configuration is fixed.
		logger.Error("%v", err)
		cli.SetServices(&cli.Services{Settings: settingsService})
		return cli.ExecuteContext(ctx)
	}
	logger.SetLevel(logger.ParseLevel(settings.LogLevel))

	store, err := sqlite.NewStore(settings.DatabasePath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("close database: %v", err)
		}
	}()

	prompts, err := file.NewPromptStore(filepath.Join(appDir, "prompts"))
	if err != nil {
		return fmt.Errorf("loading prompts: %w", err)
	}

	m := metrics.New()

	result, err := ai.Init(ctx, settings, m)
	if err != nil {
		return err
	}
	defer result.Close()

	vectors := store.VectorIndex(ctx, settings.Embedding.Dimensions)
	if err := ai.ValidateDimensions(result.Embedding, vectors); err != nil {
		return err
	}
	if !vectors.Available() {
		logger.Warn("%v: chat will use whole transcripts", domain.ErrVectorIndexUnavailable)
	}

	c := chunker.New(
		chunker.WithChunkSize(settings.RAG.ChunkSize),
		chunker.WithOverlap(settings.RAG.ChunkOverlap),
	)
	indexer := services.NewIndexer(c, result.Embedding, vectors, m)
	defer indexer.Close()

	assembler := services.NewContextAssembler(
		store.TranscriptStore(),
		store.MessageStore(),
		vectors,
		result.Embedding,
		prompts,
		m,
		services.AssemblerConfig{TopK: settings.RAG.TopK, HistoryLimit: settings.RAG.HistoryLimit},
	)
	dispatcher := services.NewDispatcher(result.Providers, m)

	cli.SetServices(&cli.Services{
		Transcripts: services.NewTranscriptService(
			store.TranscriptStore(),
			store.MessageStore(),
			store.FullTextIndex(m),
			vectors,
			indexer,
		),
		Chat:     services.NewChatService(assembler, dispatcher, prompts, settings.CleanFailurePolicy),
		Index:    services.NewIndexService(store.TranscriptStore(), indexer, result.Embedding, vectors),
		Settings: settingsService,
		Metrics:  m.Handler(),
	})

	return cli.ExecuteContext(ctx)
}
