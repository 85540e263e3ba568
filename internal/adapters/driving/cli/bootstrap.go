package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/quarry-labs/quarry/internal/adapters/driven/ai"
	"github.com/quarry-labs/quarry/internal/adapters/driven/config/file"
	"github.com/quarry-labs/quarry/internal/adapters/driven/rerank"
	"github.com/quarry-labs/quarry/internal/adapters/driven/storage/sqlite"
	vectormem "github.com/quarry-labs/quarry/internal/adapters/driven/vector/memory"
	"github.com/quarry-labs/quarry/internal/connectors/filesystem"
	"github.com/quarry-labs/quarry/internal/connectors/github"
	"github.com/quarry-labs/quarry/internal/connectors/web"
	"github.com/quarry-labs/quarry/internal/core/ports/driven"
	"github.com/quarry-labs/quarry/internal/core/services"
	"github.com/quarry-labs/quarry/internal/logger"
	"github.com/quarry-labs/quarry/internal/postprocessors"
	"github.com/quarry-labs/quarry/internal/postprocessors/chunker"
)

// bootstrapped is true once the service graph has been wired (or a test
// has injected its own services).
var bootstrapped bool

// Concrete handles kept alongside the port variables. The serve command
// needs them for hot reload; everything else goes through the ports.
var (
	answerWorkflow *services.AnswerService
	configStore    *file.ConfigStore
	promptStore    *file.PromptStore
)

// closers release resources acquired during bootstrap, in reverse order.
var closers []func() error

// bootstrapServices wires the full application graph behind the driving
// port variables. Commands that need no services skip it. A missing AI
// provider degrades to keyword-only retrieval rather than failing; only
// the config store and the corpus store are load-bearing.
func bootstrapServices(cmd *cobra.Command) error {
	if bootstrapped {
		return nil
	}
	switch cmd.Name() {
	case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return nil
	}
	bootstrapped = true

	ctx := cmd.Context()

	// Configuration and logging first so everything after reports
	// through the configured sinks.
	cs, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config store: %w", err)
	}
	configStore = cs

	settingsSvc := services.NewSettingsService(cs, ai.NewConfigValidator())
	settingsService = settingsSvc

	settings, err := settingsSvc.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	if err := logger.Init(logger.Config{Level: settings.Log.Level, File: settings.Log.File}); err != nil {
		logger.Warn("Logger configuration: %v", err)
	}

	// Corpus store.
	store, err := sqlite.NewStore("")
	if err != nil {
		return fmt.Errorf("opening corpus store: %w", err)
	}
	closers = append(closers, store.Close)
	logger.Debug("Corpus store: %s", store.Path())

	// AI providers, degrading gracefully when unreachable.
	aiResult := ai.Initialise(settings)
	for _, w := range aiResult.Warnings {
		logger.Warn("%s", w)
	}
	closers = append(closers, func() error {
		aiResult.Close()
		return nil
	})

	// The vector index needs an embedder to be useful; without one the
	// corpus stays queryable through keyword search.
	var vectorIdx driven.VectorIndex
	if aiResult.EmbeddingService != nil {
		idx, err := vectormem.LoadFromStore(ctx, store.DocumentStore(), aiResult.EmbeddingService.Dimensions())
		if err != nil {
			logger.Warn("Vector index unavailable: %v", err)
		} else {
			vectorIdx = idx
		}
	}

	var reranker driven.Reranker
	if settings.Reranker.BaseURL != "" {
		r, err := rerank.NewReranker(rerank.Config{
			BaseURL: settings.Reranker.BaseURL,
			Model:   settings.Reranker.Model,
		})
		if err != nil {
			logger.Warn("Reranker unavailable: %v", err)
		} else {
			reranker = r
		}
	}

	retrieval := services.NewRetrievalService(
		store.DocumentStore(),
		store.SearchEngine(),
		vectorIdx,
		aiResult.EmbeddingService,
		reranker,
	)
	searchService = retrieval

	answer := services.NewAnswerService(aiResult.LanguageModel, retrieval, settings.Workflow)
	ps, err := file.NewPromptStore("")
	if err != nil {
		logger.Warn("Prompt store unavailable, using built-in prompts: %v", err)
	} else {
		promptStore = ps
		answer.SetPromptStore(ps)
	}
	answerWorkflow = answer
	answerService = answer

	ingestService = services.NewIngestService(
		store.DocumentStore(),
		store.SearchEngine(),
		vectorIdx,
		aiResult.EmbeddingService,
		postprocessors.NewPipeline(chunker.New()),
		web.New(),
		filesystem.New(),
		github.New(ctx, os.Getenv("GITHUB_TOKEN")),
	)

	return nil
}

// shutdownServices releases bootstrap resources in reverse order.
func shutdownServices() {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			logger.Warn("Shutdown: %v", err)
		}
	}
	closers = nil
	logger.Sync()
}
