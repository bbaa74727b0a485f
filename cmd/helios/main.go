package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/helios-eng/helios/internal/catalog"
	"github.com/helios-eng/helios/internal/config"
	"github.com/helios-eng/helios/internal/domain"
	"github.com/helios-eng/helios/internal/index/keyword"
	"github.com/helios-eng/helios/internal/index/semantic"
	logpkg "github.com/helios-eng/helios/internal/logger"
	"github.com/helios-eng/helios/internal/metrics"
	"github.com/helios-eng/helios/internal/repository/embcache"
	chiTransport "github.com/helios-eng/helios/internal/transport/chi"
	openaiTransport "github.com/helios-eng/helios/internal/transport/openai"
	answeruc "github.com/helios-eng/helios/internal/usecase/answer"
	exportuc "github.com/helios-eng/helios/internal/usecase/export"
	healthuc "github.com/helios-eng/helios/internal/usecase/health"
	retrievaluc "github.com/helios-eng/helios/internal/usecase/retrieval"
	"github.com/helios-eng/helios/internal/version"
)

func main() {
	// Local development convenience; a missing .env is not an error.
	_ = godotenv.Load()

	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger, err := logpkg.New(env, cfg.Logging.Level)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting helios API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("catalog", cfg.Catalog.Path),
	)

	metrics.Register()

	embedder := buildEmbedder(cfg, logger)

	ctx := context.Background()

	keywordIdx, semanticIdx, cat, err := buildIndexes(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Fatal("Failed to build indexes", zap.Error(err))
	}

	retrievalSvc := retrievaluc.New(keywordIdx, semanticIdx, retrievaluc.Config{
		Weights: retrievaluc.Weights{
			Semantic: cfg.Retrieval.SemanticWeight,
			Keyword:  cfg.Retrieval.KeywordWeight,
		},
		CandidateFactor: cfg.Retrieval.CandidateFactor,
	}, logger)

	chat := openaiTransport.NewChatClient(cfg.Answer.APIKey, cfg.Answer.BaseURL)
	answerSvc := answeruc.New(chat, cfg.Answer.Model, logger)
	exportSvc := exportuc.New(cat)
	healthSvc := healthuc.New(healthChecker(embedder), semanticIdx)

	// Rebuild reloads the catalog from disk and swaps both indexes in one
	// atomic step; in-flight queries finish on the old snapshot.
	rebuild := func() error {
		kw, sem, _, err := buildIndexes(context.Background(), cfg, embedder, logger)
		if err != nil {
			return fmt.Errorf("rebuild indexes: %w", err)
		}
		retrievalSvc.Swap(kw, sem)
		return nil
	}

	server := chiTransport.NewServer(
		retrievalSvc, answerSvc, exportSvc, healthSvc,
		rebuild, cfg.Retrieval.TopK, logger,
	)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Routes(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("Received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
}

// buildEmbedder assembles the embedder chain: OpenAI -> LRU cache. The cache
// serves query-time embeddings; index builds go through the batch API.
func buildEmbedder(cfg config.Config, logger *zap.Logger) domain.Embedder {
	base := openaiTransport.NewEmbedder(&openaiTransport.Config{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimensions: cfg.Embedding.Dimensions,
		Provider:   cfg.Embedding.Provider,
		Logger:     logger,
	})

	if cfg.Cache.Size <= 0 {
		return base
	}

	cached, err := embcache.New(base, cfg.Embedding.Model, cfg.Cache.Size)
	if err != nil {
		logger.Warn("Embedding cache disabled", zap.Error(err))
		return base
	}
	logger.Info("Embedding cache enabled", zap.Int("size", cfg.Cache.Size))
	return cached
}

// buildIndexes loads and normalizes the catalog, then builds both retrieval
// indexes from the same record derivation.
func buildIndexes(
	ctx context.Context, cfg config.Config, embedder domain.Embedder, logger *zap.Logger,
) (*keyword.Index, *semantic.Index, *catalog.Catalog, error) {
	cat, err := catalog.Load(cfg.Catalog.Path)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load catalog: %w", err)
	}

	records := catalog.Normalize(cat)
	logger.Info("Catalog normalized", zap.Int("records", len(records)))

	keywordIdx := keyword.New(records)

	start := time.Now()
	semanticIdx, err := semantic.Build(ctx, records, embedder, semantic.Config{
		M:                cfg.Index.HNSWM,
		EfSearch:         cfg.Index.HNSWEFSearch,
		EmbedConcurrency: cfg.Index.EmbedConcurrency,
		BatchSize:        cfg.Embedding.BatchSize,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("build semantic index: %w", err)
	}
	logger.Info("Semantic index built",
		zap.Int("records", semanticIdx.Len()),
		zap.Duration("took", time.Since(start)),
	)

	return keywordIdx, semanticIdx, cat, nil
}

// healthChecker exposes the embedder's health probe when it has one.
func healthChecker(embedder domain.Embedder) healthuc.EmbeddingChecker {
	if hc, ok := embedder.(domain.HealthChecker); ok {
		return hc
	}
	return nil
}
