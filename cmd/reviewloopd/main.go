package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/reviewloop/reviewloop/internal/llm"
	"github.com/reviewloop/reviewloop/internal/metrics"
	"github.com/reviewloop/reviewloop/internal/pipeline"
	"github.com/reviewloop/reviewloop/internal/progress"
	"github.com/reviewloop/reviewloop/internal/store"
	"github.com/reviewloop/reviewloop/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	st, err := store.Open(cfg.databaseURL)
	if err != nil {
		slog.Error("open store", "error", err)
		os.Exit(1)
	}
	defer st.Close()

	// LLM backends
	backends := map[string]llm.Gateway{}
	if cfg.openaiAPIKey != "" {
		backends["openai"] = llm.NewOpenAIGateway(cfg.openaiAPIKey, cfg.openaiModel, cfg.llmMaxTokens)
	}
	if cfg.anthropicAPIKey != "" {
		backends["anthropic"] = llm.NewAnthropicGateway(cfg.anthropicAPIKey, cfg.anthropicModel, cfg.llmMaxTokens)
	}
	if len(backends) == 0 {
		slog.Error("no LLM backend configured, set OPENAI_API_KEY or ANTHROPIC_API_KEY")
		os.Exit(1)
	}
	router := llm.NewEngineRouter(backends, cfg.llmEngine)

	broker := progress.NewBroker()

	formatter := pipeline.NewFormatter(pipeline.FormatterConfig{
		Spans:       st,
		Gateway:     router,
		Progress:    broker,
		ChunkSize:   cfg.chunkSize,
		CallTimeout: cfg.callTimeout,
		MaxSpans:    cfg.maxBatchSpans,
		CloseDelay:  cfg.closeDelay,
	})
	categorizer := pipeline.NewCategorizer(pipeline.CategorizerConfig{
		Annotations: st,
		Gateway:     router,
		CallTimeout: cfg.callTimeout,
	})

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Broker:        broker,
		MaxConcurrent: cfg.maxObservers,
	})

	// Orphan category sweeper
	sweeper := cron.New()
	if _, err := sweeper.AddFunc(cfg.sweepSchedule, func() { sweepOrphanCategories(st) }); err != nil {
		slog.Error("schedule category sweep", "schedule", cfg.sweepSchedule, "error", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	mux := http.NewServeMux()
	registerRoutes(mux, deps{
		store:       st,
		formatter:   formatter,
		categorizer: categorizer,
		wsHandler:   wsHandler,
	})

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	slog.Info("reviewloopd starting", "addr", addr, "engines", router.Engines(), "default_engine", cfg.llmEngine)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("reviewloopd stopped")
}

func sweepOrphanCategories(st *store.Store) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	n, err := st.DeleteOrphanCategories(ctx)
	if err != nil {
		slog.Error("orphan category sweep", "error", err)
		return
	}
	if n > 0 {
		metrics.CategoriesSwept.Add(float64(n))
		slog.Info("orphan categories swept", "removed", n)
	}
}
