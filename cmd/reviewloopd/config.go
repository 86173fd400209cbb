package main

import (
	"time"

	"github.com/reviewloop/reviewloop/internal/env"
	"github.com/reviewloop/reviewloop/internal/pipeline"
	"github.com/reviewloop/reviewloop/internal/store"
)

type config struct {
	port            string
	databaseURL     string
	openaiAPIKey    string
	openaiModel     string
	anthropicAPIKey string
	anthropicModel  string
	llmEngine       string
	llmMaxTokens    int
	chunkSize       int
	callTimeout     time.Duration
	maxBatchSpans   int
	closeDelay      time.Duration
	maxObservers    int
	sweepSchedule   string
	shutdownTimeout time.Duration
}

func loadConfig() config {
	return config{
		port:            env.Str("REVIEWLOOP_PORT", "8000"),
		databaseURL:     env.Str("DATABASE_URL", "postgres://localhost:5432/reviewloop?sslmode=disable"),
		openaiAPIKey:    env.Str("OPENAI_API_KEY", ""),
		openaiModel:     env.Str("OPENAI_MODEL", "gpt-4o-mini"),
		anthropicAPIKey: env.Str("ANTHROPIC_API_KEY", ""),
		anthropicModel:  env.Str("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		llmEngine:       env.Str("LLM_ENGINE", "openai"),
		llmMaxTokens:    env.Int("LLM_MAX_TOKENS", 8192),
		chunkSize:       env.Int("FORMAT_CHUNK_SIZE", pipeline.DefaultChunkSize),
		callTimeout:     env.Dur("LLM_CALL_TIMEOUT", pipeline.DefaultCallTimeout),
		maxBatchSpans:   env.Int("MAX_BATCH_SPANS", store.MaxBatchSpans),
		closeDelay:      env.Dur("PROGRESS_CLOSE_DELAY", pipeline.DefaultCloseDelay),
		maxObservers:    env.Int("MAX_PROGRESS_OBSERVERS", 100),
		sweepSchedule:   env.Str("CATEGORY_SWEEP_SCHEDULE", "0 3 * * *"),
		shutdownTimeout: env.Dur("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}
