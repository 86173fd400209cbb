package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewloop/reviewloop/internal/llm"
	"github.com/reviewloop/reviewloop/internal/metrics"
	"github.com/reviewloop/reviewloop/internal/progress"
	"github.com/reviewloop/reviewloop/internal/store"
)

// Formatting pipeline defaults.
const (
	DefaultChunkSize   = 10
	DefaultCallTimeout = 60 * time.Second
	DefaultMaxSpans    = store.MaxBatchSpans
	DefaultCloseDelay  = time.Second
)

// SpanStore is the slice of the span repository the formatting pipeline needs.
type SpanStore interface {
	BatchSpanContents(ctx context.Context, batchID string, limit int) ([]store.SpanContent, error)
	PersistFormatted(ctx context.Context, results []store.FormattedSpan) (int64, error)
	MarkBatchFormatted(ctx context.Context, batchID string) error
}

// ProgressSink receives pipeline progress notifications.
type ProgressSink interface {
	Publish(batchID string, ev progress.Event)
	CloseAfter(batchID string, delay time.Duration)
}

// FormatterConfig wires a Formatter. Zero-valued tunables fall back to the
// package defaults.
type FormatterConfig struct {
	Spans       SpanStore
	Gateway     llm.Gateway
	Progress    ProgressSink
	ChunkSize   int
	CallTimeout time.Duration
	MaxSpans    int
	CloseDelay  time.Duration
}

// Formatter converts a batch's raw span payloads to Markdown through chunked
// parallel LLM calls and persists the results all-or-nothing.
type Formatter struct {
	cfg FormatterConfig
}

// NewFormatter creates a formatter, applying defaults for unset tunables.
func NewFormatter(cfg FormatterConfig) *Formatter {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	if cfg.MaxSpans < 1 {
		cfg.MaxSpans = DefaultMaxSpans
	}
	if cfg.CloseDelay <= 0 {
		cfg.CloseDelay = DefaultCloseDelay
	}
	return &Formatter{cfg: cfg}
}

// FormatBatch runs the formatting pipeline for one batch. Progress events flow
// to the batch's observer channel throughout; the channel closes shortly after
// the terminal event either way. If any chunk fails, nothing is persisted and
// the failed event carries the first error.
func (f *Formatter) FormatBatch(ctx context.Context, batchID string) error {
	defer f.cfg.Progress.CloseAfter(batchID, f.cfg.CloseDelay)

	if err := f.run(ctx, batchID); err != nil {
		slog.Error("batch formatting failed", "batch_id", batchID, "error", err)
		metrics.PipelineRuns.WithLabelValues("formatting", "failed").Inc()
		f.cfg.Progress.Publish(batchID, progress.Event{
			Status:  progress.StatusFailed,
			Message: "batch formatting failed",
			Error:   err.Error(),
		})
		return err
	}

	metrics.PipelineRuns.WithLabelValues("formatting", "completed").Inc()
	return nil
}

func (f *Formatter) run(ctx context.Context, batchID string) error {
	f.cfg.Progress.Publish(batchID, progress.Event{
		Status:  progress.StatusStarted,
		Message: "batch formatting started",
	})

	spans, err := f.cfg.Spans.BatchSpanContents(ctx, batchID, f.cfg.MaxSpans)
	if err != nil {
		return fmt.Errorf("load batch spans: %w", err)
	}

	chunks := chunkSpans(spans, f.cfg.ChunkSize)
	slog.Info("formatting batch", "batch_id", batchID, "spans", len(spans), "chunks", len(chunks))
	f.cfg.Progress.Publish(batchID, progress.Event{
		Status:   progress.StatusProcessing,
		Message:  fmt.Sprintf("formatting %d spans in %d chunks", len(spans), len(chunks)),
		Progress: 25,
	})

	chunkResults, err := joinAll(ctx, chunks, f.formatChunk)
	if err != nil {
		return err
	}
	var results []store.FormattedSpan
	for _, r := range chunkResults {
		results = append(results, r...)
	}

	f.cfg.Progress.Publish(batchID, progress.Event{
		Status:   progress.StatusSaving,
		Message:  "saving formatted spans",
		Progress: 75,
	})

	saved, err := f.cfg.Spans.PersistFormatted(ctx, results)
	if err != nil {
		return fmt.Errorf("persist formatted spans: %w", err)
	}
	metrics.SpansFormatted.Add(float64(saved))

	f.cfg.Progress.Publish(batchID, progress.Event{
		Status:   progress.StatusCompleted,
		Message:  fmt.Sprintf("formatted %d spans", saved),
		Progress: 100,
	})

	if err := f.cfg.Spans.MarkBatchFormatted(ctx, batchID); err != nil {
		return fmt.Errorf("mark batch formatted: %w", err)
	}
	return nil
}

// formatChunk sends one chunk through the gateway and decodes the response.
func (f *Formatter) formatChunk(ctx context.Context, chunk []store.SpanContent) ([]store.FormattedSpan, error) {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return nil, fmt.Errorf("encode chunk: %w", err)
	}

	start := time.Now()
	raw, err := f.cfg.Gateway.Complete(ctx, formatSystemPrompt, string(payload), f.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	metrics.ChunkDuration.Observe(time.Since(start).Seconds())

	return decodeFormattedResults(raw)
}
