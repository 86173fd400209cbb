package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/reviewloop/reviewloop/internal/llm"
	"github.com/reviewloop/reviewloop/internal/metrics"
	"github.com/reviewloop/reviewloop/internal/store"
)

// AnnotationStore is the slice of the annotation repository the categorization
// pipeline needs.
type AnnotationStore interface {
	BadAnnotations(ctx context.Context, batchID string) ([]store.BadAnnotation, error)
	ClearAnnotationCategories(ctx context.Context, annotationIDs []string) error
	InsertCategories(ctx context.Context, labels []string) (map[string]string, error)
	AssignCategories(ctx context.Context, assignments []store.CategoryAssignment) error
}

// CategorizerConfig wires a Categorizer.
type CategorizerConfig struct {
	Annotations AnnotationStore
	Gateway     llm.Gateway
	CallTimeout time.Duration
}

// Categorizer derives failure-mode categories for a batch's bad-rated
// annotations through two sequential LLM calls: one to cluster reviewer notes
// into labels, one to assign labels back to spans.
type Categorizer struct {
	cfg CategorizerConfig
}

// NewCategorizer creates a categorizer, applying the default call timeout when
// unset.
func NewCategorizer(cfg CategorizerConfig) *Categorizer {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}
	return &Categorizer{cfg: cfg}
}

// CategorizeBatch runs the categorization pipeline for one batch and returns
// the resulting label histogram: category label to number of annotations
// assigned it. Rerunning replaces the batch's prior categories wholesale. A
// batch with no bad-rated annotations returns an empty histogram without any
// LLM call.
func (c *Categorizer) CategorizeBatch(ctx context.Context, batchID string) (map[string]int, error) {
	histogram, err := c.run(ctx, batchID)
	if err != nil {
		slog.Error("batch categorization failed", "batch_id", batchID, "error", err)
		metrics.PipelineRuns.WithLabelValues("categorization", "failed").Inc()
		return nil, err
	}
	metrics.PipelineRuns.WithLabelValues("categorization", "completed").Inc()
	return histogram, nil
}

func (c *Categorizer) run(ctx context.Context, batchID string) (map[string]int, error) {
	annotations, err := c.cfg.Annotations.BadAnnotations(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("load bad annotations: %w", err)
	}
	if len(annotations) == 0 {
		slog.Info("no bad annotations to categorize", "batch_id", batchID)
		return map[string]int{}, nil
	}

	annotationIDs := make([]string, len(annotations))
	notes := make([]string, len(annotations))
	notesWithID := make([]string, len(annotations))
	byRootSpan := make(map[string]string, len(annotations))
	for i, a := range annotations {
		annotationIDs[i] = a.AnnotationID
		notes[i] = a.Note
		notesWithID[i] = noteWithSpanID(a)
		byRootSpan[a.RootSpanID] = a.AnnotationID
	}

	if err := c.cfg.Annotations.ClearAnnotationCategories(ctx, annotationIDs); err != nil {
		return nil, fmt.Errorf("clear prior categories: %w", err)
	}

	raw, err := c.cfg.Gateway.Complete(ctx, clusterSystemPrompt, clusterUserContent(notes), c.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	labels, err := decodeCategoryLabels(raw)
	if err != nil {
		return nil, err
	}
	labels = dedupeLabels(labels)
	slog.Info("clustered reviewer notes", "batch_id", batchID, "notes", len(notes), "categories", len(labels))

	categoryIDs, err := c.cfg.Annotations.InsertCategories(ctx, labels)
	if err != nil {
		return nil, fmt.Errorf("insert categories: %w", err)
	}

	raw, err = c.cfg.Gateway.Complete(ctx, assignSystemPrompt, assignUserContent(labels, notesWithID), c.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	assignments, err := decodeAssignments(raw)
	if err != nil {
		return nil, err
	}
	if len(assignments) < len(annotations) {
		return nil, &llm.GatewayError{
			Engine: "categorization",
			Err:    fmt.Errorf("assignment response covered %d of %d annotations", len(assignments), len(annotations)),
		}
	}

	var rows []store.CategoryAssignment
	histogram := make(map[string]int, len(labels))
	for _, a := range assignments {
		annotationID, ok := byRootSpan[a.RootSpanID]
		if !ok {
			slog.Warn("assignment references unknown span", "batch_id", batchID, "root_span_id", a.RootSpanID)
			continue
		}
		for _, label := range a.Categories {
			categoryID, ok := categoryIDs[label]
			if !ok {
				slog.Warn("assignment references unknown category", "batch_id", batchID, "category", label)
				continue
			}
			rows = append(rows, store.CategoryAssignment{AnnotationID: annotationID, CategoryID: categoryID})
			histogram[label]++
		}
	}

	if err := c.cfg.Annotations.AssignCategories(ctx, rows); err != nil {
		return nil, fmt.Errorf("assign categories: %w", err)
	}
	return histogram, nil
}

// dedupeLabels drops repeated cluster labels, keeping first occurrence order.
// The prompt asks for deduplicated labels but the response is untrusted.
func dedupeLabels(labels []string) []string {
	seen := make(map[string]bool, len(labels))
	out := labels[:0]
	for _, l := range labels {
		if seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	return out
}
