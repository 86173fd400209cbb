package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/reviewloop/reviewloop/internal/llm"
	"github.com/reviewloop/reviewloop/internal/pipeline"
	"github.com/reviewloop/reviewloop/internal/store"
)

type deps struct {
	store       *store.Store
	formatter   *pipeline.Formatter
	categorizer *pipeline.Categorizer
	wsHandler   http.Handler
}

// registerRoutes wires all HTTP endpoints to the shared mux.
func registerRoutes(mux *http.ServeMux, d deps) {
	mux.HandleFunc("GET /api/spans", d.handleQuerySpans)
	mux.HandleFunc("POST /api/spans/{id}/annotation", d.handleAnnotate)
	mux.HandleFunc("POST /api/batches", d.handleCreateBatch)
	mux.HandleFunc("GET /api/batches/{id}", d.handleGetBatch)
	mux.HandleFunc("PUT /api/batches/{id}", d.handleUpdateBatch)
	mux.HandleFunc("DELETE /api/batches/{id}", d.handleDeleteBatch)
	mux.HandleFunc("POST /api/batches/{id}/format", d.handleFormatBatch)
	mux.HandleFunc("POST /api/batches/{id}/categorize", d.handleCategorizeBatch)
	mux.Handle("GET /ws/batches/{id}/progress", d.wsHandler)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("/health", handleHealth)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (d deps) handleQuerySpans(w http.ResponseWriter, r *http.Request) {
	filter, err := spanFilterFromQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	spans, total, err := d.store.QuerySpans(r.Context(), filter)
	if err != nil {
		writeStoreError(w, "query spans", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"spans":    spans,
		"total":    total,
		"page":     filter.Page,
		"pageSize": filter.PageSize,
	})
}

func (d deps) handleAnnotate(w http.ResponseWriter, r *http.Request) {
	spanID := r.PathValue("id")
	var req struct {
		Note   string `json:"note"`
		Rating string `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Rating != store.RatingGood && req.Rating != store.RatingBad {
		http.Error(w, "rating must be good or bad", http.StatusBadRequest)
		return
	}

	exists, err := d.store.SpanExists(r.Context(), spanID)
	if err != nil {
		writeStoreError(w, "annotate span", err)
		return
	}
	if !exists {
		http.Error(w, "span not found", http.StatusNotFound)
		return
	}

	annotation, err := d.store.UpsertAnnotation(r.Context(), spanID, req.Note, req.Rating)
	if err != nil {
		writeStoreError(w, "annotate span", err)
		return
	}
	writeJSON(w, http.StatusOK, annotation)
}

func (d deps) handleCreateBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string   `json:"projectId"`
		Name      string   `json:"name"`
		SpanIDs   []string `json:"spanIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	batch, err := d.store.CreateBatch(r.Context(), req.ProjectID, req.Name, req.SpanIDs)
	if err != nil {
		writeStoreError(w, "create batch", err)
		return
	}
	slog.Info("batch created", "batch_id", batch.ID, "spans", len(req.SpanIDs))
	writeJSON(w, http.StatusCreated, batch)
}

func (d deps) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	batch, err := d.store.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		writeStoreError(w, "get batch", err)
		return
	}
	writeJSON(w, http.StatusOK, batch)
}

func (d deps) handleUpdateBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	var req struct {
		Name    string   `json:"name"`
		SpanIDs []string `json:"spanIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	if err := d.store.UpdateBatch(r.Context(), batchID, req.Name, req.SpanIDs); err != nil {
		writeStoreError(w, "update batch", err)
		return
	}
	slog.Info("batch updated", "batch_id", batchID, "spans", len(req.SpanIDs))
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (d deps) handleDeleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if err := d.store.DeleteBatch(r.Context(), batchID); err != nil {
		writeStoreError(w, "delete batch", err)
		return
	}
	slog.Info("batch deleted", "batch_id", batchID)
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// handleFormatBatch starts a formatting run in the background and returns
// immediately; progress flows over the batch's WebSocket observer stream.
func (d deps) handleFormatBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if _, err := d.store.GetBatch(r.Context(), batchID); err != nil {
		writeStoreError(w, "format batch", err)
		return
	}

	slog.Info("formatting requested", "batch_id", batchID)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		d.formatter.FormatBatch(ctx, batchID)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "formatting"})
}

func (d deps) handleCategorizeBatch(w http.ResponseWriter, r *http.Request) {
	batchID := r.PathValue("id")
	if _, err := d.store.GetBatch(r.Context(), batchID); err != nil {
		writeStoreError(w, "categorize batch", err)
		return
	}

	slog.Info("categorization requested", "batch_id", batchID)
	histogram, err := d.categorizer.CategorizeBatch(r.Context(), batchID)
	if err != nil {
		var gwErr *llm.GatewayError
		var respErr *pipeline.MalformedResponseError
		if errors.As(err, &gwErr) || errors.As(err, &respErr) {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"categories": histogram})
}

// spanFilterFromQuery translates query parameters into a span filter. Date
// bounds accept RFC 3339 timestamps or bare dates.
func spanFilterFromQuery(r *http.Request) (store.SpanFilter, error) {
	q := r.URL.Query()
	filter := store.SpanFilter{
		BatchID:    q.Get("batchId"),
		ProjectID:  q.Get("projectId"),
		SpanName:   q.Get("spanName"),
		SearchText: q.Get("search"),
		DateRange:  q.Get("dateRange"),
		Page:       queryInt(r, "page", 1),
		PageSize:   queryInt(r, "pageSize", store.DefaultPageSize),
	}

	var err error
	if v := q.Get("startDate"); v != "" {
		if filter.Start, err = parseDate(v); err != nil {
			return store.SpanFilter{}, err
		}
	}
	if v := q.Get("endDate"); v != "" {
		if filter.End, err = parseDate(v); err != nil {
			return store.SpanFilter{}, err
		}
	}
	return filter, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}

func writeStoreError(w http.ResponseWriter, op string, err error) {
	var validationErr *store.ValidationError
	switch {
	case errors.As(err, &validationErr):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, store.ErrBatchNotFound), errors.Is(err, store.ErrSpanNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, store.ErrSpanAssigned):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		slog.Error(op, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
