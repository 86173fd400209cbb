package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxSpansPerPage caps the page size a caller may request.
	MaxSpansPerPage = 100
	// DefaultPageSize applies when a caller does not specify a page size.
	DefaultPageSize = 50
	// MaxBatchSpans bounds how many spans a formatting run will fetch.
	MaxBatchSpans = 300
)

// Named relative date ranges accepted by SpanFilter.
const (
	Range12h    = "12h"
	Range24h    = "24h"
	Range1w     = "1w"
	RangeCustom = "custom"
)

// SpanFilter enumerates the dynamic predicates for querying root spans.
// An empty BatchID restricts the query to spans not assigned to any batch.
type SpanFilter struct {
	BatchID    string
	ProjectID  string
	SpanName   string
	SearchText string
	DateRange  string
	Start      time.Time
	End        time.Time
	Page       int
	PageSize   int
}

// buildSpanPredicates translates a filter into a WHERE clause and its args.
// Kept separate from QuerySpans so predicate construction is testable on its own.
func buildSpanPredicates(f SpanFilter, now time.Time) (string, []any, error) {
	if f.Page < 1 {
		return "", nil, &ValidationError{Field: "page", Reason: "must be a positive integer"}
	}
	if f.PageSize < 1 {
		return "", nil, &ValidationError{Field: "pageSize", Reason: "must be a positive integer"}
	}
	if f.PageSize > MaxSpansPerPage {
		return "", nil, &ValidationError{Field: "pageSize", Reason: fmt.Sprintf("must not exceed %d", MaxSpansPerPage)}
	}

	var preds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.BatchID != "" {
		preds = append(preds, "batch_id = "+arg(f.BatchID))
	} else {
		preds = append(preds, "batch_id IS NULL")
	}
	if f.ProjectID != "" {
		preds = append(preds, "project_id = "+arg(f.ProjectID))
	}
	if f.SpanName != "" {
		preds = append(preds, "span_name = "+arg(f.SpanName))
	}
	if f.SearchText != "" {
		pattern := "%" + likeEscaper.Replace(f.SearchText) + "%"
		preds = append(preds, fmt.Sprintf("(input ILIKE %s OR output ILIKE %s)", arg(pattern), arg(pattern)))
	}

	switch f.DateRange {
	case "":
	case Range12h:
		preds = append(preds, "created_at >= "+arg(now.Add(-12*time.Hour)))
	case Range24h:
		preds = append(preds, "created_at >= "+arg(now.Add(-24*time.Hour)))
	case Range1w:
		preds = append(preds, "created_at >= "+arg(now.Add(-7*24*time.Hour)))
	case RangeCustom:
		if f.Start.IsZero() || f.End.IsZero() {
			return "", nil, &ValidationError{Field: "dateRange", Reason: "custom range requires start and end"}
		}
		if f.End.Before(f.Start) {
			return "", nil, &ValidationError{Field: "dateRange", Reason: "end precedes start"}
		}
		// Inclusive by calendar date: [start-of-start-day, start-of-day-after-end).
		start := truncateDay(f.Start)
		end := truncateDay(f.End).AddDate(0, 0, 1)
		preds = append(preds, "created_at >= "+arg(start))
		preds = append(preds, "created_at < "+arg(end))
	default:
		return "", nil, &ValidationError{Field: "dateRange", Reason: fmt.Sprintf("unknown range %q", f.DateRange)}
	}

	return "WHERE " + strings.Join(preds, " AND "), args, nil
}

// likeEscaper neutralizes LIKE wildcards so user text matches literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// QuerySpans returns one page of root spans matching the filter plus the total
// match count. Ordering is created_at DESC with id ASC as a stable tiebreak.
func (s *Store) QuerySpans(ctx context.Context, f SpanFilter) ([]RootSpan, int, error) {
	where, args, err := buildSpanPredicates(f, time.Now().UTC())
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM root_spans `+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count spans: %w", err)
	}

	limitArgs := append(args, f.PageSize, (f.Page-1)*f.PageSize)
	query := fmt.Sprintf(`
		SELECT id, trace_id, batch_id, project_id, span_name, input, output,
		       formatted_input, formatted_output, formatting_status,
		       start_time, end_time, created_at
		FROM root_spans %s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, limitArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("query spans: %w", err)
	}
	defer rows.Close()

	var spans []RootSpan
	for rows.Next() {
		sp, scanErr := scanRootSpan(rows)
		if scanErr != nil {
			return nil, 0, scanErr
		}
		spans = append(spans, sp)
	}
	return spans, total, rows.Err()
}

func scanRootSpan(rows *sql.Rows) (RootSpan, error) {
	var sp RootSpan
	var batchID, formattedIn, formattedOut sql.NullString
	err := rows.Scan(
		&sp.ID, &sp.TraceID, &batchID, &sp.ProjectID, &sp.SpanName,
		&sp.Input, &sp.Output, &formattedIn, &formattedOut, &sp.FormattingStatus,
		&sp.StartTime, &sp.EndTime, &sp.CreatedAt,
	)
	if err != nil {
		return sp, fmt.Errorf("scan span: %w", err)
	}
	if batchID.Valid {
		sp.BatchID = &batchID.String
	}
	if formattedIn.Valid {
		sp.FormattedInput = &formattedIn.String
	}
	if formattedOut.Valid {
		sp.FormattedOutput = &formattedOut.String
	}
	return sp, nil
}

// BatchSpanContents returns the input/output/id triples for a batch's spans,
// bounded by limit.
func (s *Store) BatchSpanContents(ctx context.Context, batchID string, limit int) ([]SpanContent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, input, output FROM root_spans WHERE batch_id = $1 ORDER BY created_at DESC, id ASC LIMIT $2`,
		batchID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("batch span contents: %w", err)
	}
	defer rows.Close()

	var contents []SpanContent
	for rows.Next() {
		var c SpanContent
		if err = rows.Scan(&c.SpanID, &c.Input, &c.Output); err != nil {
			return nil, fmt.Errorf("scan span content: %w", err)
		}
		contents = append(contents, c)
	}
	return contents, rows.Err()
}

// PersistFormatted bulk-updates formatted fields for all given spans in one
// statement and flips their formatting status to completed. Span ids that match
// no row are silently ignored; the returned count reflects actual matches only.
func (s *Store) PersistFormatted(ctx context.Context, results []FormattedSpan) (int64, error) {
	if len(results) == 0 {
		return 0, nil
	}

	values := make([]string, len(results))
	args := make([]any, 0, len(results)*3)
	for i, r := range results {
		values[i] = fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3)
		args = append(args, r.SpanID, r.FormattedInput, r.FormattedOutput)
	}

	query := fmt.Sprintf(`
		UPDATE root_spans AS s
		SET formatted_input = v.formatted_input,
		    formatted_output = v.formatted_output,
		    formatting_status = '%s'
		FROM (VALUES %s) AS v(id, formatted_input, formatted_output)
		WHERE s.id = v.id
	`, FormattingCompleted, strings.Join(values, ", "))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("persist formatted: %w", err)
	}
	return res.RowsAffected()
}

// SpanExists reports whether a root span with the given id exists.
func (s *Store) SpanExists(ctx context.Context, id string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM root_spans WHERE id = $1`, id).Scan(&count)
	return count > 0, err
}

// InsertRootSpans bulk-inserts recorded spans, assigning ids to any span
// without one. Used by ingestion tooling, not the serving path.
func (s *Store) InsertRootSpans(ctx context.Context, spans []RootSpan) (int64, error) {
	if len(spans) == 0 {
		return 0, nil
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO root_spans (id, trace_id, project_id, span_name, input, output, start_time, end_time) VALUES `)
	args := make([]any, 0, len(spans)*8)
	for i, sp := range spans {
		if i > 0 {
			sb.WriteString(", ")
		}
		n := i * 8
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d, $%d, $%d)", n+1, n+2, n+3, n+4, n+5, n+6, n+7, n+8)
		id := sp.ID
		if id == "" {
			id = uuid.NewString()
		}
		args = append(args, id, sp.TraceID, sp.ProjectID, sp.SpanName, sp.Input, sp.Output, sp.StartTime, sp.EndTime)
	}
	sb.WriteString(" ON CONFLICT (id) DO NOTHING")

	res, err := s.db.ExecContext(ctx, sb.String(), args...)
	if err != nil {
		return 0, fmt.Errorf("insert root spans: %w", err)
	}
	return res.RowsAffected()
}

// MarkBatchFormatted stamps the batch's formatted_at marker. Re-marking an
// already-formatted batch simply refreshes the timestamp.
func (s *Store) MarkBatchFormatted(ctx context.Context, batchID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE batches SET formatted_at = $1 WHERE id = $2`,
		time.Now().UTC(), batchID,
	)
	if err != nil {
		return fmt.Errorf("mark batch formatted: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrBatchNotFound
	}
	return nil
}
