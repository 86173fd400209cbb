package store

import "time"

// Formatting status values for a root span.
const (
	FormattingPending   = "pending"
	FormattingCompleted = "completed"
)

// Annotation rating values.
const (
	RatingGood = "good"
	RatingBad  = "bad"
)

// RootSpan is a recorded top-level LLM call eligible for review.
type RootSpan struct {
	ID               string     `json:"id"`
	TraceID          string     `json:"trace_id"`
	BatchID          *string    `json:"batch_id,omitempty"`
	ProjectID        string     `json:"project_id"`
	SpanName         string     `json:"span_name"`
	Input            string     `json:"input"`
	Output           string     `json:"output"`
	FormattedInput   *string    `json:"formatted_input,omitempty"`
	FormattedOutput  *string    `json:"formatted_output,omitempty"`
	FormattingStatus string     `json:"formatting_status"`
	StartTime        time.Time  `json:"start_time"`
	EndTime          time.Time  `json:"end_time"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Batch is a named grouping of root spans submitted together for review.
type Batch struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name"`
	CreatedAt   time.Time  `json:"created_at"`
	FormattedAt *time.Time `json:"formatted_at,omitempty"`
}

// Annotation is a reviewer's rating plus note attached to one root span.
type Annotation struct {
	ID         string `json:"id"`
	RootSpanID string `json:"root_span_id"`
	Note       string `json:"note"`
	Rating     string `json:"rating"`
}

// Category is a failure-mode label derived from clustering reviewer notes.
type Category struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// SpanContent is the minimal span payload fed to the formatting pipeline.
type SpanContent struct {
	SpanID string `json:"spanId"`
	Input  string `json:"input"`
	Output string `json:"output"`
}

// FormattedSpan is one formatting result keyed back to its span.
type FormattedSpan struct {
	SpanID          string `json:"spanId"`
	FormattedInput  string `json:"formattedInput"`
	FormattedOutput string `json:"formattedOutput"`
}

// BadAnnotation is a bad-rated annotation with the span it belongs to.
type BadAnnotation struct {
	AnnotationID string
	RootSpanID   string
	Note         string
}

// CategoryAssignment is one annotation→category join row to insert.
type CategoryAssignment struct {
	AnnotationID string
	CategoryID   string
}
