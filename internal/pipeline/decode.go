package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/reviewloop/reviewloop/internal/llm"
	"github.com/reviewloop/reviewloop/internal/store"
)

// MalformedResponseError reports an LLM response that parsed or validated
// incorrectly against its prompt contract. Every response is untrusted input;
// each contract gets exactly one decoding routine below.
type MalformedResponseError struct {
	Contract string
	Reason   string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %s", e.Contract, e.Reason)
}

// decodeFormattedResults validates a formatting-chunk response: a JSON array of
// {spanId, formattedInput, formattedOutput}. Results pass through to the
// aggregator unprocessed; spanId values are preserved as returned.
func decodeFormattedResults(raw string) ([]store.FormattedSpan, error) {
	text := llm.StripFence(raw)
	var results []store.FormattedSpan
	if err := json.Unmarshal([]byte(text), &results); err != nil {
		return nil, &MalformedResponseError{Contract: "formatting", Reason: err.Error()}
	}
	return results, nil
}

// decodeCategoryLabels validates a clustering response: a non-empty JSON array
// of category label strings.
func decodeCategoryLabels(raw string) ([]string, error) {
	text := llm.StripFence(raw)
	var labels []string
	if err := json.Unmarshal([]byte(text), &labels); err != nil {
		return nil, &MalformedResponseError{Contract: "category clustering", Reason: err.Error()}
	}
	if len(labels) == 0 {
		return nil, &MalformedResponseError{Contract: "category clustering", Reason: "empty category array"}
	}
	return labels, nil
}

// spanAssignment is one entry of the category-assignment response.
type spanAssignment struct {
	RootSpanID string   `json:"rootSpanId"`
	Categories []string `json:"categories"`
}

// decodeAssignments validates an assignment response: a JSON array of
// {rootSpanId, categories}. Coverage against the submitted note count is
// checked by the caller, which knows how many notes went out.
func decodeAssignments(raw string) ([]spanAssignment, error) {
	text := llm.StripFence(raw)
	var assignments []spanAssignment
	if err := json.Unmarshal([]byte(text), &assignments); err != nil {
		return nil, &MalformedResponseError{Contract: "category assignment", Reason: err.Error()}
	}
	return assignments, nil
}
