package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/store"
)

func TestDecodeFormattedResults(t *testing.T) {
	raw := "```json\n[{\"spanId\":\"s1\",\"formattedInput\":\"# In\",\"formattedOutput\":\"# Out\"}]\n```"
	results, err := decodeFormattedResults(raw)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, store.FormattedSpan{SpanID: "s1", FormattedInput: "# In", FormattedOutput: "# Out"}, results[0])
}

func TestDecodeFormattedResultsMalformed(t *testing.T) {
	for _, raw := range []string{"not json", `{"spanId":"s1"}`, `"a string"`} {
		_, err := decodeFormattedResults(raw)
		var respErr *MalformedResponseError
		require.ErrorAs(t, err, &respErr, raw)
		assert.Equal(t, "formatting", respErr.Contract)
	}
}

func TestDecodeCategoryLabels(t *testing.T) {
	labels, err := decodeCategoryLabels("```json\n[\"spelling\", \"too slow\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"spelling", "too slow"}, labels)
}

func TestDecodeCategoryLabelsRejectsEmptyAndMalformed(t *testing.T) {
	for _, raw := range []string{"[]", "not json", `{"labels":[]}`} {
		_, err := decodeCategoryLabels(raw)
		var respErr *MalformedResponseError
		require.ErrorAs(t, err, &respErr, raw)
		assert.Equal(t, "category clustering", respErr.Contract)
	}
}

func TestDecodeAssignments(t *testing.T) {
	raw := `[{"rootSpanId":"s1","categories":["spelling"]},{"rootSpanId":"s2","categories":["spelling","too slow"]}]`
	assignments, err := decodeAssignments(raw)
	require.NoError(t, err)
	require.Len(t, assignments, 2)
	assert.Equal(t, "s1", assignments[0].RootSpanID)
	assert.Equal(t, []string{"spelling", "too slow"}, assignments[1].Categories)
}

func TestDecodeAssignmentsMalformed(t *testing.T) {
	_, err := decodeAssignments(`{"rootSpanId":"s1"}`)
	var respErr *MalformedResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, "category assignment", respErr.Contract)
}
