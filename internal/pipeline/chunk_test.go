package pipeline

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewloop/reviewloop/internal/store"
)

func spans(n int) []store.SpanContent {
	out := make([]store.SpanContent, n)
	for i := range out {
		out[i] = store.SpanContent{SpanID: "s" + strconv.Itoa(i)}
	}
	return out
}

func TestChunkSpans(t *testing.T) {
	cases := []struct {
		name      string
		spans     int
		size      int
		wantSizes []int
	}{
		{"empty", 0, 10, nil},
		{"single partial chunk", 3, 10, []int{3}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"remainder chunk", 25, 10, []int{10, 10, 5}},
		{"size one", 3, 1, []int{1, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			chunks := chunkSpans(spans(tc.spans), tc.size)
			require.Len(t, chunks, len(tc.wantSizes))
			for i, want := range tc.wantSizes {
				assert.Len(t, chunks[i], want)
			}
		})
	}
}

func TestChunkSpansPreservesOrder(t *testing.T) {
	chunks := chunkSpans(spans(25), 10)
	var seen []string
	for _, c := range chunks {
		for _, s := range c {
			seen = append(seen, s.SpanID)
		}
	}
	require.Len(t, seen, 25)
	for i, id := range seen {
		assert.Equal(t, "s"+strconv.Itoa(i), id)
	}
}

func TestJoinAllOrdersResultsBySubmission(t *testing.T) {
	results, err := joinAll(context.Background(), []int{3, 1, 2}, func(ctx context.Context, n int) (int, error) {
		return n * 10, nil
	})
	require.NoError(t, err)
	assert.Equal(t, []int{30, 10, 20}, results)
}

func TestJoinAllRunsEverythingDespiteFailure(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	results, err := joinAll(context.Background(), []int{0, 1, 2, 3}, func(ctx context.Context, n int) (int, error) {
		calls.Add(1)
		if n == 1 {
			return 0, boom
		}
		return n, nil
	})

	assert.ErrorIs(t, err, boom)
	assert.Nil(t, results)
	assert.Equal(t, int32(4), calls.Load(), "remaining calls must still run")
}

func TestJoinAllReturnsFirstErrorBySubmissionOrder(t *testing.T) {
	errA := errors.New("a")
	errB := errors.New("b")

	_, err := joinAll(context.Background(), []int{0, 1, 2}, func(ctx context.Context, n int) (int, error) {
		switch n {
		case 1:
			return 0, errA
		case 2:
			return 0, errB
		}
		return n, nil
	})
	assert.ErrorIs(t, err, errA)
}

func TestJoinAllEmpty(t *testing.T) {
	results, err := joinAll(context.Background(), nil, func(ctx context.Context, n int) (int, error) {
		t.Fatal("must not be called")
		return 0, nil
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}
