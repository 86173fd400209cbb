package pipeline

import (
	"context"
	"sync"

	"github.com/reviewloop/reviewloop/internal/store"
)

// chunkSpans partitions spans into consecutive groups of at most size. The
// final chunk may be smaller. Order within and across chunks follows the input.
func chunkSpans(spans []store.SpanContent, size int) [][]store.SpanContent {
	if size < 1 {
		size = 1
	}
	chunks := make([][]store.SpanContent, 0, (len(spans)+size-1)/size)
	for start := 0; start < len(spans); start += size {
		end := start + size
		if end > len(spans) {
			end = len(spans)
		}
		chunks = append(chunks, spans[start:end])
	}
	return chunks
}

// joinAll runs fn over every item concurrently and waits for all of them.
// Results come back in submission order. If any call fails, joinAll still waits
// for the rest to finish, then returns the first error by submission order;
// partial successes are discarded.
func joinAll[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error)) ([]R, error) {
	results := make([]R, len(items))
	errs := make([]error, len(items))

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			results[i], errs[i] = fn(ctx, item)
		}(i, item)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
