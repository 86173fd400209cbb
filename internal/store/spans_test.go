package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseFilter() SpanFilter {
	return SpanFilter{Page: 1, PageSize: DefaultPageSize}
}

func TestBuildSpanPredicatesDefaults(t *testing.T) {
	where, args, err := buildSpanPredicates(baseFilter(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WHERE batch_id IS NULL", where)
	assert.Empty(t, args)
}

func TestBuildSpanPredicatesBatchID(t *testing.T) {
	f := baseFilter()
	f.BatchID = "b-123"
	where, args, err := buildSpanPredicates(f, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WHERE batch_id = $1", where)
	assert.Equal(t, []any{"b-123"}, args)
}

func TestBuildSpanPredicatesCombined(t *testing.T) {
	f := baseFilter()
	f.ProjectID = "proj-1"
	f.SpanName = "chat.completion"
	f.SearchText = "timeout"

	where, args, err := buildSpanPredicates(f, time.Now())
	require.NoError(t, err)
	assert.Equal(t,
		"WHERE batch_id IS NULL AND project_id = $1 AND span_name = $2 AND (input ILIKE $3 OR output ILIKE $4)",
		where)
	assert.Equal(t, []any{"proj-1", "chat.completion", "%timeout%", "%timeout%"}, args)
}

func TestBuildSpanPredicatesEscapesSearchWildcards(t *testing.T) {
	f := baseFilter()
	f.SearchText = `100% _done_ C:\tmp`

	_, args, err := buildSpanPredicates(f, time.Now())
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, `%100\% \_done\_ C:\\tmp%`, args[0])
	assert.Equal(t, args[0], args[1])
}

func TestBuildSpanPredicatesRelativeRanges(t *testing.T) {
	now := time.Date(2026, 8, 20, 15, 30, 0, 0, time.UTC)
	cases := map[string]time.Time{
		Range12h: now.Add(-12 * time.Hour),
		Range24h: now.Add(-24 * time.Hour),
		Range1w:  now.Add(-7 * 24 * time.Hour),
	}
	for rng, want := range cases {
		f := baseFilter()
		f.DateRange = rng
		where, args, err := buildSpanPredicates(f, now)
		require.NoError(t, err, rng)
		assert.Equal(t, "WHERE batch_id IS NULL AND created_at >= $1", where, rng)
		require.Len(t, args, 1, rng)
		assert.Equal(t, want, args[0], rng)
	}
}

func TestBuildSpanPredicatesCustomRangeInclusiveDays(t *testing.T) {
	f := baseFilter()
	f.DateRange = RangeCustom
	f.Start = time.Date(2026, 8, 10, 14, 22, 0, 0, time.UTC)
	f.End = time.Date(2026, 8, 12, 9, 5, 0, 0, time.UTC)

	where, args, err := buildSpanPredicates(f, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "WHERE batch_id IS NULL AND created_at >= $1 AND created_at < $2", where)
	require.Len(t, args, 2)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), args[0])
	assert.Equal(t, time.Date(2026, 8, 13, 0, 0, 0, 0, time.UTC), args[1])
}

func TestBuildSpanPredicatesSameDayCustomRange(t *testing.T) {
	day := time.Date(2026, 8, 10, 11, 0, 0, 0, time.UTC)
	f := baseFilter()
	f.DateRange = RangeCustom
	f.Start = day
	f.End = day

	_, args, err := buildSpanPredicates(f, time.Now())
	require.NoError(t, err)
	require.Len(t, args, 2)
	assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), args[0])
	assert.Equal(t, time.Date(2026, 8, 11, 0, 0, 0, 0, time.UTC), args[1])
}

func TestBuildSpanPredicatesValidation(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name   string
		mutate func(*SpanFilter)
		field  string
	}{
		{"zero page", func(f *SpanFilter) { f.Page = 0 }, "page"},
		{"negative page", func(f *SpanFilter) { f.Page = -1 }, "page"},
		{"zero page size", func(f *SpanFilter) { f.PageSize = 0 }, "pageSize"},
		{"page size over cap", func(f *SpanFilter) { f.PageSize = MaxSpansPerPage + 1 }, "pageSize"},
		{"unknown range", func(f *SpanFilter) { f.DateRange = "6h" }, "dateRange"},
		{"custom missing bounds", func(f *SpanFilter) { f.DateRange = RangeCustom }, "dateRange"},
		{"custom end before start", func(f *SpanFilter) {
			f.DateRange = RangeCustom
			f.Start = now
			f.End = now.AddDate(0, 0, -2)
		}, "dateRange"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := baseFilter()
			tc.mutate(&f)
			_, _, err := buildSpanPredicates(f, now)
			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tc.field, vErr.Field)
		})
	}
}

func TestBuildSpanPredicatesPageSizeAtCap(t *testing.T) {
	f := baseFilter()
	f.PageSize = MaxSpansPerPage
	_, _, err := buildSpanPredicates(f, time.Now())
	assert.NoError(t, err)
}
