package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func textCalc(input string, values []float64, at time.Time) *Calculation {
	return &Calculation{
		Kind:   KindText,
		Input:  input,
		Values: values,
		Bit:    999,
		Results: []Result{
			{Calculation: 1, NBMax: 5.97, NBMin: 999, Difference: 993.03},
		},
		CreatedAt: at,
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := textCalc("Hello", []float64{6000072, 6000101}, time.Time{})
	require.NoError(t, s.SaveCalculation(ctx, c))

	assert.NotEmpty(t, c.ID)
	assert.False(t, c.CreatedAt.IsZero())
	assert.Equal(t, DefaultCategory, c.Category)
	assert.Equal(t, 5.97, c.NBMax)

	got, err := s.GetCalculation(ctx, c.ID, false)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Input)
	assert.Equal(t, KindText, got.Kind)
	assert.Equal(t, []float64{6000072, 6000101}, got.Values)
	assert.Equal(t, c.Results, got.Results)
	assert.Equal(t, 993.03, got.Difference)
	assert.Equal(t, 0, got.ViewCount)
}

func TestGetCalculation_IncrementsViews(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := textCalc("a", []float64{6000097}, time.Time{})
	require.NoError(t, s.SaveCalculation(ctx, c))

	for range 3 {
		_, err := s.GetCalculation(ctx, c.ID, true)
		require.NoError(t, err)
	}
	got, err := s.GetCalculation(ctx, c.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 3, got.ViewCount)
}

func TestGetCalculation_NotFound(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetCalculation(ctx, "missing", false)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.GetCalculation(ctx, "missing", true)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListRecentAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveCalculation(ctx, textCalc("first", []float64{1}, base)))
	num := &Calculation{Kind: KindNumber, Input: "1,2,3", Values: []float64{1, 2, 3}, Bit: 999,
		Category: "stocks", CreatedAt: base.Add(time.Minute)}
	require.NoError(t, s.SaveCalculation(ctx, num))
	require.NoError(t, s.SaveCalculation(ctx, textCalc("third", []float64{3}, base.Add(2*time.Minute))))

	recent, err := s.ListRecent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "third", recent[0].Input)
	assert.Equal(t, "1,2,3", recent[1].Input)

	texts, err := s.ListCalculations(ctx, ListOpts{Kind: KindText})
	require.NoError(t, err)
	assert.Len(t, texts, 2)

	stocks, err := s.ListCalculations(ctx, ListOpts{Category: "stocks"})
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, num.ID, stocks[0].ID)

	page, err := s.ListCalculations(ctx, ListOpts{Limit: 1, Offset: 2})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Input)
}

func TestListMostViewed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	a := textCalc("a", []float64{1}, time.Time{})
	b := textCalc("b", []float64{2}, time.Time{})
	require.NoError(t, s.SaveCalculation(ctx, a))
	require.NoError(t, s.SaveCalculation(ctx, b))

	for range 2 {
		_, err := s.GetCalculation(ctx, b.ID, true)
		require.NoError(t, err)
	}

	top, err := s.ListMostViewed(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, b.ID, top[0].ID)
	assert.Equal(t, 2, top[0].ViewCount)
}

func TestSearchByTextAndUnicode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c := textCalc("Hello", []float64{6000072, 6000101}, time.Time{})
	require.NoError(t, s.SaveCalculation(ctx, c))
	require.NoError(t, s.SaveCalculation(ctx, textCalc("other", []float64{1, 2}, time.Time{})))

	got, err := s.SearchByText(ctx, "hELLO", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)

	got, err = s.SearchByUnicode(ctx, []float64{6000072, 6000101}, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, c.ID, got[0].ID)

	got, err = s.SearchByUnicode(ctx, []float64{6000072}, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchSimilar(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, in := range []string{"hello", "help", "world", "hallo"} {
		require.NoError(t, s.SaveCalculation(ctx, textCalc(in, []float64{1}, time.Time{})))
	}

	got, err := s.SearchSimilar(ctx, "Hello", 1, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Input)
	assert.Equal(t, "hallo", got[1].Input)

	got, err = s.SearchSimilar(ctx, "hello", 2, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].Input)
}

func TestStats(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TotalCalculations)
	assert.Nil(t, empty.LastCalculation)

	require.NoError(t, s.SaveCalculation(ctx, textCalc("a", []float64{1}, time.Time{})))
	num := &Calculation{Kind: KindNumber, Input: "1 2", Values: []float64{1, 2}, Bit: 999, Category: "lotto",
		Results: []Result{{NBMax: 1, NBMin: 3, Difference: -2}}}
	require.NoError(t, s.SaveCalculation(ctx, num))
	_, err = s.GetCalculation(ctx, num.ID, true)
	require.NoError(t, err)

	st, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.TotalCalculations)
	assert.Equal(t, 1, st.TotalViews)
	assert.Equal(t, map[string]int{KindText: 1, KindNumber: 1}, st.ByKind)
	assert.Equal(t, map[string]int{DefaultCategory: 1, "lotto": 1}, st.ByCategory)
	assert.InDelta(t, (5.97+1)/2, st.AverageMax, 1e-9)
	assert.InDelta(t, (999+3)/2.0, st.AverageMin, 1e-9)
	assert.NotNil(t, st.LastCalculation)
}

func TestTopKeywords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	empty, err := s.TopKeywords(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	view := func(c *Calculation, n int) {
		t.Helper()
		for range n {
			_, err := s.GetCalculation(ctx, c.ID, true)
			require.NoError(t, err)
		}
	}

	upper := textCalc("Hello", []float64{1}, time.Time{})
	lower := textCalc("hello", []float64{2}, time.Time{})
	bye := textCalc("bye", []float64{3}, time.Time{})
	num := &Calculation{Kind: KindNumber, Input: "1 2", Values: []float64{1, 2}, Bit: 999}
	for _, c := range []*Calculation{upper, lower, bye, num} {
		require.NoError(t, s.SaveCalculation(ctx, c))
	}
	view(upper, 1)
	view(lower, 2)
	view(num, 1)

	top, err := s.TopKeywords(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, []Keyword{
		{Keyword: "hello", Views: 3, Calculations: 2},
		{Keyword: "1 2", Views: 1, Calculations: 1},
		{Keyword: "bye", Views: 0, Calculations: 1},
	}, top)

	top, err = s.TopKeywords(ctx, 1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "hello", top[0].Keyword)
}

func TestSequenceKey(t *testing.T) {
	assert.Equal(t, "1.5,-2,6000104", SequenceKey([]float64{1.5, -2, 6000104}))
	assert.Equal(t, "", SequenceKey(nil))
}
