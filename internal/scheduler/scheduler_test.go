package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/nbscore/internal/store"
	"github.com/elonfeng/nbscore/pkg/calc"
	"github.com/elonfeng/nbscore/pkg/nb"
	"github.com/elonfeng/nbscore/pkg/source"
)

type stubSource struct {
	name  source.SourceType
	items []source.Headline
	err   error
}

func (s *stubSource) Name() source.SourceType { return s.name }

func (s *stubSource) Collect(context.Context) ([]source.Headline, error) {
	return s.items, s.err
}

type collectLog struct {
	mu    sync.Mutex
	calls map[string]error
}

func (c *collectLog) ObserveCollect(src string, _ int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[src] = err
}

func newEngine(t *testing.T) (*calc.Engine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "sched.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	scorer, err := nb.NewScorer(nb.DefaultConfig())
	require.NoError(t, err)
	return calc.NewEngine(scorer, st, calc.DefaultOptions()), st
}

func TestCollectOnce(t *testing.T) {
	engine, st := newEngine(t)
	hn := &stubSource{name: source.SourceHackerNews, items: []source.Headline{
		{Title: "Go 1.26 released"},
		{Title: "hello"},
		{Title: "Hello"},
	}}
	rss := &stubSource{name: source.SourceRSS, items: []source.Headline{
		{Title: "안녕하세요"},
	}}
	broken := &stubSource{name: "broken", err: errors.New("dns failure")}
	obs := &collectLog{calls: map[string]error{}}

	s := New(engine, []source.Source{hn, rss, broken}, time.Minute, obs, nil)
	sum, err := s.CollectOnce(context.Background())

	assert.ErrorContains(t, err, "dns failure")
	assert.Equal(t, 4, sum.Collected)
	assert.Equal(t, 4, sum.Scored)
	assert.Zero(t, sum.Failed)
	assert.Equal(t, 3, sum.BySource["hackernews"])
	assert.Equal(t, 1, sum.BySource["rss"])

	assert.NoError(t, obs.calls["hackernews"])
	assert.Error(t, obs.calls["broken"])

	ctx := context.Background()
	news, err := st.ListCalculations(ctx, store.ListOpts{Category: "news:hackernews"})
	require.NoError(t, err)
	assert.Len(t, news, 2)

	// The repeated headline reuses the first calculation.
	hello, err := st.SearchByText(ctx, "hello", 10)
	require.NoError(t, err)
	assert.Len(t, hello, 1)
}

func TestRun_StopsOnCancel(t *testing.T) {
	engine, _ := newEngine(t)
	s := New(engine, nil, time.Hour, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
