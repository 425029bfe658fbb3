package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/elonfeng/nbscore/pkg/calc"
	"github.com/elonfeng/nbscore/pkg/source"
)

// CollectObserver is told how each source collection went.
type CollectObserver interface {
	ObserveCollect(source string, items int, err error)
}

// Summary reports one collection round.
type Summary struct {
	Collected int            `json:"collected"`
	Scored    int            `json:"scored"`
	Failed    int            `json:"failed"`
	BySource  map[string]int `json:"by_source"`
}

// Scheduler collects headlines and scores their titles on an interval.
type Scheduler struct {
	engine     *calc.Engine
	sources    []source.Source
	collectInt time.Duration
	observer   CollectObserver
	logger     *slog.Logger
}

// New creates a new scheduler. observer may be nil.
func New(engine *calc.Engine, sources []source.Source, collectInt time.Duration, observer CollectObserver, logger *slog.Logger) *Scheduler {
	if collectInt <= 0 {
		collectInt = 30 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		engine:     engine,
		sources:    sources,
		collectInt: collectInt,
		observer:   observer,
		logger:     logger.WithGroup("scheduler"),
	}
}

// Run collects immediately and then on every tick. Blocks until ctx is
// cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.collectInt)
	defer ticker.Stop()

	s.logger.Info("initial collection")
	s.round(ctx)
	s.logger.Info("running", "interval", s.collectInt)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("stopped")
			return ctx.Err()
		case <-ticker.C:
			s.round(ctx)
		}
	}
}

func (s *Scheduler) round(ctx context.Context) {
	sum, err := s.CollectOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("collection had errors", "err", err)
	}
	s.logger.Info("collected", "headlines", sum.Collected, "scored", sum.Scored, "failed", sum.Failed)
}

// CollectOnce runs all sources concurrently and scores every headline.
// Source and scoring failures are joined into the returned error; the
// summary always reflects the work that succeeded.
func (s *Scheduler) CollectOnce(ctx context.Context) (Summary, error) {
	sum := Summary{BySource: make(map[string]int)}

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, src := range s.sources {
		g.Go(func() error {
			name := string(src.Name())
			items, err := src.Collect(gctx)
			if s.observer != nil {
				s.observer.ObserveCollect(name, len(items), err)
			}
			if err != nil {
				s.logger.Warn("source failed", "source", name, "err", err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			scored, failed, scoreErr := s.score(gctx, src.Name(), items)

			mu.Lock()
			sum.Collected += len(items)
			sum.Scored += scored
			sum.Failed += failed
			sum.BySource[name] += scored
			if scoreErr != nil {
				errs = append(errs, scoreErr)
			}
			mu.Unlock()

			s.logger.Debug("source done", "source", name, "items", len(items), "scored", scored)
			return nil
		})
	}
	_ = g.Wait()

	return sum, errors.Join(errs...)
}

func (s *Scheduler) score(ctx context.Context, typ source.SourceType, items []source.Headline) (scored, failed int, err error) {
	var errs []error
	for _, it := range items {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		_, cerr := s.engine.Calculate(ctx, calc.Request{
			Input:    it.Title,
			Category: typ.Category(),
			Reuse:    true,
		})
		if cerr != nil {
			failed++
			errs = append(errs, cerr)
			continue
		}
		scored++
	}
	return scored, failed, errors.Join(errs...)
}
