package nb

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// RangePolicy decides which raw results are accepted.
type RangePolicy string

const (
	// PolicyFinite rejects only NaN and infinite results.
	PolicyFinite RangePolicy = "finite"
	// PolicyBounded additionally rejects results outside [-RangeLimit, RangeLimit].
	PolicyBounded RangePolicy = "bounded"
)

// Config holds the knobs that differ between scorer front ends.
type Config struct {
	DefaultBit  float64     `yaml:"default_bit" json:"default_bit" validate:"gt=0"`
	RangePolicy RangePolicy `yaml:"range_policy" json:"range_policy" validate:"required,oneof=finite bounded"`
	RangeLimit  float64     `yaml:"range_limit" json:"range_limit" validate:"gte=0,required_if=RangePolicy bounded"`
}

// DefaultConfig returns the web/CLI configuration: bit 999, finite check only.
func DefaultConfig() Config {
	return Config{
		DefaultBit:  DefaultBit,
		RangePolicy: PolicyFinite,
		RangeLimit:  100,
	}
}

// LegacyConfig returns the early CLI configuration: bit 5.5, results
// outside [-100, 100] fall back.
func LegacyConfig() Config {
	return Config{
		DefaultBit:  LegacyBit,
		RangePolicy: PolicyBounded,
		RangeLimit:  100,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid scorer config: %w", err)
	}
	return nil
}

// Accepts reports whether raw is a usable score under the policy.
func (c Config) Accepts(raw float64) bool {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return false
	}
	if c.RangePolicy == PolicyBounded && (raw > c.RangeLimit || raw < -c.RangeLimit) {
		return false
	}
	return true
}

// Resolve applies the post-check to raw with an explicit last-good value.
// It returns the score to report and the fallback value to carry forward.
func (c Config) Resolve(raw, last float64) (score, next float64, valid bool) {
	if !c.Accepts(raw) {
		return last, last, false
	}
	return raw, raw, true
}

// Fallback holds the last good score. The zero value starts at 0 and is
// safe for concurrent use.
type Fallback struct {
	mu   sync.Mutex
	last float64
}

// Last returns the current fallback value.
func (f *Fallback) Last() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Reset sets the fallback value back to 0.
func (f *Fallback) Reset() {
	f.mu.Lock()
	f.last = 0
	f.mu.Unlock()
}

// Observer is notified after every scoring call.
type Observer interface {
	ObserveScore(dir Direction, n int, valid bool, elapsed time.Duration)
}

// Pair is the result of a MAX and a MIN pass over the same input.
type Pair struct {
	Max        float64 `json:"nb_max"`
	Min        float64 `json:"nb_min"`
	Difference float64 `json:"difference"`
}

// Scorer computes MAX/MIN scores and owns the fallback state shared by its
// calls. A Scorer is safe for concurrent use.
type Scorer struct {
	cfg      Config
	fallback *Fallback
	observer Observer
}

// Option configures a Scorer.
type Option func(*Scorer)

// WithFallback makes the scorer use f instead of a private fallback, so
// several scorers can share one last-good value.
func WithFallback(f *Fallback) Option {
	return func(s *Scorer) { s.fallback = f }
}

// WithObserver registers an observer for scoring calls.
func WithObserver(o Observer) Option {
	return func(s *Scorer) { s.observer = o }
}

// NewScorer validates cfg and returns a Scorer.
func NewScorer(cfg Config, opts ...Option) (*Scorer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Scorer{cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	if s.fallback == nil {
		s.fallback = &Fallback{}
	}
	return s, nil
}

// Config returns the scorer configuration.
func (s *Scorer) Config() Config { return s.cfg }

// Fallback returns the fallback state used by the scorer.
func (s *Scorer) Fallback() *Fallback { return s.fallback }

// BitMax returns the forward (MAX) score of values.
func (s *Scorer) BitMax(values []float64, bit float64) float64 {
	s.fallback.mu.Lock()
	defer s.fallback.mu.Unlock()
	return s.eval(values, bit, Forward)
}

// BitMin returns the reverse (MIN) score of values.
func (s *Scorer) BitMin(values []float64, bit float64) float64 {
	s.fallback.mu.Lock()
	defer s.fallback.mu.Unlock()
	return s.eval(values, bit, Reverse)
}

// Max is BitMax with the configured default bit.
func (s *Scorer) Max(values []float64) float64 {
	return s.BitMax(values, s.cfg.DefaultBit)
}

// Min is BitMin with the configured default bit.
func (s *Scorer) Min(values []float64) float64 {
	return s.BitMin(values, s.cfg.DefaultBit)
}

// Pair runs the MAX pass then the MIN pass while holding the fallback, so
// the two results see the same sequence of fallback updates a single
// caller would.
func (s *Scorer) Pair(values []float64, bit float64) Pair {
	s.fallback.mu.Lock()
	defer s.fallback.mu.Unlock()

	hi := s.eval(values, bit, Forward)
	lo := s.eval(values, bit, Reverse)
	return Pair{Max: hi, Min: lo, Difference: hi - lo}
}

// eval must be called with the fallback lock held.
func (s *Scorer) eval(values []float64, bit float64, dir Direction) float64 {
	start := time.Now()
	raw := Calculate(values, bit, dir)

	score, next, valid := s.cfg.Resolve(raw, s.fallback.last)
	s.fallback.last = next

	if s.observer != nil {
		s.observer.ObserveScore(dir, len(values), valid, time.Since(start))
	}
	return score
}
