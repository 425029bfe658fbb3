// Package calc turns user input into stored MAX/MIN calculations. It is the
// single entry point used by the CLI, the HTTP API and the headline
// collectors.
package calc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/elonfeng/nbscore/internal/store"
	"github.com/elonfeng/nbscore/pkg/alert"
	"github.com/elonfeng/nbscore/pkg/archive"
	"github.com/elonfeng/nbscore/pkg/nb"
	"github.com/elonfeng/nbscore/pkg/textseq"
)

var (
	// ErrEmptyInput is returned when a request has neither input nor values.
	ErrEmptyInput = errors.New("empty input")
	// ErrTooManyValues is returned when a sequence exceeds Options.MaxValues.
	ErrTooManyValues = errors.New("too many values")
	// ErrInvalidRequest wraps request validation failures.
	ErrInvalidRequest = errors.New("invalid request")
)

var validate = validator.New()

// Request is a single calculation request.
type Request struct {
	Input    string    `json:"input" validate:"max=20000"`
	Values   []float64 `json:"values,omitempty"`
	Bit      float64   `json:"bit,omitempty" validate:"gte=0"`
	Category string    `json:"category,omitempty" validate:"omitempty,max=64"`

	// Reuse returns the newest stored calculation for the same text and bit
	// instead of scoring it again.
	Reuse bool `json:"-"`
}

// Options bounds and shapes calculations.
type Options struct {
	MaxValues     int
	TextRepeat    int
	DecimalPlaces int
	Normalize     bool

	// MinBit and MaxBit bound a non-zero Request.Bit.
	MinBit float64
	MaxBit float64
}

// DefaultOptions matches the config defaults.
func DefaultOptions() Options {
	return Options{
		MaxValues:     2000,
		TextRepeat:    3,
		DecimalPlaces: 10,
		Normalize:     true,
		MinBit:        nb.MinBit,
		MaxBit:        nb.MaxBit,
	}
}

// Recorder receives one event per stored calculation.
type Recorder interface {
	ObserveCalculation(kind string, difference float64)
}

// Engine scores requests and persists them.
type Engine struct {
	scorer   *nb.Scorer
	store    store.Store
	mapper   textseq.Mapper
	opts     Options
	archive  *archive.Archive
	alerts   *alert.Manager
	recorder Recorder
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Option configures an Engine.
type Option func(*Engine)

// WithArchive writes every MAX/MIN to a.
func WithArchive(a *archive.Archive) Option {
	return func(e *Engine) { e.archive = a }
}

// WithAlerts broadcasts wide spreads through m.
func WithAlerts(m *alert.Manager) Option {
	return func(e *Engine) { e.alerts = m }
}

// WithRecorder reports stored calculations to r.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithLogger sets the engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a calculation engine.
func NewEngine(scorer *nb.Scorer, s store.Store, opts Options, options ...Option) *Engine {
	if opts.MaxValues <= 0 {
		opts.MaxValues = 2000
	}
	if opts.TextRepeat <= 0 {
		opts.TextRepeat = 1
	}
	if opts.MinBit <= 0 {
		opts.MinBit = nb.MinBit
	}
	if opts.MaxBit < opts.MinBit {
		opts.MaxBit = max(nb.MaxBit, opts.MinBit)
	}
	e := &Engine{
		scorer: scorer,
		store:  s,
		mapper: textseq.Mapper{Normalize: opts.Normalize},
		opts:   opts,
		logger: slog.Default(),
		tracer: otel.Tracer("nbscore/calc"),
	}
	for _, o := range options {
		o(e)
	}
	return e
}

// Store returns the backing store.
func (e *Engine) Store() store.Store { return e.store }

// Calculate scores req and stores the result. Numeric input yields one
// result; text input yields Options.TextRepeat results over its mapped
// code points.
func (e *Engine) Calculate(ctx context.Context, req Request) (c *store.Calculation, err error) {
	ctx, span := e.tracer.Start(ctx, "Engine.Calculate")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	c, err = e.prepare(req)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("calc.kind", c.Kind),
		attribute.Int("calc.values", len(c.Values)),
		attribute.Float64("calc.bit", c.Bit),
		attribute.String("calc.category", c.Category),
	)

	if req.Reuse && c.Kind == store.KindText {
		if prev := e.lookup(ctx, c); prev != nil {
			span.AddEvent("calc.reused", trace.WithAttributes(attribute.String("calc.id", prev.ID)))
			return prev, nil
		}
	}

	repeats := 1
	if c.Kind == store.KindText {
		repeats = e.opts.TextRepeat
	}
	for i := range repeats {
		p := e.scorer.Pair(c.Values, c.Bit)
		r := store.Result{
			NBMax:      Round(p.Max, e.opts.DecimalPlaces),
			NBMin:      Round(p.Min, e.opts.DecimalPlaces),
			Difference: Round(p.Difference, e.opts.DecimalPlaces),
		}
		if c.Kind == store.KindText {
			r.Calculation = i + 1
		}
		c.Results = append(c.Results, r)
	}

	if err := e.store.SaveCalculation(ctx, c); err != nil {
		return nil, fmt.Errorf("save calculation: %w", err)
	}
	span.SetAttributes(attribute.String("calc.id", c.ID), attribute.Float64("calc.difference", c.Difference))

	if e.recorder != nil {
		e.recorder.ObserveCalculation(c.Kind, c.Difference)
	}
	e.archiveResult(c)
	e.notify(ctx, c)

	e.logger.Debug("calculated",
		"id", c.ID, "kind", c.Kind, "n", len(c.Values),
		"nb_max", c.NBMax, "nb_min", c.NBMin)
	return c, nil
}

// prepare classifies the request and builds an unsaved calculation.
func (e *Engine) prepare(req Request) (*store.Calculation, error) {
	c := &store.Calculation{
		Input:    strings.TrimSpace(req.Input),
		Bit:      req.Bit,
		Category: strings.TrimSpace(req.Category),
	}
	switch {
	case c.Bit == 0:
		c.Bit = e.scorer.Config().DefaultBit
	case c.Bit < e.opts.MinBit || c.Bit > e.opts.MaxBit:
		return nil, fmt.Errorf("%w: bit %g outside [%g, %g]", ErrInvalidRequest, c.Bit, e.opts.MinBit, e.opts.MaxBit)
	}
	if c.Category == "" {
		c.Category = store.DefaultCategory
	}

	switch {
	case len(req.Values) > 0:
		for _, v := range req.Values {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, textseq.ErrNotFinite)
			}
		}
		c.Kind = store.KindNumber
		c.Values = req.Values
		if c.Input == "" {
			c.Input = formatValues(req.Values)
		}
	case c.Input == "":
		return nil, ErrEmptyInput
	default:
		kind, values := textseq.Classify(c.Input)
		c.Kind = string(kind)
		if kind == textseq.KindNumber {
			c.Values = values
		} else {
			c.Values = e.mapper.Map(c.Input)
		}
	}

	if len(c.Values) > e.opts.MaxValues {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyValues, len(c.Values), e.opts.MaxValues)
	}
	return c, nil
}

func (e *Engine) lookup(ctx context.Context, c *store.Calculation) *store.Calculation {
	found, err := e.store.SearchByText(ctx, c.Input, 10)
	if err != nil {
		e.logger.Warn("reuse lookup failed", "input", c.Input, "err", err)
		return nil
	}
	for i := range found {
		if found[i].Bit == c.Bit {
			return &found[i]
		}
	}
	return nil
}

func (e *Engine) archiveResult(c *store.Calculation) {
	if e.archive == nil {
		return
	}
	if _, err := e.archive.Save(c.NBMax, archive.TypeMax, c.Input); err != nil {
		e.logger.Warn("archive failed", "id", c.ID, "type", archive.TypeMax, "err", err)
	}
	if _, err := e.archive.Save(c.NBMin, archive.TypeMin, c.Input); err != nil {
		e.logger.Warn("archive failed", "id", c.ID, "type", archive.TypeMin, "err", err)
	}
}

func (e *Engine) notify(ctx context.Context, c *store.Calculation) {
	if e.alerts == nil || !e.alerts.ShouldNotify(c) {
		return
	}
	if err := e.alerts.Broadcast(ctx, alert.FromCalculation(c)); err != nil {
		e.logger.Warn("alert failed", "id", c.ID, "err", err)
		return
	}
	e.logger.Info("alerted", "id", c.ID, "difference", c.Difference)
}

// Round rounds v to places decimals. Non-finite values are returned as is.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	p := math.Pow10(places)
	r := math.Round(v*p) / p
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return v
	}
	return r
}

func formatValues(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ", ")
}
