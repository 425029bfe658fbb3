package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/elonfeng/nbscore/internal/store"
	"github.com/elonfeng/nbscore/pkg/calc"
)

const (
	maxBodyBytes = 1 << 20
	maxKeywords  = 100
)

// Options configures the HTTP server.
type Options struct {
	Port int
	// RateLimit is the allowed calculate/search requests per second.
	// Zero disables limiting.
	RateLimit float64
	RateBurst int
	// Metrics serves /metrics. Defaults to promhttp.Handler().
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server provides the HTTP API.
type Server struct {
	engine  *calc.Engine
	store   store.Store
	limiter *rate.Limiter
	metrics http.Handler
	logger  *slog.Logger
	port    int
}

// New creates a new HTTP server.
func New(engine *calc.Engine, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if opts.Metrics == nil {
		opts.Metrics = promhttp.Handler()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	s := &Server{
		engine:  engine,
		store:   engine.Store(),
		metrics: opts.Metrics,
		logger:  opts.Logger,
		port:    opts.Port,
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = int(opts.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}
	return s
}

// Handler returns the API routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics)

	mux.HandleFunc("POST /api/v1/calculate", s.limited(s.handleCalculate))
	mux.HandleFunc("POST /api/v1/search", s.limited(s.handleSearch))
	mux.HandleFunc("GET /api/v1/recent", s.handleRecent)
	mux.HandleFunc("GET /api/v1/most-viewed", s.handleMostViewed)
	mux.HandleFunc("GET /api/v1/stats", s.handleStats)
	mux.HandleFunc("GET /api/v1/keywords/top", s.handleTopKeywords)
	mux.HandleFunc("GET /api/v1/calculations", s.handleCalculations)
	mux.HandleFunc("GET /api/v1/calculations/{id}", s.handleCalculation)
	return mux
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) limited(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCalculate(w http.ResponseWriter, r *http.Request) {
	var req calc.Request
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c, err := s.engine.Calculate(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req calc.SearchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	found, err := s.engine.Search(r.Context(), req)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeList(w, found)
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.store.ListRecent(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeList(w, list)
}

func (s *Server) handleMostViewed(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	list, err := s.store.ListMostViewed(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeList(w, list)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.Stats(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": st})
}

func (s *Server) handleTopKeywords(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	keywords, err := s.store.TopKeywords(r.Context(), min(limit, maxKeywords))
	if err != nil {
		s.fail(w, err)
		return
	}
	if keywords == nil {
		keywords = []store.Keyword{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  keywords,
		"count": len(keywords),
	})
}

func (s *Server) handleCalculations(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	q := r.URL.Query()
	list, err := s.store.ListCalculations(r.Context(), store.ListOpts{
		Kind:     q.Get("kind"),
		Category: q.Get("category"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		s.fail(w, err)
		return
	}
	writeList(w, list)
}

func (s *Server) handleCalculation(w http.ResponseWriter, r *http.Request) {
	c, err := s.store.GetCalculation(r.Context(), r.PathValue("id"), true)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": c})
}

// fail maps engine and store errors to status codes.
func (s *Server) fail(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, calc.ErrEmptyInput),
		errors.Is(err, calc.ErrTooManyValues),
		errors.Is(err, calc.ErrInvalidRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func queryInt(r *http.Request, key string, def int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s %q", key, v)
	}
	return n, nil
}

func writeList(w http.ResponseWriter, list []store.Calculation) {
	if list == nil {
		list = []store.Calculation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data":  list,
		"count": len(list),
	})
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
