package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a calculation id does not exist.
var ErrNotFound = errors.New("calculation not found")

// Calculation kinds.
const (
	KindNumber = "number"
	KindText   = "text"
)

// DefaultCategory is used when a calculation has no category.
const DefaultCategory = "general"

// Result is one MAX/MIN evaluation of a calculation's sequence.
type Result struct {
	Calculation int     `json:"calculation,omitempty"`
	NBMax       float64 `json:"nb_max"`
	NBMin       float64 `json:"nb_min"`
	Difference  float64 `json:"difference"`
}

// Calculation is a stored scoring request and its results.
type Calculation struct {
	ID          string    `db:"id" json:"id"`
	Kind        string    `db:"kind" json:"type"`
	Input       string    `db:"input" json:"input"`
	InputKey    string    `db:"input_key" json:"-"`
	ValuesJSON  string    `db:"values_json" json:"-"`
	Values      []float64 `db:"-" json:"values"`
	UnicodeKey  string    `db:"unicode_key" json:"-"`
	Bit         float64   `db:"bit" json:"bit"`
	Category    string    `db:"category" json:"category"`
	ViewCount   int       `db:"view_count" json:"view_count"`
	ResultsJSON string    `db:"results_json" json:"-"`
	Results     []Result  `db:"-" json:"results"`
	NBMax       float64   `db:"nb_max" json:"nb_max"`
	NBMin       float64   `db:"nb_min" json:"nb_min"`
	Difference  float64   `db:"difference" json:"difference"`
	CreatedAt   time.Time `db:"created_at" json:"timestamp"`
}

// ListOpts controls calculation listing.
type ListOpts struct {
	Kind     string
	Category string
	Limit    int
	Offset   int
}

// Stats summarizes the stored calculations.
type Stats struct {
	TotalCalculations int            `json:"total_calculations"`
	TotalViews        int            `json:"total_views"`
	ByKind            map[string]int `json:"by_kind"`
	ByCategory        map[string]int `json:"by_category"`
	AverageMax        float64        `json:"average_nb_max"`
	AverageMin        float64        `json:"average_nb_min"`
	LastCalculation   *time.Time     `json:"last_calculation,omitempty"`
}

// Keyword is one input ranked by how often its calculations were viewed.
type Keyword struct {
	Keyword      string `db:"keyword" json:"keyword"`
	Views        int    `db:"views" json:"count"`
	Calculations int    `db:"calculations" json:"calculations"`
}

// Store is the persistence interface.
type Store interface {
	SaveCalculation(ctx context.Context, c *Calculation) error
	GetCalculation(ctx context.Context, id string, incrementView bool) (*Calculation, error)
	ListCalculations(ctx context.Context, opts ListOpts) ([]Calculation, error)
	ListRecent(ctx context.Context, limit int) ([]Calculation, error)
	ListMostViewed(ctx context.Context, limit int) ([]Calculation, error)

	SearchByText(ctx context.Context, text string, limit int) ([]Calculation, error)
	SearchByUnicode(ctx context.Context, values []float64, limit int) ([]Calculation, error)
	SearchSimilar(ctx context.Context, text string, maxDistance, limit int) ([]Calculation, error)

	Stats(ctx context.Context) (*Stats, error)
	TopKeywords(ctx context.Context, limit int) ([]Keyword, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SequenceKey is the index key of a value sequence.
func SequenceKey(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, ",")
}

// SaveCalculation assigns an id and timestamp when missing and inserts c.
func (s *SQLiteStore) SaveCalculation(ctx context.Context, c *Calculation) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	if c.Category == "" {
		c.Category = DefaultCategory
	}
	if len(c.Results) > 0 {
		c.NBMax = c.Results[0].NBMax
		c.NBMin = c.Results[0].NBMin
		c.Difference = c.Results[0].Difference
	}

	valuesJSON, err := json.Marshal(c.Values)
	if err != nil {
		return fmt.Errorf("marshal values %s: %w", c.ID, err)
	}
	resultsJSON, err := json.Marshal(c.Results)
	if err != nil {
		return fmt.Errorf("marshal results %s: %w", c.ID, err)
	}
	c.ValuesJSON = string(valuesJSON)
	c.ResultsJSON = string(resultsJSON)
	c.InputKey = ""
	if c.Kind == KindText {
		c.InputKey = strings.ToLower(c.Input)
	}
	c.UnicodeKey = SequenceKey(c.Values)

	_, err = s.db.NamedExecContext(ctx, `
		INSERT INTO calculations (id, kind, input, input_key, values_json, unicode_key, bit, category,
			view_count, results_json, nb_max, nb_min, difference, created_at)
		VALUES (:id, :kind, :input, :input_key, :values_json, :unicode_key, :bit, :category,
			:view_count, :results_json, :nb_max, :nb_min, :difference, :created_at)
	`, c)
	if err != nil {
		return fmt.Errorf("insert calculation %s: %w", c.ID, err)
	}
	return nil
}

func (s *SQLiteStore) GetCalculation(ctx context.Context, id string, incrementView bool) (*Calculation, error) {
	if incrementView {
		res, err := s.db.ExecContext(ctx, "UPDATE calculations SET view_count = view_count + 1 WHERE id = ?", id)
		if err != nil {
			return nil, fmt.Errorf("increment views %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return nil, fmt.Errorf("get calculation %s: %w", id, ErrNotFound)
		}
	}

	var c Calculation
	err := s.db.GetContext(ctx, &c, "SELECT * FROM calculations WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get calculation %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get calculation %s: %w", id, err)
	}
	if err := c.decode(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListCalculations(ctx context.Context, opts ListOpts) ([]Calculation, error) {
	query := "SELECT * FROM calculations WHERE 1=1"
	var args []any

	if opts.Kind != "" {
		query += " AND kind = ?"
		args = append(args, opts.Kind)
	}
	if opts.Category != "" {
		query += " AND category = ?"
		args = append(args, opts.Category)
	}

	query += " ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?"
	args = append(args, limitOr(opts.Limit, 50), max(opts.Offset, 0))

	return s.selectCalculations(ctx, "list calculations", query, args...)
}

func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]Calculation, error) {
	return s.ListCalculations(ctx, ListOpts{Limit: limitOr(limit, 10)})
}

func (s *SQLiteStore) ListMostViewed(ctx context.Context, limit int) ([]Calculation, error) {
	return s.selectCalculations(ctx, "list most viewed",
		"SELECT * FROM calculations ORDER BY view_count DESC, created_at DESC, rowid DESC LIMIT ?",
		limitOr(limit, 10))
}

// SearchByText matches text inputs case-insensitively.
func (s *SQLiteStore) SearchByText(ctx context.Context, text string, limit int) ([]Calculation, error) {
	return s.selectCalculations(ctx, "search text",
		"SELECT * FROM calculations WHERE kind = ? AND input_key = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		KindText, strings.ToLower(text), limitOr(limit, 10))
}

// SearchByUnicode matches calculations whose sequence equals values.
func (s *SQLiteStore) SearchByUnicode(ctx context.Context, values []float64, limit int) ([]Calculation, error) {
	return s.selectCalculations(ctx, "search unicode",
		"SELECT * FROM calculations WHERE unicode_key = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		SequenceKey(values), limitOr(limit, 10))
}

// similarScanLimit bounds how many recent text calculations SearchSimilar compares.
const similarScanLimit = 1000

// SearchSimilar returns text calculations whose lowercased input is within
// maxDistance edits of text, closest first.
func (s *SQLiteStore) SearchSimilar(ctx context.Context, text string, maxDistance, limit int) ([]Calculation, error) {
	candidates, err := s.selectCalculations(ctx, "search similar",
		"SELECT * FROM calculations WHERE kind = ? ORDER BY created_at DESC, rowid DESC LIMIT ?",
		KindText, similarScanLimit)
	if err != nil {
		return nil, err
	}

	key := strings.ToLower(text)
	type scored struct {
		c    Calculation
		dist int
	}
	var matches []scored
	for _, c := range candidates {
		if d := levenshtein.ComputeDistance(key, c.InputKey); d <= maxDistance {
			matches = append(matches, scored{c: c, dist: d})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].dist < matches[j].dist
	})

	limit = limitOr(limit, 10)
	out := make([]Calculation, 0, min(limit, len(matches)))
	for _, m := range matches {
		if len(out) == limit {
			break
		}
		out = append(out, m.c)
	}
	return out, nil
}

func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{
		ByKind:     make(map[string]int),
		ByCategory: make(map[string]int),
	}

	var agg struct {
		Total  int             `db:"total"`
		Views  sql.NullInt64   `db:"views"`
		AvgMax sql.NullFloat64 `db:"avg_max"`
		AvgMin sql.NullFloat64 `db:"avg_min"`
	}
	err := s.db.GetContext(ctx, &agg, `
		SELECT COUNT(*) AS total, SUM(view_count) AS views, AVG(nb_max) AS avg_max, AVG(nb_min) AS avg_min
		FROM calculations
	`)
	if err != nil {
		return nil, fmt.Errorf("stats totals: %w", err)
	}
	st.TotalCalculations = agg.Total
	st.TotalViews = int(agg.Views.Int64)
	st.AverageMax = agg.AvgMax.Float64
	st.AverageMin = agg.AvgMin.Float64

	if err := s.countBy(ctx, "kind", st.ByKind); err != nil {
		return nil, err
	}
	if err := s.countBy(ctx, "category", st.ByCategory); err != nil {
		return nil, err
	}

	if st.TotalCalculations > 0 {
		var last Calculation
		err := s.db.GetContext(ctx, &last, "SELECT * FROM calculations ORDER BY created_at DESC, rowid DESC LIMIT 1")
		if err != nil {
			return nil, fmt.Errorf("stats last calculation: %w", err)
		}
		st.LastCalculation = &last.CreatedAt
	}
	return st, nil
}

// TopKeywords sums view counts per input, most viewed first. Text inputs
// are grouped case-insensitively; numeric inputs by their exact text.
func (s *SQLiteStore) TopKeywords(ctx context.Context, limit int) ([]Keyword, error) {
	var out []Keyword
	err := s.db.SelectContext(ctx, &out, `
		SELECT MAX(input) AS keyword, SUM(view_count) AS views, COUNT(*) AS calculations
		FROM calculations
		GROUP BY CASE WHEN kind = ? THEN input_key ELSE input END
		ORDER BY views DESC, calculations DESC, keyword ASC
		LIMIT ?
	`, KindText, limitOr(limit, 20))
	if err != nil {
		return nil, fmt.Errorf("top keywords: %w", err)
	}
	return out, nil
}

// countBy fills counts with COUNT(*) grouped by a fixed column name.
func (s *SQLiteStore) countBy(ctx context.Context, column string, counts map[string]int) error {
	rows, err := s.db.QueryxContext(ctx, "SELECT "+column+", COUNT(*) FROM calculations GROUP BY "+column)
	if err != nil {
		return fmt.Errorf("count by %s: %w", column, err)
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var cnt int
		if err := rows.Scan(&key, &cnt); err != nil {
			return fmt.Errorf("scan count by %s: %w", column, err)
		}
		counts[key] = cnt
	}
	return rows.Err()
}

func (s *SQLiteStore) selectCalculations(ctx context.Context, op, query string, args ...any) ([]Calculation, error) {
	var out []Calculation
	if err := s.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for i := range out {
		if err := out[i].decode(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Calculation) decode() error {
	if err := json.Unmarshal([]byte(c.ValuesJSON), &c.Values); err != nil {
		return fmt.Errorf("decode values %s: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(c.ResultsJSON), &c.Results); err != nil {
		return fmt.Errorf("decode results %s: %w", c.ID, err)
	}
	return nil
}

func limitOr(limit, def int) int {
	if limit <= 0 {
		return def
	}
	return limit
}
