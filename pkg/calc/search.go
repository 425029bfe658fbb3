package calc

import (
	"context"
	"fmt"
	"strings"

	"github.com/elonfeng/nbscore/internal/store"
)

// SearchRequest looks up stored calculations by text or by sequence.
type SearchRequest struct {
	Text    string    `json:"text,omitempty" validate:"max=20000"`
	Unicode []float64 `json:"unicode,omitempty"`
	// Fuzzy is the maximum edit distance for text matches. Zero means exact.
	Fuzzy int `json:"fuzzy,omitempty" validate:"gte=0,lte=10"`
	Limit int `json:"limit,omitempty" validate:"gte=0,lte=500"`
}

// Search returns matches for req. Text is tried first; when it finds
// nothing the sequence is searched, falling back to the mapped text.
func (e *Engine) Search(ctx context.Context, req SearchRequest) ([]store.Calculation, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	text := strings.TrimSpace(req.Text)
	if text == "" && len(req.Unicode) == 0 {
		return nil, ErrEmptyInput
	}

	if text != "" {
		var (
			found []store.Calculation
			err   error
		)
		if req.Fuzzy > 0 {
			found, err = e.store.SearchSimilar(ctx, text, req.Fuzzy, req.Limit)
		} else {
			found, err = e.store.SearchByText(ctx, text, req.Limit)
		}
		if err != nil {
			return nil, err
		}
		if len(found) > 0 {
			return found, nil
		}
	}

	seq := req.Unicode
	if len(seq) == 0 {
		seq = e.mapper.Map(text)
	}
	return e.store.SearchByUnicode(ctx, seq, req.Limit)
}
