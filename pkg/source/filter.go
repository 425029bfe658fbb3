package source

import "strings"

// Filter keeps headlines by keyword. With no include keywords every
// headline matches unless it hits an exclude keyword.
type Filter struct {
	keywords []string
	exclude  []string
}

// NewFilter creates a case-insensitive keyword filter.
func NewFilter(keywords, excludeKeywords []string) *Filter {
	return &Filter{keywords: lowerAll(keywords), exclude: lowerAll(excludeKeywords)}
}

// Match reports whether text passes the filter. A nil filter matches all.
func (f *Filter) Match(text string) bool {
	if f == nil {
		return true
	}
	lower := strings.ToLower(text)

	for _, ex := range f.exclude {
		if strings.Contains(lower, ex) {
			return false
		}
	}
	if len(f.keywords) == 0 {
		return true
	}
	for _, kw := range f.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, strings.ToLower(s))
		}
	}
	return out
}
