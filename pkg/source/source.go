// Package source collects headlines whose titles are scored as text.
package source

import (
	"context"
	"time"
)

// SourceType identifies which platform a headline came from.
type SourceType string

const (
	SourceHackerNews SourceType = "hackernews"
	SourceRSS        SourceType = "rss"
)

// Headline is a collected title with its origin.
type Headline struct {
	ID          string     `json:"id"`
	Source      SourceType `json:"source"`
	Feed        string     `json:"feed,omitempty"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt time.Time  `json:"published_at"`
}

// Category is the calculation category headlines of s are stored under.
func (s SourceType) Category() string {
	return "news:" + string(s)
}

// Source is the interface every collector must implement.
type Source interface {
	Name() SourceType
	Collect(ctx context.Context) ([]Headline, error)
}
