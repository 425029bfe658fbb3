package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// RSSFeed is a named RSS/Atom feed URL.
type RSSFeed struct {
	Name string
	URL  string
}

// RSS collects headlines from RSS/Atom feeds.
type RSS struct {
	client *http.Client
	parser *gofeed.Parser
	feeds  []RSSFeed
	filter *Filter
	maxAge time.Duration
	now    func() time.Time
}

// NewRSS creates a new RSS collector. Entries older than a day are skipped.
func NewRSS(feeds []RSSFeed, filter *Filter) *RSS {
	return &RSS{
		client: &http.Client{Timeout: 30 * time.Second},
		parser: gofeed.NewParser(),
		feeds:  feeds,
		filter: filter,
		maxAge: 24 * time.Hour,
		now:    time.Now,
	}
}

func (r *RSS) Name() SourceType { return SourceRSS }

// Collect reads every feed. Failing feeds are reported in the joined error
// while headlines from the others are still returned.
func (r *RSS) Collect(ctx context.Context) ([]Headline, error) {
	var (
		all  []Headline
		errs []error
	)
	for _, feed := range r.feeds {
		items, err := r.collectFeed(ctx, feed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, items...)
	}

	err := errors.Join(errs...)
	if err != nil && len(all) == 0 {
		return nil, err
	}
	return all, err
}

func (r *RSS) collectFeed(ctx context.Context, feed RSSFeed) ([]Headline, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("create rss request %s: %w", feed.Name, err)
	}
	req.Header.Set("User-Agent", "nbscore/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rss %s: %w", feed.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rss %s status %d", feed.Name, resp.StatusCode)
	}

	parsed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse rss %s: %w", feed.Name, err)
	}

	now := r.now().UTC()
	cutoff := now.Add(-r.maxAge)

	var out []Headline
	for _, entry := range parsed.Items {
		title := strings.TrimSpace(entry.Title)
		if title == "" {
			continue
		}

		published := now
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed.UTC()
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed.UTC()
		}
		if published.Before(cutoff) {
			continue
		}
		if !r.filter.Match(title) {
			continue
		}

		link := entry.Link
		if link == "" && len(entry.Links) > 0 {
			link = entry.Links[0]
		}
		guid := entry.GUID
		if guid == "" {
			guid = link
		}

		out = append(out, Headline{
			ID:          fmt.Sprintf("rss:%s:%s", feed.Name, guid),
			Source:      SourceRSS,
			Feed:        feed.Name,
			Title:       title,
			URL:         link,
			PublishedAt: published,
		})
	}
	return out, nil
}
