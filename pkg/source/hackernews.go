package source

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const hnBaseURL = "https://hacker-news.firebaseio.com/v0"

// HackerNews collects top story titles from Hacker News.
type HackerNews struct {
	client  *http.Client
	baseURL string
	limit   int
	filter  *Filter
}

// NewHackerNews creates a new HN collector.
func NewHackerNews(limit int, filter *Filter) *HackerNews {
	if limit <= 0 {
		limit = 30
	}
	return &HackerNews{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: hnBaseURL,
		limit:   limit,
		filter:  filter,
	}
}

func (h *HackerNews) Name() SourceType { return SourceHackerNews }

// Collect fetches up to limit top stories, ten at a time. Items that fail
// to load are skipped.
func (h *HackerNews) Collect(ctx context.Context) ([]Headline, error) {
	ids, err := h.fetchTopStories(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) > h.limit {
		ids = ids[:h.limit]
	}

	var (
		mu    sync.Mutex
		byPos = make(map[int]Headline, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(10)

	for pos, id := range ids {
		g.Go(func() error {
			story, err := h.fetchItem(gctx, id)
			if err != nil || story == nil || story.Title == "" {
				return nil
			}
			if !h.filter.Match(story.Title) {
				return nil
			}

			hl := Headline{
				ID:          fmt.Sprintf("hackernews:%d", story.ID),
				Source:      SourceHackerNews,
				Title:       story.Title,
				URL:         story.URL,
				PublishedAt: time.Unix(story.Time, 0).UTC(),
			}
			if hl.URL == "" {
				hl.URL = fmt.Sprintf("https://news.ycombinator.com/item?id=%d", story.ID)
			}

			mu.Lock()
			byPos[pos] = hl
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Keep the ranking order of the top stories list.
	out := make([]Headline, 0, len(byPos))
	for pos := range ids {
		if hl, ok := byPos[pos]; ok {
			out = append(out, hl)
		}
	}
	return out, nil
}

type hnStory struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
	Time  int64  `json:"time"`
	Type  string `json:"type"`
}

func (h *HackerNews) fetchTopStories(ctx context.Context) ([]int, error) {
	var ids []int
	if err := h.getJSON(ctx, h.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch hn top stories: %w", err)
	}
	return ids, nil
}

func (h *HackerNews) fetchItem(ctx context.Context, id int) (*hnStory, error) {
	var story hnStory
	if err := h.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", h.baseURL, id), &story); err != nil {
		return nil, fmt.Errorf("fetch hn item %d: %w", id, err)
	}
	if story.Type != "story" {
		return nil, nil
	}
	return &story, nil
}

func (h *HackerNews) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
