// Package datafeed provides supplementary data sources for the assistant:
// energy news feeds and web search.
package datafeed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"

	"github.com/gridsage/gridsage/internal/infra"
)

// NewsSource describes one RSS feed.
type NewsSource struct {
	Name   string
	RSSURL string
}

// DefaultNewsSources lists the configured European energy news feeds.
var DefaultNewsSources = []NewsSource{
	{
		Name:   "Montel News",
		RSSURL: "https://montelnews.com/rss",
	},
	{
		Name:   "Euractiv Energy",
		RSSURL: "https://www.euractiv.com/sections/energy/feed/",
	},
	{
		Name:   "Reuters Energy",
		RSSURL: "https://www.reutersagency.com/feed/?best-topics=energy",
	},
}

// Headline is one news item.
type Headline struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// News fetches headlines from the configured energy feeds.
type News struct {
	sources []NewsSource
	cache   *infra.Cache
	limiter *infra.RateLimiter
	parser  *gofeed.Parser
}

// NewNews creates a news feed with the default sources.
func NewNews() *News {
	return NewNewsWithSources(DefaultNewsSources)
}

// NewNewsWithSources creates a news feed with custom sources.
func NewNewsWithSources(sources []NewsSource) *News {
	return &News{
		sources: sources,
		cache:   infra.NewCache(10 * time.Minute),
		limiter: infra.NewRateLimiter(2, time.Second),
		parser:  gofeed.NewParser(),
	}
}

// Headlines returns recent energy headlines across all sources, newest
// first. Failed sources are skipped.
func (n *News) Headlines(ctx context.Context, limit int) ([]Headline, error) {
	cacheKey := fmt.Sprintf("news:%d", limit)
	if cached, ok := n.cache.Get(cacheKey); ok {
		return cached.([]Headline), nil
	}

	var all []Headline
	for _, src := range n.sources {
		items, err := n.fetchRSS(ctx, src)
		if err != nil {
			continue
		}
		all = append(all, items...)
	}

	sortHeadlines(all)
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}

	n.cache.Set(cacheKey, all)
	return all, nil
}

func (n *News) fetchRSS(ctx context.Context, src NewsSource) ([]Headline, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	feed, err := n.parser.ParseURLWithContext(src.RSSURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("parse RSS %s: %w", src.Name, err)
	}

	items := make([]Headline, 0, len(feed.Items))
	for _, item := range feed.Items {
		h := Headline{
			Title:   item.Title,
			URL:     item.Link,
			Source:  src.Name,
			Summary: stripHTML(item.Description),
		}
		if item.PublishedParsed != nil {
			h.PublishedAt = *item.PublishedParsed
		}
		items = append(items, h)
	}
	return items, nil
}

// stripHTML removes markup from a string using goquery.
func stripHTML(s string) string {
	if s == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<body>" + s + "</body>"))
	if err != nil {
		return s
	}
	return strings.TrimSpace(doc.Text())
}

// sortHeadlines orders by published date, newest first. Insertion sort is
// fine for feed-sized slices.
func sortHeadlines(items []Headline) {
	for i := 1; i < len(items); i++ {
		key := items[i]
		j := i - 1
		for j >= 0 && items[j].PublishedAt.Before(key.PublishedAt) {
			items[j+1] = items[j]
			j--
		}
		items[j+1] = key
	}
}
