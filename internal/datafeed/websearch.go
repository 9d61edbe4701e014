package datafeed

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/gridsage/gridsage/internal/infra"
)

const duckDuckGoURL = "https://html.duckduckgo.com/html/"

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// WebSearch scrapes the DuckDuckGo HTML endpoint, which needs no API key.
type WebSearch struct {
	baseURL string
	limiter *infra.RateLimiter
}

// NewWebSearch creates a web search source.
func NewWebSearch() *WebSearch {
	return &WebSearch{
		baseURL: duckDuckGoURL,
		limiter: infra.NewRateLimiter(1, time.Second),
	}
}

// Search returns up to limit results for the query.
func (w *WebSearch) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if err := w.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}

	body, _, err := infra.DoGet(ctx, w.baseURL+"?q="+url.QueryEscape(query), map[string]string{
		"User-Agent": "Mozilla/5.0 (compatible; GridSage/1.0)",
	})
	if err != nil {
		return nil, fmt.Errorf("web search: %w", err)
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse search results: %w", err)
	}

	var results []SearchResult
	doc.Find(".result").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a")
		href, _ := link.Attr("href")
		r := SearchResult{
			Title:   strings.TrimSpace(link.Text()),
			URL:     href,
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
		}
		if r.Title != "" {
			results = append(results, r)
		}
		return len(results) < limit
	})
	return results, nil
}
