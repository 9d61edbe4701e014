package datafeed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Energy Feed</title>
<item>
  <title>Day-ahead prices spike in DE</title>
  <link>https://example.com/a</link>
  <description>&lt;p&gt;German &lt;b&gt;day-ahead&lt;/b&gt; prices rose sharply.&lt;/p&gt;</description>
  <pubDate>Mon, 04 Mar 2024 08:00:00 GMT</pubDate>
</item>
<item>
  <title>Nordic hydro reservoirs above normal</title>
  <link>https://example.com/b</link>
  <description>Reservoir levels remain high.</description>
  <pubDate>Tue, 05 Mar 2024 09:00:00 GMT</pubDate>
</item>
</channel>
</rss>`

func TestHeadlines(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, sampleRSS)
	}))
	defer srv.Close()

	news := NewNewsWithSources([]NewsSource{{Name: "Test", RSSURL: srv.URL}})
	items, err := news.Headlines(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 headlines, got %d", len(items))
	}

	// Newest first.
	if items[0].Title != "Nordic hydro reservoirs above normal" {
		t.Errorf("first headline = %q", items[0].Title)
	}
	if items[1].Summary != "German day-ahead prices rose sharply." {
		t.Errorf("HTML not stripped: %q", items[1].Summary)
	}
	if items[0].Source != "Test" {
		t.Errorf("source = %q", items[0].Source)
	}
}

func TestHeadlines_SkipsFailedSources(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, sampleRSS)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer bad.Close()

	news := NewNewsWithSources([]NewsSource{
		{Name: "Bad", RSSURL: bad.URL},
		{Name: "Good", RSSURL: good.URL},
	})
	items, err := news.Headlines(context.Background(), 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 1 {
		t.Fatalf("expected the limit of 1 headline, got %d", len(items))
	}
}

func TestStripHTML(t *testing.T) {
	if got := stripHTML("<p>hello <b>world</b></p>"); got != "hello world" {
		t.Errorf("stripHTML = %q", got)
	}
	if got := stripHTML(""); got != "" {
		t.Errorf("stripHTML(\"\") = %q", got)
	}
}

func TestSortHeadlines(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []Headline{
		{Title: "old", PublishedAt: base},
		{Title: "new", PublishedAt: base.Add(48 * time.Hour)},
		{Title: "mid", PublishedAt: base.Add(24 * time.Hour)},
	}
	sortHeadlines(items)
	if items[0].Title != "new" || items[2].Title != "old" {
		t.Errorf("wrong order: %v %v %v", items[0].Title, items[1].Title, items[2].Title)
	}
}

func TestWebSearch_ParsesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "electricity prices" {
			t.Errorf("query = %q", r.URL.Query().Get("q"))
		}
		fmt.Fprint(w, `<html><body>
			<div class="result">
			  <a class="result__a" href="https://example.com/1">First hit</a>
			  <div class="result__snippet">Snippet one</div>
			</div>
			<div class="result">
			  <a class="result__a" href="https://example.com/2">Second hit</a>
			  <div class="result__snippet">Snippet two</div>
			</div>
			<div class="result">
			  <a class="result__a" href="https://example.com/3">Third hit</a>
			</div>
		</body></html>`)
	}))
	defer srv.Close()

	ws := NewWebSearch()
	ws.baseURL = srv.URL + "/"

	results, err := ws.Search(context.Background(), "electricity prices", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].Title != "First hit" || results[0].URL != "https://example.com/1" {
		t.Errorf("first result: %+v", results[0])
	}
	if results[1].Snippet != "Snippet two" {
		t.Errorf("snippet: %q", results[1].Snippet)
	}
}
