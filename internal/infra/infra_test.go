package infra

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCacheSetGet(t *testing.T) {
	c := NewCache(time.Minute)

	if _, ok := c.Get("missing"); ok {
		t.Error("missing key should not be found")
	}

	c.Set("k", 42)
	v, ok := c.Get("k")
	if !ok || v.(int) != 42 {
		t.Errorf("got %v, %v", v, ok)
	}

	c.Invalidate("k")
	if _, ok := c.Get("k"); ok {
		t.Error("invalidated key should not be found")
	}
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(time.Minute)
	c.SetWithTTL("k", "v", -time.Second)

	if _, ok := c.Get("k"); ok {
		t.Error("expired entry should not be returned")
	}
}

func TestCacheFlush(t *testing.T) {
	c := NewCache(time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Flush()

	if _, ok := c.Get("a"); ok {
		t.Error("flushed entry should not be found")
	}
}

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(3, time.Hour)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}
}

func TestRateLimiterHonorsContext(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	ctx := context.Background()

	if err := rl.Wait(ctx); err != nil {
		t.Fatal(err)
	}

	// Bucket is empty and refills in an hour; cancellation must win.
	cancelled, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()

	if err := rl.Wait(cancelled); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestDoGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Token") != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, "payload")
	}))
	defer srv.Close()

	body, status, err := DoGet(context.Background(), srv.URL, map[string]string{"X-Token": "secret"})
	if err != nil {
		t.Fatal(err)
	}
	defer body.Close()

	if status != http.StatusOK {
		t.Errorf("status = %d", status)
	}
	data, _ := io.ReadAll(body)
	if string(data) != "payload" {
		t.Errorf("body = %q", data)
	}
}

func TestDoGetHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such thing", http.StatusNotFound)
	}))
	defer srv.Close()

	_, status, err := DoGet(context.Background(), srv.URL, nil)
	if status != http.StatusNotFound {
		t.Errorf("status = %d", status)
	}

	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *HTTPError, got %T", err)
	}
	if httpErr.StatusCode != http.StatusNotFound || httpErr.Body != "no such thing" {
		t.Errorf("unexpected error: %+v", httpErr)
	}
}

func TestDoPostForm(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/x-www-form-urlencoded" {
			t.Errorf("content type = %q", r.Header.Get("Content-Type"))
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("grant_type") != "client_credentials" {
			t.Errorf("form = %v", r.PostForm)
		}
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	body, _, err := DoPostForm(context.Background(), srv.URL, nil, "grant_type=client_credentials")
	if err != nil {
		t.Fatal(err)
	}
	body.Close()
}
