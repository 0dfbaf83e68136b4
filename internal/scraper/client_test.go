package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestFetchPage_RetriesTimeouts(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&calls, 1)
		if n <= 2 {
			time.Sleep(300 * time.Millisecond) // beyond the per-attempt timeout
			return
		}
		fmt.Fprint(w, "<html><body>finally</body></html>")
	}))
	defer srv.Close()

	c := NewClient(100*time.Millisecond, 2, 10*time.Millisecond)
	body, _, err := c.FetchPage(context.Background(), srv.URL, DefaultMaxBodySize)
	if err != nil {
		t.Fatalf("expected third attempt to succeed, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if len(body) == 0 {
		t.Error("expected a body")
	}
}

func TestFetchPage_HTTPErrorNotRetried(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient(time.Second, 3, 10*time.Millisecond)
	_, _, err := c.FetchPage(context.Background(), srv.URL, DefaultMaxBodySize)
	if err == nil {
		t.Fatal("expected an error for 404")
	}
	if code, ok := IsStatusError(err); !ok || code != http.StatusNotFound {
		t.Errorf("expected a 404 status error, got %v", err)
	}
	if atomic.LoadInt64(&calls) != 1 {
		t.Errorf("HTTP errors must not be retried, got %d attempts", calls)
	}
}

func TestFetchPage_RetriesExhausted(t *testing.T) {
	var calls int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&calls, 1)
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(50*time.Millisecond, 3, 5*time.Millisecond)
	_, _, err := c.FetchPage(context.Background(), srv.URL, DefaultMaxBodySize)
	if err == nil {
		t.Fatal("expected failure after exhausting retries")
	}
	// 3 retries on top of the initial attempt.
	if atomic.LoadInt64(&calls) != 4 {
		t.Errorf("expected exactly 4 attempts, got %d", calls)
	}
}

func TestFetchPage_BodySizeCap(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 1000; i++ {
			fmt.Fprint(w, "xxxxxxxxxxxxxxxxxxxxxxxxxxxxxxxx")
		}
	}))
	defer srv.Close()

	c := NewClient(time.Second, 1, 0)
	_, _, err := c.FetchPage(context.Background(), srv.URL, 1024)
	if err == nil {
		t.Fatal("expected oversized body to be rejected")
	}
}
