package scraper

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// sortedLinks copies links into deterministic order for comparison.
func sortedLinks(links []string) []string {
	out := make([]string, len(links))
	copy(out, links)
	sort.Strings(out)
	return out
}

// testOptions returns options tuned for fast tests: no robots fetch,
// generous rates, tiny delays.
func testOptions() Options {
	return Options{
		MaxDepth:      2,
		MaxPages:      10,
		Retries:       3,
		Concurrency:   3,
		Timeout:       5 * time.Second,
		RetryDelay:    10 * time.Millisecond,
		BatchDelay:    1 * time.Millisecond,
		GlobalRate:    1000,
		PerTenantRate: 1000,
		RespectRobots: false,

		AllowPrivateHosts: true,
	}
}

func pageHTML(title, body string, links ...string) string {
	var sb strings.Builder
	sb.WriteString("<html><head><title>" + title + "</title></head><body><main><p>" + body + "</p>")
	for _, l := range links {
		sb.WriteString(fmt.Sprintf(`<a href="%s">link</a>`, l))
	}
	sb.WriteString("</main></body></html>")
	return sb.String()
}

func TestScrape_ThreePageSite(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, pageHTML("Home", "Welcome to the home page with enough words.", "/about", "/contact"))
		case "/about":
			fmt.Fprint(w, pageHTML("About", "All about this perfectly ordinary company.", "/"))
		case "/contact":
			fmt.Fprint(w, pageHTML("Contact", "Reach us at the usual address downtown.", "/"))
		default:
			http.NotFound(w, r)
		}
	})

	s := New(testOptions())
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/")

	if len(result.Errors) != 0 {
		t.Fatalf("expected no errors, got %v", result.Errors)
	}
	if result.TotalPages != 3 {
		t.Fatalf("expected 3 pages, got %d", result.TotalPages)
	}

	byURL := make(map[string]Page)
	for _, p := range result.Pages {
		byURL[p.URL] = p
	}
	home, ok := byURL[srv.URL+"/"]
	if !ok {
		t.Fatalf("home page missing from results: %v", result.Pages)
	}
	wantLinks := sortedLinks([]string{srv.URL + "/about", srv.URL + "/contact"})
	gotLinks := sortedLinks(home.Links)
	if len(gotLinks) != len(wantLinks) {
		t.Fatalf("home links = %v, want %v", gotLinks, wantLinks)
	}
	for i := range wantLinks {
		if gotLinks[i] != wantLinks[i] {
			t.Errorf("home link %d = %q, want %q", i, gotLinks[i], wantLinks[i])
		}
	}
	if home.Title != "Home" {
		t.Errorf("home title = %q", home.Title)
	}
	if !strings.Contains(home.Content, "Welcome") {
		t.Errorf("home content missing text: %q", home.Content)
	}
}

func TestScrape_CycleSafe(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var fetches int64
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt64(&fetches, 1)
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, pageHTML("A", "Page A links to page B in a cycle.", "/b"))
		case "/b":
			fmt.Fprint(w, pageHTML("B", "Page B links straight back to page A.", "/"))
		default:
			http.NotFound(w, r)
		}
	})

	opts := testOptions()
	opts.MaxDepth = 5
	s := New(opts)
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/")

	if result.TotalPages != 2 {
		t.Fatalf("cycle should yield 2 pages, got %d", result.TotalPages)
	}
	seen := make(map[string]bool)
	for _, p := range result.Pages {
		if seen[p.URL] {
			t.Errorf("URL %s crawled twice", p.URL)
		}
		seen[p.URL] = true
	}
	if atomic.LoadInt64(&fetches) != 2 {
		t.Errorf("expected exactly 2 fetches, got %d", fetches)
	}
}

func TestScrape_MaxPagesBound(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// Every page links to 10 more pages.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var links []string
		for i := 0; i < 10; i++ {
			links = append(links, fmt.Sprintf("%s-%d", r.URL.Path, i))
		}
		fmt.Fprint(w, pageHTML("N", "A page in an effectively infinite site structure.", links...))
	})

	opts := testOptions()
	opts.MaxPages = 5
	opts.MaxDepth = 4
	s := New(opts)
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/")

	if result.TotalPages > 5 {
		t.Errorf("page budget exceeded: %d pages", result.TotalPages)
	}
}

func TestScrape_MaxDepthBound(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	// A linear chain /0 -> /1 -> /2 -> ...
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		var n int
		fmt.Sscanf(r.URL.Path, "/%d", &n)
		fmt.Fprint(w, pageHTML("Chain", "A page deep inside a linear chain of links.", fmt.Sprintf("/%d", n+1)))
	})

	opts := testOptions()
	opts.MaxDepth = 2
	s := New(opts)
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/0")

	// Depth 0, 1, 2 -> exactly 3 pages of the chain.
	if result.TotalPages != 3 {
		t.Errorf("expected 3 pages within depth 2, got %d", result.TotalPages)
	}
}

func TestScrape_CrossDomainNotFollowed(t *testing.T) {
	other := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("cross-domain link must not be fetched")
	}))
	defer other.Close()

	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, pageHTML("Home", "This page links to an entirely different host.", other.URL+"/external"))
	})

	s := New(testOptions())
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/")

	if result.TotalPages != 1 {
		t.Fatalf("expected 1 page, got %d", result.TotalPages)
	}
	// The cross-domain link is still reported on the page itself.
	if len(result.Pages[0].Links) != 1 || result.Pages[0].Links[0] != other.URL+"/external" {
		t.Errorf("expected external link recorded but not followed, got %v", result.Pages[0].Links)
	}
}

func TestScrape_PageErrorDoesNotAbortCrawl(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, pageHTML("Home", "Home page linking to one good and one broken page.", "/good", "/broken"))
		case "/good":
			fmt.Fprint(w, pageHTML("Good", "The good page has perfectly fine content."))
		default:
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	})

	s := New(testOptions())
	result := s.Scrape(context.Background(), "tenant-1", srv.URL+"/")

	if result.TotalPages != 3 {
		t.Fatalf("expected 3 recorded pages (one errored), got %d", result.TotalPages)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 crawl error, got %v", result.Errors)
	}
	var errored *Page
	for i := range result.Pages {
		if result.Pages[i].Err != "" {
			errored = &result.Pages[i]
		}
	}
	if errored == nil {
		t.Fatal("expected one page with an error recorded")
	}
	if errored.Content != "" {
		t.Error("errored page should have empty content")
	}
}

func TestScrape_InvalidSeedReturnsResult(t *testing.T) {
	opts := testOptions()
	opts.AllowPrivateHosts = false
	s := New(opts)

	result := s.Scrape(context.Background(), "tenant-1", "http://127.0.0.1:1/private")
	if result == nil {
		t.Fatal("crawl must always return a result")
	}
	if len(result.Errors) == 0 {
		t.Error("expected a seed validation error")
	}
	if result.TotalPages != 0 {
		t.Errorf("expected no pages, got %d", result.TotalPages)
	}
}
