package scraper

import (
	"context"
	"log"
	"net/url"
	"strings"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"helpdock/internal/security"
)

// Page is one crawled page. Immutable once recorded; a failed fetch is
// still recorded, with Err set and empty content.
type Page struct {
	URL     string   `json:"url"`
	Title   string   `json:"title,omitempty"`
	Content string   `json:"content"`
	Links   []string `json:"links,omitempty"`
	Err     string   `json:"error,omitempty"`
}

// Website aggregates one crawl invocation. A crawl always produces a
// Website, possibly with zero successful pages and a populated Errors
// list; it never fails wholesale on fetch problems.
type Website struct {
	MainURL    string   `json:"main_url"`
	Pages      []Page   `json:"pages"`
	TotalPages int      `json:"total_pages"`
	Errors     []string `json:"errors,omitempty"`
}

// Options configures a Scraper. Retries counts extra fetch attempts
// after the first, so Retries 3 means up to 4 attempts per page.
type Options struct {
	MaxDepth        int
	MaxPages        int
	Retries         int
	Concurrency     int
	Timeout         time.Duration
	RetryDelay      time.Duration
	BatchDelay      time.Duration
	MaxBodySize     int64
	GlobalRate      float64
	PerTenantRate   float64
	RespectRobots   bool
	EnableRendering bool
	RobotsUserAgent string

	// AllowPrivateHosts skips SSRF validation of the seed URL. Only for
	// local development and tests; never enable in production.
	AllowPrivateHosts bool
}

// DefaultOptions returns the production crawl limits.
func DefaultOptions() Options {
	return Options{
		MaxDepth:        2,
		MaxPages:        10,
		Retries:         3,
		Concurrency:     3,
		Timeout:         45 * time.Second,
		RetryDelay:      2 * time.Second,
		BatchDelay:      500 * time.Millisecond,
		MaxBodySize:     DefaultMaxBodySize,
		GlobalRate:      10,
		PerTenantRate:   5,
		RespectRobots:   true,
		RobotsUserAgent: "HelpdockBot/1.0 (+https://helpdock.example.com/bot)",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxDepth <= 0 {
		o.MaxDepth = d.MaxDepth
	}
	if o.MaxPages <= 0 {
		o.MaxPages = d.MaxPages
	}
	if o.Retries <= 0 {
		o.Retries = d.Retries
	}
	if o.Concurrency <= 0 {
		o.Concurrency = d.Concurrency
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = d.RetryDelay
	}
	if o.BatchDelay < 0 {
		o.BatchDelay = d.BatchDelay
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = d.MaxBodySize
	}
	if o.GlobalRate <= 0 {
		o.GlobalRate = d.GlobalRate
	}
	if o.PerTenantRate <= 0 {
		o.PerTenantRate = d.PerTenantRate
	}
	if o.RobotsUserAgent == "" {
		o.RobotsUserAgent = d.RobotsUserAgent
	}
	return o
}

// Scraper crawls websites within depth and page budgets. All crawl
// state lives in the per-invocation crawl, so a single Scraper is safe
// for concurrent Scrape calls; the client, rate limiter and caches are
// shared across crawls on purpose.
type Scraper struct {
	opts      Options
	client    *Client
	extractor ContentExtractor
	fallback  ContentExtractor
	robots    *RobotsChecker
	limiter   *RateLimiter
	resources *ResourceManager
	renderer  *Renderer
	pageCache *cache.Cache
}

// New creates a Scraper with the given options.
func New(opts Options) *Scraper {
	opts = opts.withDefaults()

	s := &Scraper{
		opts:      opts,
		client:    NewClient(opts.Timeout, opts.Retries, opts.RetryDelay),
		extractor: &TrafilaturaExtractor{},
		fallback:  &RegexExtractor{},
		robots:    NewRobotsChecker(opts.RobotsUserAgent),
		limiter:   NewRateLimiter(opts.GlobalRate, opts.PerTenantRate),
		resources: NewResourceManager(opts.Concurrency, opts.MaxBodySize),
		pageCache: cache.New(1*time.Hour, 10*time.Minute),
	}
	if opts.EnableRendering {
		s.renderer = NewRenderer(opts.Timeout)
	}
	return s
}

// crawlState is the per-invocation mutable crawl state. visited counts
// claims, not completions, which is what bounds the page budget: every
// claimed URL produces exactly one recorded page.
type crawlState struct {
	mu       sync.Mutex
	tenantID string
	baseHost string
	visited  map[string]bool
	result   *Website
}

// Scrape crawls seedURL breadth-first within the configured budgets and
// returns the aggregate result. Fetch-level failures never surface as
// an error: they are recorded in the result.
func (s *Scraper) Scrape(ctx context.Context, tenantID, seedURL string) *Website {
	started := time.Now()
	result := &Website{MainURL: seedURL}

	seed, err := s.validateSeed(seedURL)
	if err != nil {
		result.Errors = append(result.Errors, err.Error())
		return result
	}

	st := &crawlState{
		tenantID: tenantID,
		baseHost: seed.Hostname(),
		visited:  make(map[string]bool),
		result:   result,
	}

	level := []string{seed.String()}
	for depth := 0; depth <= s.opts.MaxDepth && len(level) > 0; depth++ {
		level = s.crawlLevel(ctx, st, level)
	}

	result.TotalPages = len(result.Pages)
	log.Printf("✅ [SCRAPER] Crawl of %s finished: %d pages, %d errors (%.1fs)",
		seedURL, result.TotalPages, len(result.Errors), time.Since(started).Seconds())
	return result
}

func (s *Scraper) validateSeed(seedURL string) (*url.URL, error) {
	if s.opts.AllowPrivateHosts {
		seed, err := url.Parse(seedURL)
		if err != nil {
			return nil, err
		}
		seed.Fragment = ""
		return seed, nil
	}
	return security.ValidateScrapingURL(seedURL)
}

// crawlLevel fetches one BFS depth level in concurrency-limited batches
// with an all-settle join, and returns the same-host links discovered
// at this level. Pages land in result.Pages in batch completion order,
// not discovery order.
func (s *Scraper) crawlLevel(ctx context.Context, st *crawlState, urls []string) []string {
	var next []string
	firstBatch := true

	for start := 0; start < len(urls); start += s.opts.Concurrency {
		end := start + s.opts.Concurrency
		if end > len(urls) {
			end = len(urls)
		}

		// Claim URLs under the budget; already-visited ones are skipped so
		// link cycles cannot loop.
		var batch []string
		st.mu.Lock()
		for _, u := range urls[start:end] {
			if st.visited[u] || len(st.visited) >= s.opts.MaxPages {
				continue
			}
			st.visited[u] = true
			batch = append(batch, u)
		}
		budgetFull := len(st.visited) >= s.opts.MaxPages
		st.mu.Unlock()

		if len(batch) == 0 {
			if budgetFull {
				break
			}
			continue
		}

		// Small pause between batches so we do not hammer the target.
		if !firstBatch && s.opts.BatchDelay > 0 {
			select {
			case <-time.After(s.opts.BatchDelay):
			case <-ctx.Done():
				return next
			}
		}
		firstBatch = false

		var wg sync.WaitGroup
		for _, pageURL := range batch {
			wg.Add(1)
			go func(pageURL string) {
				defer wg.Done()
				page := s.fetchPage(ctx, st.tenantID, pageURL)

				st.mu.Lock()
				st.result.Pages = append(st.result.Pages, *page)
				if page.Err != "" {
					st.result.Errors = append(st.result.Errors, pageURL+": "+page.Err)
				} else {
					for _, link := range page.Links {
						if sameHost(link, st.baseHost) {
							next = append(next, link)
						}
					}
				}
				st.mu.Unlock()
			}(pageURL)
		}
		wg.Wait()

		if budgetFull {
			break
		}
	}

	return next
}

// fetchPage fetches and extracts a single page. All failure modes are
// folded into Page.Err; the caller decides how to aggregate them.
func (s *Scraper) fetchPage(ctx context.Context, tenantID, pageURL string) *Page {
	page := &Page{URL: pageURL}

	if cached, found := s.pageCache.Get(pageURL); found {
		cachedPage := cached.(Page)
		return &cachedPage
	}

	parsed, err := url.Parse(pageURL)
	if err != nil {
		page.Err = "invalid URL: " + err.Error()
		return page
	}

	crawlDelay := time.Duration(0)
	if s.opts.RespectRobots {
		allowed, delay, err := s.robots.CanFetch(ctx, pageURL)
		if err != nil {
			delay = time.Second
		}
		if !allowed {
			page.Err = "blocked by robots.txt"
			return page
		}
		crawlDelay = delay
	}

	if err := s.limiter.Wait(ctx, tenantID, parsed.Host, crawlDelay); err != nil {
		page.Err = "rate limit wait aborted: " + err.Error()
		return page
	}

	if err := s.resources.Acquire(ctx); err != nil {
		page.Err = err.Error()
		return page
	}
	defer s.resources.Release()

	body, contentType, err := s.client.FetchPage(ctx, pageURL, s.opts.MaxBodySize)
	if err != nil {
		page.Err = err.Error()
		return page
	}
	if !supportedContentType(contentType) {
		page.Err = "unsupported content type: " + contentType
		return page
	}

	extracted := s.extract(parsed, body)

	// JS-heavy pages often serve an empty shell to plain HTTP clients;
	// a headless render usually recovers the real content.
	if s.renderer != nil && len(extracted.Content) < 50 {
		if rendered, err := s.renderer.Render(ctx, pageURL); err == nil {
			extracted = s.extract(parsed, rendered)
		}
	}

	page.Title = extracted.Title
	page.Content = extracted.Content
	page.Links = extracted.Links

	s.pageCache.Set(pageURL, *page, cache.DefaultExpiration)
	return page
}

// extract runs the primary extractor and falls back to the regex path
// when it errors or finds nothing. Parsing problems never surface as
// page errors.
func (s *Scraper) extract(pageURL *url.URL, body []byte) *ExtractedPage {
	if s.extractor != nil {
		if extracted, err := s.extractor.Extract(pageURL, body); err == nil && extracted.Content != "" {
			return extracted
		}
	}
	extracted, err := s.fallback.Extract(pageURL, body)
	if err != nil {
		return &ExtractedPage{}
	}
	return extracted
}

func supportedContentType(contentType string) bool {
	contentType = strings.ToLower(contentType)
	for _, ct := range []string{"text/html", "text/plain", "application/xhtml+xml"} {
		if strings.Contains(contentType, ct) {
			return true
		}
	}
	return false
}

func sameHost(rawURL, baseHost string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Hostname(), baseHost)
}
