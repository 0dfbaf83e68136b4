package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cache "github.com/patrickmn/go-cache"
	"github.com/temoto/robotstxt"
)

// RobotsChecker fetches, caches and evaluates robots.txt for crawl
// targets. Missing or broken robots.txt allows crawling by default.
type RobotsChecker struct {
	cache     *cache.Cache
	userAgent string
	client    *http.Client
}

// NewRobotsChecker creates a robots.txt checker. Parsed robots data is
// cached per domain for 24 hours.
func NewRobotsChecker(userAgent string) *RobotsChecker {
	return &RobotsChecker{
		cache:     cache.New(24*time.Hour, 1*time.Hour),
		userAgent: userAgent,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// CanFetch reports whether urlStr may be crawled and the crawl delay to
// honor between requests to its domain.
func (rc *RobotsChecker) CanFetch(ctx context.Context, urlStr string) (bool, time.Duration, error) {
	parsedURL, err := url.Parse(urlStr)
	if err != nil {
		return false, 0, fmt.Errorf("invalid URL: %w", err)
	}

	domain := parsedURL.Scheme + "://" + parsedURL.Host

	if cached, found := rc.cache.Get(domain); found {
		robotsData := cached.(*robotstxt.RobotsData)
		group := robotsData.FindGroup(rc.userAgent)
		return group.Test(parsedURL.Path), rc.crawlDelay(group), nil
	}

	robotsData, err := rc.fetch(ctx, domain)
	if err != nil || robotsData == nil {
		// Unreachable or unparsable robots.txt: allow with a default delay.
		return true, time.Second, nil
	}

	rc.cache.Set(domain, robotsData, cache.DefaultExpiration)

	group := robotsData.FindGroup(rc.userAgent)
	return group.Test(parsedURL.Path), rc.crawlDelay(group), nil
}

func (rc *RobotsChecker) fetch(ctx context.Context, domain string) (*robotstxt.RobotsData, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", domain+"/robots.txt", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", rc.userAgent)

	resp, err := rc.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1*1024*1024))
	if err != nil {
		return nil, err
	}
	return robotstxt.FromBytes(body)
}

func (rc *RobotsChecker) crawlDelay(group *robotstxt.Group) time.Duration {
	if group.CrawlDelay > 0 {
		delay := group.CrawlDelay
		if delay > 10*time.Second {
			delay = 10 * time.Second
		}
		return delay
	}
	return time.Second
}
