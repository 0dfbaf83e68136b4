package scraper

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/markusmobius/go-trafilatura"
	"golang.org/x/net/html"
)

// ExtractedPage is the parser-independent result of content extraction.
// Both extractors must produce this same shape.
type ExtractedPage struct {
	Title   string
	Content string
	Links   []string // absolute URLs, deduplicated
}

// ContentExtractor turns raw HTML into title, readable text and
// outbound links.
type ContentExtractor interface {
	Extract(pageURL *url.URL, rawHTML []byte) (*ExtractedPage, error)
}

// TrafilaturaExtractor is the primary extractor, built on a real HTML
// parser and trafilatura's readability heuristics.
type TrafilaturaExtractor struct{}

func (e *TrafilaturaExtractor) Extract(pageURL *url.URL, rawHTML []byte) (*ExtractedPage, error) {
	result, err := trafilatura.Extract(bytes.NewReader(rawHTML), trafilatura.Options{
		OriginalURL: pageURL,
	})
	if err != nil {
		return nil, fmt.Errorf("trafilatura extraction failed: %w", err)
	}
	if result == nil {
		return nil, fmt.Errorf("no content extracted")
	}

	page := &ExtractedPage{
		Title:   strings.TrimSpace(result.Metadata.Title),
		Content: normalizeWhitespace(result.ContentText),
	}

	links, err := extractLinks(pageURL, rawHTML)
	if err == nil {
		page.Links = links
	}
	if page.Title == "" {
		page.Title = extractTitleTag(rawHTML)
	}
	return page, nil
}

// extractLinks walks the parsed DOM collecting a[href] targets resolved
// against the page URL. Unparsable URLs are dropped silently.
func extractLinks(pageURL *url.URL, rawHTML []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var links []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if resolved, ok := resolveLink(pageURL, attr.Val); ok && !seen[resolved] {
					seen[resolved] = true
					links = append(links, resolved)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return links, nil
}

// resolveLink resolves href against the page URL and filters out
// non-HTTP targets and fragments-only links.
func resolveLink(pageURL *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "javascript:") {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	resolved := pageURL.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return "", false
	}
	resolved.Fragment = ""
	return resolved.String(), true
}

func extractTitleTag(rawHTML []byte) string {
	m := titleRe.FindSubmatch(rawHTML)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(decodeEntities(string(m[1])))
}

// RegexExtractor is the fallback path for malformed HTML the parser
// chokes on. It strips boilerplate blocks, prefers the page's main
// content region when one is marked up, and decodes a small set of
// HTML entities.
type RegexExtractor struct{}

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

	boilerplateTags = []string{"script", "style", "nav", "header", "footer", "aside", "noscript"}
	boilerplateRes  = func() []*regexp.Regexp {
		res := make([]*regexp.Regexp, len(boilerplateTags))
		for i, tag := range boilerplateTags {
			res[i] = regexp.MustCompile(`(?is)<` + tag + `\b[^>]*>.*?</` + tag + `\s*>`)
		}
		return res
	}()

	mainBlockRes = []*regexp.Regexp{
		regexp.MustCompile(`(?is)<main\b[^>]*>(.*?)</main>`),
		regexp.MustCompile(`(?is)<article\b[^>]*>(.*?)</article>`),
		regexp.MustCompile(`(?is)<[^>]+role=["']main["'][^>]*>(.*?)</[a-z]+>`),
		regexp.MustCompile(`(?is)<div\b[^>]*(?:class|id)=["'][^"']*(?:content|main)[^"']*["'][^>]*>(.*?)</div>`),
	}
	bodyRe = regexp.MustCompile(`(?is)<body\b[^>]*>(.*)</body>`)
	tagRe  = regexp.MustCompile(`(?s)<[^>]+>`)
	hrefRe = regexp.MustCompile(`(?is)<a\s+[^>]*href=["']([^"'#][^"']*)["']`)
)

func (e *RegexExtractor) Extract(pageURL *url.URL, rawHTML []byte) (*ExtractedPage, error) {
	page := &ExtractedPage{Title: extractTitleTag(rawHTML)}

	// Links come from the full document, before any block is stripped.
	seen := make(map[string]bool)
	for _, m := range hrefRe.FindAllSubmatch(rawHTML, -1) {
		if resolved, ok := resolveLink(pageURL, string(m[1])); ok && !seen[resolved] {
			seen[resolved] = true
			page.Links = append(page.Links, resolved)
		}
	}

	cleaned := rawHTML
	for _, re := range boilerplateRes {
		cleaned = re.ReplaceAll(cleaned, nil)
	}

	// Prefer an explicit content region; fall back to <body>, then the
	// whole document.
	content := cleaned
	for _, re := range mainBlockRes {
		if m := re.FindSubmatch(cleaned); m != nil {
			content = m[1]
			break
		}
	}
	if bytes.Equal(content, cleaned) {
		if m := bodyRe.FindSubmatch(cleaned); m != nil {
			content = m[1]
		}
	}

	text := tagRe.ReplaceAllString(string(content), " ")
	page.Content = normalizeWhitespace(decodeEntities(text))
	return page, nil
}

var entityReplacer = strings.NewReplacer(
	"&amp;", "&",
	"&lt;", "<",
	"&gt;", ">",
	"&quot;", `"`,
	"&#39;", "'",
	"&apos;", "'",
	"&nbsp;", " ",
)

func decodeEntities(s string) string {
	return entityReplacer.Replace(s)
}

// normalizeWhitespace collapses whitespace runs and removes blank
// lines.
func normalizeWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	var kept []string
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
