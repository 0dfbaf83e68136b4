package security

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
)

// blockedIPRanges contains CIDR ranges that scrape targets must never
// fall into: loopback, RFC1918, link-local, multicast, documentation
// and other reserved networks.
var blockedIPRanges = []string{
	"127.0.0.0/8",     // IPv4 loopback
	"0.0.0.0/8",       // "This" network
	"10.0.0.0/8",      // RFC1918 private
	"172.16.0.0/12",   // RFC1918 private
	"192.168.0.0/16",  // RFC1918 private
	"169.254.0.0/16",  // Link-local
	"224.0.0.0/4",     // IPv4 multicast
	"192.0.2.0/24",    // Documentation (TEST-NET-1)
	"198.51.100.0/24", // Documentation (TEST-NET-2)
	"203.0.113.0/24",  // Documentation (TEST-NET-3)
	"::1/128",         // IPv6 loopback
	"fc00::/7",        // IPv6 unique local
	"fe80::/10",       // IPv6 link-local
	"ff00::/8",        // IPv6 multicast
}

// blockedHostnames contains hostnames that should never be fetched
// regardless of what they resolve to.
var blockedHostnames = []string{
	"localhost",
	"localhost.localdomain",
	"ip6-localhost",
	"ip6-loopback",
	"metadata.google.internal", // GCP metadata
	"169.254.169.254",          // AWS/GCP/Azure metadata endpoint
	"kubernetes.default.svc",
	"kubernetes.default",
}

var parsedCIDRs []*net.IPNet

func init() {
	for _, cidr := range blockedIPRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			parsedCIDRs = append(parsedCIDRs, network)
		}
	}
}

// IsBlockedIP checks if an IP address falls in a blocked range.
func IsBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true // unparsable, treat as blocked
	}
	for _, network := range parsedCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsBlockedHostname checks if a hostname is in the blocklist.
// Subdomains of blocked hostnames are blocked too.
func IsBlockedHostname(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))

	for _, blocked := range blockedHostnames {
		if hostname == blocked {
			return true
		}
		if strings.HasSuffix(hostname, "."+blocked) {
			return true
		}
	}
	return false
}

// ValidateURLSafety validates a URL before any network fetch happens.
// It rejects non-HTTP schemes, credentialed URLs and targets in
// private/internal address space. A rejected target is logged as a
// possible SSRF attempt.
func ValidateURLSafety(rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only http and https schemes are allowed, got %q", parsedURL.Scheme)
	}

	// URLs carrying credentials are a common SSRF smuggling vector.
	if parsedURL.User != nil {
		log.Printf("⚠️  [SECURITY] Rejected credentialed URL (possible SSRF attempt): %s", parsedURL.Host)
		return fmt.Errorf("URLs with embedded credentials are not allowed")
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if strings.Contains(hostname, "@") {
		return fmt.Errorf("hostname must not contain '@'")
	}

	if IsBlockedHostname(hostname) {
		log.Printf("⚠️  [SECURITY] Blocked hostname attempted (possible SSRF attempt): %s", hostname)
		return fmt.Errorf("access to internal hostname %q is not allowed", hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if IsBlockedIP(ip) {
			log.Printf("⚠️  [SECURITY] Blocked IP attempted (possible SSRF attempt): %s", hostname)
			return fmt.Errorf("access to private IP address %q is not allowed", hostname)
		}
	}

	return nil
}

// ValidateURLSafetyResolved performs the same checks as ValidateURLSafety
// and additionally resolves the hostname, rejecting names that point at
// private address space. DNS failure is not an error here: the fetch
// itself will fail if the host is unreachable.
func ValidateURLSafetyResolved(rawURL string) error {
	if err := ValidateURLSafety(rawURL); err != nil {
		return err
	}

	parsedURL, _ := url.Parse(rawURL)
	hostname := parsedURL.Hostname()
	if net.ParseIP(hostname) != nil {
		return nil // literal IPs were already checked
	}

	ips, err := net.LookupIP(hostname)
	if err != nil {
		return nil
	}
	for _, resolved := range ips {
		if IsBlockedIP(resolved) {
			log.Printf("⚠️  [SECURITY] Hostname resolves to blocked IP (possible SSRF attempt): %s -> %s", hostname, resolved)
			return fmt.Errorf("hostname %q resolves to private IP address %q", hostname, resolved.String())
		}
	}
	return nil
}

// ValidateScrapingURL validates a URL for scraping and returns it in
// normalized form with the fragment stripped.
func ValidateScrapingURL(rawURL string) (*url.URL, error) {
	if err := ValidateURLSafety(rawURL); err != nil {
		return nil, err
	}

	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL format: %w", err)
	}
	parsedURL.Fragment = ""
	return parsedURL, nil
}
