package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP)
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Widget chat limits (per widget key, shared by all visitors of one site)
	WidgetMax        int
	WidgetExpiration time.Duration

	// Knowledge sync limits (per widget key) - crawling is expensive
	SyncMax        int
	SyncExpiration time.Duration

	// WebSocket connection limits (per IP)
	WebSocketMax        int
	WebSocketExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		// Global: 200/min = ~3.3 req/sec - generous for normal use
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		// Widget chat: 60/min per embedded site
		WidgetMax:        60,
		WidgetExpiration: 1 * time.Minute,

		// Sync: 5/hour per site, a crawl touches up to MaxPages pages
		SyncMax:        5,
		SyncExpiration: 1 * time.Hour,

		// WebSocket: 20 connections/min per IP
		WebSocketMax:        20,
		WebSocketExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	if v := os.Getenv("RATE_LIMIT_GLOBAL_API"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.GlobalAPIMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WIDGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WidgetMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_SYNC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.SyncMax = n
		}
	}
	if v := os.Getenv("RATE_LIMIT_WEBSOCKET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.WebSocketMax = n
		}
	}

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.WidgetMax = 600
		config.WebSocketMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

// widgetKeyOf pulls the widget key from body, query or path so one
// limiter covers every widget-facing surface.
func widgetKeyOf(c *fiber.Ctx) string {
	if key := c.Params("key"); key != "" {
		return key
	}
	if key := c.Query("widget_key"); key != "" {
		return key
	}
	var body struct {
		WidgetKey string `json:"widget_key"`
	}
	if err := c.BodyParser(&body); err == nil && body.WidgetKey != "" {
		return body.WidgetKey
	}
	return c.IP()
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.GlobalAPIMax,
		Expiration: config.GlobalAPIExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "global:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] Global limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many requests. Please slow down.",
				"retry_after": int(config.GlobalAPIExpiration.Seconds()),
			})
		},
	})
}

// WidgetRateLimiter limits chat queries per widget key
func WidgetRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.WidgetMax,
		Expiration: config.WidgetExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "widget:" + widgetKeyOf(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Widget limit reached for key: %s", widgetKeyOf(c))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many questions right now. Please wait a moment.",
				"retry_after": int(config.WidgetExpiration.Seconds()),
			})
		},
	})
}

// SyncRateLimiter limits crawl-triggering endpoints per widget key
func SyncRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.SyncMax,
		Expiration: config.SyncExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "sync:" + widgetKeyOf(c)
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("⚠️  [RATE-LIMIT] Sync limit reached for key: %s", widgetKeyOf(c))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Sync limit reached. Crawls are limited per hour.",
				"retry_after": int(config.SyncExpiration.Seconds()),
			})
		},
	})
}

// WebSocketRateLimiter limits websocket connection attempts per IP
func WebSocketRateLimiter(config *RateLimitConfig) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.WebSocketMax,
		Expiration: config.WebSocketExpiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return "ws:" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] WebSocket connection limit reached for IP: %s", c.IP())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       "Too many connection attempts. Please wait before reconnecting.",
				"retry_after": int(config.WebSocketExpiration.Seconds()),
			})
		},
	})
}
