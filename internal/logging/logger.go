package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Init configures the global slog logger.
// In production (ENVIRONMENT=production) it uses JSON output for log aggregation.
// Otherwise it uses the human-readable text handler.
func Init() {
	env := strings.ToLower(os.Getenv("ENVIRONMENT"))

	var handler slog.Handler
	if env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	}

	slog.SetDefault(slog.New(handler))
}

// WithAssistant returns a logger with assistant context fields attached.
// Use this for all logging within a single assistant's request flow.
func WithAssistant(assistantID, tenantID string) *slog.Logger {
	return slog.With(
		"assistant_id", assistantID,
		"tenant_id", tenantID,
	)
}

// WithCrawl returns a logger scoped to one crawl run of a knowledge source.
func WithCrawl(logger *slog.Logger, runID, sourceID, seedURL string) *slog.Logger {
	return logger.With(
		"run_id", runID,
		"source_id", sourceID,
		"seed_url", seedURL,
	)
}
