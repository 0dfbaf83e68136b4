package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"helpdock/internal/feedback"
	"helpdock/internal/services"
)

// FeedbackHandler records visitor feedback on widget answers
type FeedbackHandler struct {
	learner *feedback.Learner
	metrics *services.Metrics
}

// NewFeedbackHandler creates a new feedback handler
func NewFeedbackHandler(learner *feedback.Learner, metrics *services.Metrics) *FeedbackHandler {
	return &FeedbackHandler{learner: learner, metrics: metrics}
}

type feedbackRequest struct {
	MessageID  string   `json:"message_id"`
	SessionID  string   `json:"session_id"`
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Sources    []string `json:"sources,omitempty"`
	Type       string   `json:"type"` // positive | negative
	Score      *int     `json:"score,omitempty"`
	Comment    string   `json:"comment,omitempty"`
}

// Submit records one feedback entry.
func (h *FeedbackHandler) Submit(c *fiber.Ctx) error {
	var req feedbackRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	req.Type = strings.ToLower(req.Type)
	if req.Type != feedback.TypePositive && req.Type != feedback.TypeNegative {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "type must be positive or negative"})
	}
	if req.MessageID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message_id is required"})
	}
	if req.Score != nil && (*req.Score < 1 || *req.Score > 5) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "score must be between 1 and 5"})
	}

	h.learner.Record(c.Context(), feedback.Entry{
		MessageID:  req.MessageID,
		SessionID:  req.SessionID,
		Query:      req.Query,
		Answer:     req.Answer,
		Confidence: req.Confidence,
		Sources:    req.Sources,
		Type:       req.Type,
		Score:      req.Score,
		Comment:    req.Comment,
	})
	if h.metrics != nil {
		h.metrics.FeedbackTotal.WithLabelValues(req.Type).Inc()
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"recorded": true})
}

// Stats exposes the aggregate feedback statistics and the currently
// recommended confidence threshold.
func (h *FeedbackHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"statistics": h.learner.Statistics(),
		"threshold":  h.learner.RecommendedConfidenceThreshold(),
		"insights":   h.learner.AnalyzeAndLearn(),
	})
}
