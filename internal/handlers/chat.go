package handlers

import (
	"database/sql"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"helpdock/internal/database"
	"helpdock/internal/models"
	"helpdock/internal/services"
)

// ChatHandler handles widget chat queries over plain HTTP
type ChatHandler struct {
	db   *database.DB
	chat *services.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(db *database.DB, chat *services.ChatService) *ChatHandler {
	return &ChatHandler{db: db, chat: chat}
}

type chatRequest struct {
	WidgetKey string `json:"widget_key"`
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query"`
}

// Query answers one widget question synchronously.
func (h *ChatHandler) Query(c *fiber.Ctx) error {
	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "query is required"})
	}

	assistant, err := h.resolveAssistant(c, req.WidgetKey)
	if err != nil || assistant == nil {
		return err
	}

	answer, err := h.chat.Answer(c.Context(), assistant, req.Query)
	if err != nil {
		log.Printf("❌ [CHAT] Query failed for assistant %s: %v", assistant.ID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to answer query"})
	}

	return c.JSON(answer)
}

func (h *ChatHandler) resolveAssistant(c *fiber.Ctx, widgetKey string) (*models.Assistant, error) {
	if widgetKey == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "widget_key is required"})
	}
	assistant, err := h.db.AssistantByWidgetKey(c.Context(), widgetKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown widget key"})
		}
		log.Printf("❌ [CHAT] Assistant lookup failed: %v", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return assistant, nil
}
