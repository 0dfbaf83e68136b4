package handlers

import (
	"context"
	"log"
	"time"

	"github.com/gofiber/contrib/websocket"

	"helpdock/internal/models"
	"helpdock/internal/services"
)

// queryTimeout bounds one streamed answer end to end.
const queryTimeout = 90 * time.Second

// WidgetHandler handles the embedded widget's websocket chat channel
type WidgetHandler struct {
	chat *services.ChatService
}

// NewWidgetHandler creates a new widget websocket handler
func NewWidgetHandler(chat *services.ChatService) *WidgetHandler {
	return &WidgetHandler{chat: chat}
}

type widgetInbound struct {
	Type      string `json:"type"` // "query"
	Query     string `json:"query,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

type widgetOutbound struct {
	Type       string   `json:"type"` // greeting | delta | done | error
	Content    string   `json:"content,omitempty"`
	MessageID  string   `json:"message_id,omitempty"`
	Confidence float64  `json:"confidence,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Fallback   bool     `json:"fallback,omitempty"`
}

// Handle serves one widget connection. The assistant is resolved by the
// pre-upgrade middleware and stashed in Locals.
func (h *WidgetHandler) Handle(c *websocket.Conn) {
	assistant, ok := c.Locals("assistant").(*models.Assistant)
	if !ok || assistant == nil {
		c.WriteJSON(widgetOutbound{Type: "error", Content: "unknown widget key"})
		c.Close()
		return
	}

	if assistant.Greeting != "" {
		if err := c.WriteJSON(widgetOutbound{Type: "greeting", Content: assistant.Greeting}); err != nil {
			return
		}
	}

	for {
		var in widgetInbound
		if err := c.ReadJSON(&in); err != nil {
			return // client went away
		}
		if in.Type != "query" || in.Query == "" {
			c.WriteJSON(widgetOutbound{Type: "error", Content: "expected a query message"})
			continue
		}

		h.answer(c, assistant, in.Query)
	}
}

func (h *WidgetHandler) answer(c *websocket.Conn, assistant *models.Assistant, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	answer, err := h.chat.StreamAnswer(ctx, assistant, query, func(delta string) error {
		return c.WriteJSON(widgetOutbound{Type: "delta", Content: delta})
	})
	if err != nil {
		log.Printf("❌ [WIDGET] Streamed answer failed for assistant %s: %v", assistant.ID, err)
		c.WriteJSON(widgetOutbound{Type: "error", Content: "failed to answer, please try again"})
		return
	}

	c.WriteJSON(widgetOutbound{
		Type:       "done",
		MessageID:  answer.MessageID,
		Confidence: answer.Confidence,
		Sources:    answer.Sources,
		Fallback:   answer.Fallback,
	})
}
