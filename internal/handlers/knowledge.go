package handlers

import (
	"database/sql"
	"errors"
	"io"
	"log"

	"github.com/gofiber/fiber/v2"

	"helpdock/internal/database"
	"helpdock/internal/models"
	"helpdock/internal/security"
	"helpdock/internal/services"
)

// maxUploadSize caps uploaded knowledge files at 20MB.
const maxUploadSize = 20 << 20

// KnowledgeHandler handles knowledge source sync and upload requests
type KnowledgeHandler struct {
	db        *database.DB
	knowledge *services.KnowledgeService
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(db *database.DB, knowledge *services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{db: db, knowledge: knowledge}
}

type syncRequest struct {
	WidgetKey string `json:"widget_key"`
	Name      string `json:"name"`
	URL       string `json:"url"`
	SourceID  string `json:"source_id,omitempty"` // re-sync an existing source
}

// Sync registers (or reuses) a website source and crawls it.
func (h *KnowledgeHandler) Sync(c *fiber.Ctx) error {
	var req syncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	assistant, err := h.lookupAssistant(c, req.WidgetKey)
	if err != nil || assistant == nil {
		return err
	}

	sourceID := req.SourceID
	if sourceID == "" {
		if req.URL == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "url is required"})
		}
		// Reject unsafe URLs before anything is registered.
		if _, err := security.ValidateScrapingURL(req.URL); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}

		src := &models.KnowledgeSource{
			AssistantID: assistant.ID,
			Type:        models.SourceTypeWebsite,
			Name:        req.Name,
			URL:         req.URL,
		}
		if src.Name == "" {
			src.Name = req.URL
		}
		if err := h.db.CreateKnowledgeSource(c.Context(), src); err != nil {
			log.Printf("❌ [KNOWLEDGE] Failed to register source: %v", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register source"})
		}
		sourceID = src.ID
	}

	run, err := h.knowledge.SyncWebsite(c.Context(), assistant.ID, sourceID)
	if err != nil {
		resp := fiber.Map{"error": err.Error(), "source_id": sourceID}
		if run != nil {
			resp["run"] = run
		}
		return c.Status(fiber.StatusUnprocessableEntity).JSON(resp)
	}

	return c.JSON(fiber.Map{"source_id": sourceID, "run": run})
}

// Upload ingests a document file as a knowledge source.
func (h *KnowledgeHandler) Upload(c *fiber.Ctx) error {
	widgetKey := c.FormValue("widget_key")
	assistant, err := h.lookupAssistant(c, widgetKey)
	if err != nil || assistant == nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "file is required"})
	}
	if fileHeader.Size > maxUploadSize {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "file too large (max 20MB)"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read file"})
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "could not read file"})
	}

	src := &models.KnowledgeSource{
		AssistantID: assistant.ID,
		Type:        models.SourceTypeDocument,
		Name:        fileHeader.Filename,
	}
	if err := h.db.CreateKnowledgeSource(c.Context(), src); err != nil {
		log.Printf("❌ [KNOWLEDGE] Failed to register document source: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to register source"})
	}

	count, err := h.knowledge.IngestDocument(c.Context(), assistant.ID, src.ID, fileHeader.Filename, data)
	if err != nil {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error(), "source_id": src.ID})
	}

	return c.JSON(fiber.Map{"source_id": src.ID, "chunks": count})
}

// lookupAssistant resolves a widget key and writes the error response
// itself; a nil assistant with a nil error means the response is done.
func (h *KnowledgeHandler) lookupAssistant(c *fiber.Ctx, widgetKey string) (*models.Assistant, error) {
	if widgetKey == "" {
		return nil, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "widget_key is required"})
	}
	assistant, err := h.db.AssistantByWidgetKey(c.Context(), widgetKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "unknown widget key"})
		}
		log.Printf("❌ [KNOWLEDGE] Assistant lookup failed: %v", err)
		return nil, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "lookup failed"})
	}
	return assistant, nil
}
