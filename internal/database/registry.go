package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"helpdock/internal/models"
)

// AssistantByWidgetKey looks up an active assistant by its public widget
// key. Returns sql.ErrNoRows when no active assistant matches.
func (db *DB) AssistantByWidgetKey(ctx context.Context, widgetKey string) (*models.Assistant, error) {
	var a models.Assistant
	var greeting, fallback, chatModel sql.NullString

	err := db.QueryRowContext(ctx, `
		SELECT id, tenant_id, name, widget_key, greeting, fallback, chat_model, is_active, created_at, updated_at
		FROM assistants
		WHERE widget_key = ? AND is_active = TRUE
	`, widgetKey).Scan(&a.ID, &a.TenantID, &a.Name, &a.WidgetKey,
		&greeting, &fallback, &chatModel, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}

	a.Greeting = greeting.String
	a.Fallback = fallback.String
	a.ChatModel = chatModel.String
	return &a, nil
}

// CreateKnowledgeSource registers a new knowledge source in pending state.
func (db *DB) CreateKnowledgeSource(ctx context.Context, src *models.KnowledgeSource) error {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	src.Status = models.SyncStatusPending
	src.CreatedAt = time.Now()

	_, err := db.ExecContext(ctx, `
		INSERT INTO knowledge_sources (id, assistant_id, type, name, url, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, src.ID, src.AssistantID, src.Type, src.Name, src.URL, src.Status, src.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create knowledge source: %w", err)
	}
	return nil
}

// KnowledgeSource fetches a single source by id.
func (db *DB) KnowledgeSource(ctx context.Context, id string) (*models.KnowledgeSource, error) {
	var src models.KnowledgeSource
	var url, lastError sql.NullString
	var lastSynced sql.NullTime

	err := db.QueryRowContext(ctx, `
		SELECT id, assistant_id, type, name, url, status, last_error, last_synced_at, created_at
		FROM knowledge_sources WHERE id = ?
	`, id).Scan(&src.ID, &src.AssistantID, &src.Type, &src.Name,
		&url, &src.Status, &lastError, &lastSynced, &src.CreatedAt)
	if err != nil {
		return nil, err
	}

	src.URL = url.String
	src.LastError = lastError.String
	if lastSynced.Valid {
		t := lastSynced.Time
		src.LastSyncedAt = &t
	}
	return &src, nil
}

// WebsiteSources returns all website-type sources, used by the
// scheduled re-crawl job.
func (db *DB) WebsiteSources(ctx context.Context) ([]models.KnowledgeSource, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, assistant_id, type, name, url, status, created_at
		FROM knowledge_sources
		WHERE type = ? AND status != ?
	`, models.SourceTypeWebsite, models.SyncStatusRunning)
	if err != nil {
		return nil, fmt.Errorf("failed to list website sources: %w", err)
	}
	defer rows.Close()

	var sources []models.KnowledgeSource
	for rows.Next() {
		var src models.KnowledgeSource
		var url sql.NullString
		if err := rows.Scan(&src.ID, &src.AssistantID, &src.Type, &src.Name, &url, &src.Status, &src.CreatedAt); err != nil {
			return nil, err
		}
		src.URL = url.String
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// UpdateSourceStatus transitions a source's sync status. A non-empty
// lastError is stored alongside; a synced transition stamps last_synced_at.
func (db *DB) UpdateSourceStatus(ctx context.Context, sourceID, status, lastError string) error {
	var err error
	if status == models.SyncStatusSynced {
		_, err = db.ExecContext(ctx, `
			UPDATE knowledge_sources SET status = ?, last_error = ?, last_synced_at = NOW() WHERE id = ?
		`, status, lastError, sourceID)
	} else {
		_, err = db.ExecContext(ctx, `
			UPDATE knowledge_sources SET status = ?, last_error = ? WHERE id = ?
		`, status, lastError, sourceID)
	}
	if err != nil {
		return fmt.Errorf("failed to update source status: %w", err)
	}
	return nil
}

// RecordCrawlRun persists one crawl invocation for bookkeeping.
func (db *DB) RecordCrawlRun(ctx context.Context, run *models.CrawlRun) error {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO crawl_runs (id, source_id, seed_url, pages_total, pages_error, chunk_count, errors, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.SourceID, run.SeedURL, run.PagesTotal, run.PagesError,
		run.ChunkCount, strings.Join(run.Errors, "\n"), run.StartedAt, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to record crawl run: %w", err)
	}
	return nil
}
