package models

import "time"

// Assistant represents a tenant-owned chat assistant that can be
// embedded on third-party websites through the widget bundle.
type Assistant struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Name      string    `json:"name"`
	WidgetKey string    `json:"widget_key"` // public key used by the embed script
	Greeting  string    `json:"greeting,omitempty"`
	Fallback  string    `json:"fallback,omitempty"` // reply when retrieval confidence is too low
	ChatModel string    `json:"chat_model,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
