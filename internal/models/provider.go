package models

// ProviderConfig describes one AI provider endpoint from providers.json.
type ProviderConfig struct {
	Name            string   `json:"name"`
	BaseURL         string   `json:"base_url"`
	APIKeyEnv       string   `json:"api_key_env"` // env var holding the key, never the key itself
	ChatModel       string   `json:"chat_model,omitempty"`
	EmbeddingModels []string `json:"embedding_models,omitempty"`
	Default         bool     `json:"default,omitempty"`
}

// ProvidersConfig is the parsed providers.json file.
type ProvidersConfig struct {
	Providers []ProviderConfig `json:"providers"`
}

// DefaultProvider returns the provider marked default, or the first one.
func (pc *ProvidersConfig) DefaultProvider() *ProviderConfig {
	for i := range pc.Providers {
		if pc.Providers[i].Default {
			return &pc.Providers[i]
		}
	}
	if len(pc.Providers) > 0 {
		return &pc.Providers[0]
	}
	return nil
}
