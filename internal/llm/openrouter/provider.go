package openrouter

import (
	"time"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/llm/openai"
)

const (
	defaultBaseURL = "https://openrouter.ai/api/v1"
	defaultModel   = "openai/gpt-3.5-turbo"

	referer = "https://github.com/Rrens/appstruct"
	title   = "AppStruct"
)

// NewProvider creates an OpenRouter provider. OpenRouter attributes traffic
// through the HTTP-Referer and X-Title headers.
func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) llm.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openai.New(openai.Options{
		Name:    "openrouter",
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Headers: map[string]string{
			"HTTP-Referer": referer,
			"X-Title":      title,
		},
		Timeout: timeout,
	})
}
