package deepseek

import (
	"time"

	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/llm/openai"
)

const (
	defaultBaseURL = "https://api.deepseek.com/v1"
	defaultModel   = "deepseek-chat"
)

// NewProvider creates a DeepSeek provider. DeepSeek speaks the OpenAI
// chat-completions format.
func NewProvider(cfg config.OpenAIConfig, timeout time.Duration) llm.Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	return openai.New(openai.Options{
		Name:    "deepseek",
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		BaseURL: cfg.BaseURL,
		Timeout: timeout,
	})
}
