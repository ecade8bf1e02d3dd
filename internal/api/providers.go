package api

import (
	"github.com/Rrens/appstruct/internal/config"
	"github.com/Rrens/appstruct/internal/llm"
	"github.com/Rrens/appstruct/internal/llm/anthropic"
	"github.com/Rrens/appstruct/internal/llm/deepseek"
	"github.com/Rrens/appstruct/internal/llm/gemini"
	"github.com/Rrens/appstruct/internal/llm/ollama"
	"github.com/Rrens/appstruct/internal/llm/openai"
	"github.com/Rrens/appstruct/internal/llm/openrouter"
	"github.com/rs/zerolog/log"
)

// NewLLMRouter registers every provider that has credentials, each wrapped
// with the configured retry policy. Gemini and Ollama are built on first use.
func NewLLMRouter(cfg config.LLMConfig) *llm.Router {
	router := llm.NewRouter(cfg.DefaultProvider)
	timeout := cfg.RequestTimeout

	register := func(p llm.Provider) {
		log.Info().Str("provider", p.Name()).Str("model", p.DefaultModel()).Msg("Registering LLM provider")
		router.RegisterProvider(llm.WithRetry(p, cfg.MaxRetries, cfg.RetryBase))
	}

	log.Info().Msgf("Initializing LLM providers. Default: %s", cfg.DefaultProvider)

	if cfg.OpenRouter.APIKey != "" {
		register(openrouter.NewProvider(cfg.OpenRouter, timeout))
	}
	if cfg.DeepSeek.APIKey != "" {
		register(deepseek.NewProvider(cfg.DeepSeek, timeout))
	}
	if cfg.OpenAI.APIKey != "" {
		register(openai.New(openai.Options{
			Name:    "openai",
			APIKey:  cfg.OpenAI.APIKey,
			Model:   cfg.OpenAI.Model,
			BaseURL: cfg.OpenAI.BaseURL,
			Timeout: timeout,
		}))
	}
	if cfg.Anthropic.APIKey != "" {
		register(anthropic.NewProvider(cfg.Anthropic, timeout))
	}
	lazy := func(name string, build func() llm.Provider) {
		router.RegisterFactory(name, func() llm.Provider {
			p := build()
			log.Info().Str("provider", p.Name()).Str("model", p.DefaultModel()).Msg("Building LLM provider")
			return llm.WithRetry(p, cfg.MaxRetries, cfg.RetryBase)
		})
	}

	if cfg.Gemini.APIKey != "" {
		lazy("gemini", func() llm.Provider { return gemini.NewProvider(cfg.Gemini, timeout) })
	}
	if cfg.Ollama.Host != "" {
		lazy("ollama", func() llm.Provider { return ollama.NewProvider(cfg.Ollama, timeout) })
	}

	return router
}
