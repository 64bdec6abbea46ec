package llm

import (
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/comigor/duckling-go/internal/config"
)

// NewClient creates a chat completion client for the configured provider.
// Supported providers are "openai" (also any OpenAI compatible endpoint) and "azure".
func NewClient(cfg config.LLMConfig) (*openai.Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "openai":
		c := openai.DefaultConfig(cfg.APIKey)
		if cfg.BaseURL != "" {
			c.BaseURL = cfg.BaseURL
		}
		return openai.NewClientWithConfig(c), nil
	case "azure":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm.base_url is required for the azure provider")
		}
		c := openai.DefaultAzureConfig(cfg.APIKey, cfg.BaseURL)
		if cfg.APIVersion != "" {
			c.APIVersion = cfg.APIVersion
		}
		return openai.NewClientWithConfig(c), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}
