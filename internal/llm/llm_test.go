package llm

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/duckling-go/internal/config"
)

func TestNewClient(t *testing.T) {
	c, err := NewClient(config.LLMConfig{APIKey: "k", BaseURL: "http://localhost:1234/v1"})
	require.NoError(t, err)
	require.NotNil(t, c)

	c, err = NewClient(config.LLMConfig{Provider: "Azure", APIKey: "k", BaseURL: "https://example.openai.azure.com", APIVersion: "2024-06-01"})
	require.NoError(t, err)
	require.NotNil(t, c)

	_, err = NewClient(config.LLMConfig{Provider: "azure", APIKey: "k"})
	require.Error(t, err)

	_, err = NewClient(config.LLMConfig{Provider: "llamas"})
	require.ErrorContains(t, err, "unsupported llm provider")
}
