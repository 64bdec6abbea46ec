// Package llm builds the chat completion client used by the agent.
package llm

import (
	"context"

	"github.com/sashabaranov/go-openai"
)

// Client is the one call the agent makes against an OpenAI compatible API.
type Client interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

var _ Client = (*openai.Client)(nil)
