// Package llmclient adapts an OpenAI-compatible
// chat completions endpoint: one-shot Chat for query expansion and a
// streaming ChatStream for response generation.
package llmclient

import (
	"context"
	"fmt"
	"net/http"

	sdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"ragserver/internal/config"
	"ragserver/internal/logging"
	"ragserver/internal/model"
	"ragserver/internal/ports"
)

type Client struct {
	sdk   sdk.Client
	model string
}

var _ ports.LLM = (*Client)(nil)

func New(cfg config.LLMConfig, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	opts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Client{sdk: sdk.NewClient(opts...), model: cfg.Model}
}

func adaptMessages(msgs []ports.ChatMessage) []sdk.ChatCompletionMessageParamUnion {
	out := make([]sdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem:
			out = append(out, sdk.SystemMessage(m.Content))
		case model.RoleAssistant:
			out = append(out, sdk.AssistantMessage(m.Content))
		default:
			out = append(out, sdk.UserMessage(m.Content))
		}
	}
	return out
}

// Chat performs a single, non-streaming completion. Used for query
// expansion, where the caller needs the full text before proceeding.
func (c *Client) Chat(ctx context.Context, messages []ports.ChatMessage) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: adaptMessages(messages),
	}
	comp, err := c.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(comp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty choices")
	}
	return comp.Choices[0].Message.Content, nil
}

// ChatStream performs a streaming completion, emitting one StreamDelta per
// content fragment and a final delta with Done=true (or Err set).
func (c *Client) ChatStream(ctx context.Context, messages []ports.ChatMessage) (<-chan ports.StreamDelta, error) {
	params := sdk.ChatCompletionNewParams{
		Model:    sdk.ChatModel(c.model),
		Messages: adaptMessages(messages),
	}
	stream := c.sdk.Chat.Completions.NewStreaming(ctx, params)

	out := make(chan ports.StreamDelta)
	go func() {
		defer close(out)
		defer func() { _ = stream.Close() }()
		for stream.Next() {
			chunk := stream.Current()
			if len(chunk.Choices) == 0 {
				continue
			}
			if content := chunk.Choices[0].Delta.Content; content != "" {
				select {
				case out <- ports.StreamDelta{Text: content}:
				case <-ctx.Done():
					return
				}
			}
		}
		if err := stream.Err(); err != nil {
			logging.Log.WithError(err).Warn("llm stream ended with error")
			select {
			case out <- ports.StreamDelta{Err: err, Done: true}:
			case <-ctx.Done():
			}
			return
		}
		select {
		case out <- ports.StreamDelta{Done: true}:
		case <-ctx.Done():
		}
	}()
	return out, nil
}
