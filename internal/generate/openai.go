// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"
	"net/http"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

// OpenAIBackend calls the OpenAI chat completions API through the
// official SDK.
type OpenAIBackend struct {
	model string
	opts  []option.RequestOption
}

// NewOpenAIBackend builds a backend for the given API key and config.
// Retry and HTTP settings map onto the SDK's request options.
func NewOpenAIBackend(apiKey string, cfg types.AIConfig, httpCfg types.HTTPConfig) *OpenAIBackend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.MaxRetries > 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}
	if httpCfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: httpCfg.Timeout}))
	}
	if httpCfg.UserAgent != "" {
		opts = append(opts, option.WithHeader("User-Agent", httpCfg.UserAgent))
	}
	return &OpenAIBackend{model: cfg.Model, opts: opts}
}

// Complete sends the conversation as a chat completion and returns the
// reply text.
func (o *OpenAIBackend) Complete(ctx context.Context, req Request) (string, error) {
	client := openai.NewClient(o.opts...)

	msgs := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(req.System),
	}
	for _, m := range req.Messages {
		switch m.Role {
		case "assistant":
			msgs = append(msgs, openai.ChatCompletionMessageParamOfAssistant(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	resp, err := client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(o.model),
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("calling OpenAI API: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("OpenAI API returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
