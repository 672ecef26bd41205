// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package generate produces TikZ graphical abstract drafts through a
// Generative AI backend.
// Implements: prd008-graphical-abstract (R2);
//
//	docs/ARCHITECTURE § Generation.
package generate

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pdiddy/abstract-engine/internal/secrets"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

// Message is one turn of the generation conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is a single chat completion: a system message plus the
// conversation so far, ending with the newest user turn.
type Request struct {
	System    string
	Messages  []Message
	MaxTokens int
}

// Backend abstracts the Generative AI API so tests can supply a mock.
// Per Strategy pattern; each implementation handles one provider.
type Backend interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// BackendFor selects a backend from the model identifier prefix:
// gpt-*/o1*/o3*/o4* models go to OpenAI, claude* models to Anthropic.
// An explicit cfg.APIKey wins over the secrets map loaded at startup.
func BackendFor(cfg types.AIConfig, httpCfg types.HTTPConfig, apiKeys map[string]string) (Backend, error) {
	switch {
	case strings.HasPrefix(cfg.Model, "claude"):
		key := cfg.APIKey
		if key == "" {
			key = apiKeys[secrets.KeyAnthropic]
		}
		if key == "" {
			return nil, fmt.Errorf("model %s requires %s in .secrets/", cfg.Model, secrets.KeyAnthropic)
		}
		return &ClaudeBackend{
			APIKey:     key,
			Model:      cfg.Model,
			MaxRetries: cfg.MaxRetries,
			UserAgent:  httpCfg.UserAgent,
			Client:     httpClient(httpCfg),
		}, nil
	case strings.HasPrefix(cfg.Model, "gpt-"),
		strings.HasPrefix(cfg.Model, "o1"),
		strings.HasPrefix(cfg.Model, "o3"),
		strings.HasPrefix(cfg.Model, "o4"):
		key := cfg.APIKey
		if key == "" {
			key = apiKeys[secrets.KeyOpenAI]
		}
		if key == "" {
			return nil, fmt.Errorf("model %s requires %s in .secrets/", cfg.Model, secrets.KeyOpenAI)
		}
		return NewOpenAIBackend(key, cfg, httpCfg), nil
	default:
		return nil, fmt.Errorf("unsupported model %q", cfg.Model)
	}
}

// httpClient builds an HTTP client from config. A zero timeout means
// the default client.
func httpClient(cfg types.HTTPConfig) *http.Client {
	if cfg.Timeout <= 0 {
		return nil
	}
	return &http.Client{Timeout: cfg.Timeout}
}
