// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package describe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/pdiddy/abstract-engine/internal/httputil"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

// visionAPIURL is a variable so tests can point the backend at a local
// server.
var visionAPIURL = "https://api.anthropic.com/v1/messages"

const (
	visionAPIVersion = "2023-06-01"
	visionMaxTokens  = 1024
)

const visionPrompt = "Describe this scientific figure in two or three sentences. " +
	"Focus on what is plotted, the axes, and the main trend a reader should take away."

// ClaudeVision describes figures with Claude's image-understanding
// models over the Anthropic messages API.
type ClaudeVision struct {
	APIKey     string
	Model      string
	MaxRetries int
	UserAgent  string

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// NewClaudeVision builds a describer from the describe and HTTP config.
func NewClaudeVision(cfg types.DescribeConfig, httpCfg types.HTTPConfig) *ClaudeVision {
	v := &ClaudeVision{
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		MaxRetries: cfg.MaxRetries,
		UserAgent:  httpCfg.UserAgent,
	}
	if httpCfg.Timeout > 0 {
		v.Client = &http.Client{Timeout: httpCfg.Timeout}
	}
	return v
}

type visionImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type visionBlock struct {
	Type   string             `json:"type"`
	Text   string             `json:"text,omitempty"`
	Source *visionImageSource `json:"source,omitempty"`
}

type visionMessage struct {
	Role    string        `json:"role"`
	Content []visionBlock `json:"content"`
}

type visionRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	Messages  []visionMessage `json:"messages"`
}

type visionResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Describe sends the PNG at imagePath to the model inline as base64
// and returns the text of its reply.
func (c *ClaudeVision) Describe(ctx context.Context, imagePath string) (string, error) {
	raw, err := os.ReadFile(imagePath)
	if err != nil {
		return "", fmt.Errorf("reading figure: %w", err)
	}

	body := visionRequest{
		Model:     c.Model,
		MaxTokens: visionMaxTokens,
		Messages: []visionMessage{{
			Role: "user",
			Content: []visionBlock{
				{
					Type: "image",
					Source: &visionImageSource{
						Type:      "base64",
						MediaType: "image/png",
						Data:      base64.StdEncoding.EncodeToString(raw),
					},
				},
				{Type: "text", Text: visionPrompt},
			},
		}},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encoding vision request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, visionAPIURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("building vision request: %w", err)
	}
	req.Header.Set("content-type", "application/json")
	req.Header.Set("x-api-key", c.APIKey)
	req.Header.Set("anthropic-version", visionAPIVersion)
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := httputil.DoWithRetry(ctx, client, req, c.MaxRetries)
	if err != nil {
		return "", fmt.Errorf("calling vision API: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading vision response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("vision API status %d: %s", resp.StatusCode, data)
	}

	var parsed visionResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("decoding vision response: %w", err)
	}
	for _, block := range parsed.Content {
		if block.Type == "text" && block.Text != "" {
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("vision response has no text content")
}
