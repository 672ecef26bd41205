// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

// mockBackend replays canned replies and records the requests it saw.
type mockBackend struct {
	replies []string
	err     error
	calls   int
	seen    []Request
}

func (m *mockBackend) Complete(ctx context.Context, req Request) (string, error) {
	m.calls++
	m.seen = append(m.seen, req)
	if m.err != nil {
		return "", m.err
	}
	idx := m.calls - 1
	if idx >= len(m.replies) {
		idx = len(m.replies) - 1
	}
	return m.replies[idx], nil
}

func fenced(code string) string {
	return "Here you go:\n```latex\n" + code + "\n```\n"
}

func testProject() *types.Project {
	return &types.Project{
		Folder:         "/tmp/demo",
		Slug:           "demo",
		IdeaText:       "# Sparse Attention\n\nFaster transformers.",
		Summaries:      `{"BASELINE_SUMMARY": {"acc": 85.2}}`,
		AggregatorCode: "import matplotlib",
		PlotNames:      []string{"loss.png", "acc.png"},
		Writeup:        `\documentclass{article}`,
	}
}

func TestGenerateInitialDraft(t *testing.T) {
	backend := &mockBackend{replies: []string{fenced(`\documentclass{standalone}`)}}
	gen := NewTikZGenerator(backend)

	draft, err := gen.Generate(context.Background(), testProject(), nil, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if draft.Source != `\documentclass{standalone}` {
		t.Errorf("source = %q", draft.Source)
	}

	req := backend.seen[0]
	if req.System == "" {
		t.Error("system message missing")
	}
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(req.Messages))
	}
	prompt := req.Messages[0].Content
	for _, want := range []string{
		"Sparse Attention",
		"BASELINE_SUMMARY",
		"import matplotlib",
		"loss.png, acc.png",
		`\documentclass{article}`,
		"No descriptions available.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("initial prompt missing %q", want)
		}
	}
}

func TestGenerateReflectionCarriesHistory(t *testing.T) {
	backend := &mockBackend{replies: []string{
		fenced("v0-source"),
		fenced("v1-source"),
	}}
	gen := NewTikZGenerator(backend)
	ctx := context.Background()

	d0, err := gen.Generate(ctx, testProject(), nil, "")
	if err != nil {
		t.Fatal(err)
	}

	d1, err := gen.Generate(ctx, testProject(), &d0, "! Undefined control sequence")
	if err != nil {
		t.Fatal(err)
	}
	if d1.Source != "v1-source" {
		t.Errorf("source = %q, want v1-source", d1.Source)
	}

	// The reflection request carries the whole conversation: initial
	// user turn, assistant reply, then the reflection turn.
	req := backend.seen[1]
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(req.Messages))
	}
	if req.Messages[1].Role != "assistant" {
		t.Errorf("messages[1].Role = %q, want assistant", req.Messages[1].Role)
	}
	last := req.Messages[2].Content
	if !strings.Contains(last, "! Undefined control sequence") {
		t.Error("reflection prompt missing diagnostics")
	}
	if !strings.Contains(last, "v0-source") {
		t.Error("reflection prompt missing previous source")
	}
}

func TestGenerateInitialWithoutCodeFails(t *testing.T) {
	backend := &mockBackend{replies: []string{"I cannot help with that."}}
	gen := NewTikZGenerator(backend)

	_, err := gen.Generate(context.Background(), testProject(), nil, "")
	if err == nil {
		t.Fatal("expected error for codeless initial reply")
	}
	if !strings.Contains(err.Error(), "no LaTeX code block") {
		t.Errorf("error = %v", err)
	}
}

func TestGenerateReflectionKeepsPreviousSource(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{name: "model says done", reply: "I am done"},
		{name: "codeless reply", reply: "Looks good to me."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &mockBackend{replies: []string{fenced("v0"), tt.reply}}
			gen := NewTikZGenerator(backend)
			ctx := context.Background()

			d0, err := gen.Generate(ctx, testProject(), nil, "")
			if err != nil {
				t.Fatal(err)
			}
			d1, err := gen.Generate(ctx, testProject(), &d0, "some log")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d1.Source != d0.Source {
				t.Errorf("source = %q, want previous %q", d1.Source, d0.Source)
			}
		})
	}
}

func TestGenerateBackendErrorPropagates(t *testing.T) {
	backendDown := errors.New("connection refused")
	backend := &mockBackend{err: backendDown}
	gen := NewTikZGenerator(backend)

	_, err := gen.Generate(context.Background(), testProject(), nil, "")
	if !errors.Is(err, backendDown) {
		t.Errorf("error = %v, want wrapped %v", err, backendDown)
	}
}

func TestBackendFor(t *testing.T) {
	keys := map[string]string{
		"anthropic-api-key": "sk-ant-1",
		"openai-api-key":    "sk-oa-1",
	}

	tests := []struct {
		model    string
		keys     map[string]string
		wantType string
		wantErr  bool
	}{
		{model: "claude-sonnet-4-5-20250929", keys: keys, wantType: "claude"},
		{model: "gpt-4o-2024-05-13", keys: keys, wantType: "openai"},
		{model: "o1-2024-12-17", keys: keys, wantType: "openai"},
		{model: "o3-mini", keys: keys, wantType: "openai"},
		{model: "claude-opus-4", keys: map[string]string{}, wantErr: true},
		{model: "gpt-4o", keys: map[string]string{}, wantErr: true},
		{model: "llama-3", keys: keys, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			b, err := BackendFor(types.AIConfig{Model: tt.model}, types.HTTPConfig{}, tt.keys)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			switch tt.wantType {
			case "claude":
				if _, ok := b.(*ClaudeBackend); !ok {
					t.Errorf("backend type = %T, want *ClaudeBackend", b)
				}
			case "openai":
				if _, ok := b.(*OpenAIBackend); !ok {
					t.Errorf("backend type = %T, want *OpenAIBackend", b)
				}
			}
		})
	}
}

func TestBackendForThreadsConfig(t *testing.T) {
	cfg := types.AIConfig{
		Model:      "claude-sonnet-4-5-20250929",
		APIKey:     "sk-ant-inline",
		MaxRetries: 7,
	}
	httpCfg := types.HTTPConfig{
		Timeout:   42 * time.Second,
		UserAgent: "abstract-engine/0.1",
	}

	// An explicit config key needs no secrets at all.
	b, err := BackendFor(cfg, httpCfg, map[string]string{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	claude, ok := b.(*ClaudeBackend)
	if !ok {
		t.Fatalf("backend type = %T, want *ClaudeBackend", b)
	}
	if claude.APIKey != "sk-ant-inline" {
		t.Errorf("APIKey = %q, want config value over secrets", claude.APIKey)
	}
	if claude.MaxRetries != 7 {
		t.Errorf("MaxRetries = %d, want 7", claude.MaxRetries)
	}
	if claude.UserAgent != "abstract-engine/0.1" {
		t.Errorf("UserAgent = %q", claude.UserAgent)
	}
	if claude.Client == nil || claude.Client.Timeout != 42*time.Second {
		t.Errorf("Client = %+v, want timeout from HTTP config", claude.Client)
	}

	// A zero HTTP timeout falls back to the default client.
	b, err = BackendFor(cfg, types.HTTPConfig{}, map[string]string{})
	if err != nil {
		t.Fatal(err)
	}
	if b.(*ClaudeBackend).Client != nil {
		t.Error("zero timeout should leave Client nil")
	}
}
