// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"context"
	"fmt"

	"github.com/pdiddy/abstract-engine/internal/tex"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

// TikZGenerator turns project context and compile diagnostics into
// successive TikZ drafts. It keeps the reflection conversation history
// for the duration of one run, so one instance serves exactly one run
// and must not be shared.
type TikZGenerator struct {
	backend Backend
	history []Message
}

// NewTikZGenerator builds a generator over the given backend.
func NewTikZGenerator(backend Backend) *TikZGenerator {
	return &TikZGenerator{backend: backend}
}

// Generate produces the next draft. With no previous draft it renders
// the full-context initial prompt; otherwise it renders a reflection
// prompt carrying the previous source and its diagnostics.
//
// A first reply without a fenced LaTeX block is a generation failure.
// On reflection turns a reply of "I am done", or one without a fenced
// block, keeps the previous source unchanged — the model declined to
// revise, which is its call to make.
func (g *TikZGenerator) Generate(ctx context.Context, project *types.Project, prev *types.Draft, diagnostics string) (types.Draft, error) {
	var prompt string
	var err error
	if prev == nil {
		g.history = nil
		prompt, err = renderInitialPrompt(project)
	} else {
		prompt, err = renderReflectionPrompt(prev.Source, diagnostics)
	}
	if err != nil {
		return types.Draft{}, err
	}

	messages := append(append([]Message{}, g.history...), Message{Role: "user", Content: prompt})

	reply, err := g.backend.Complete(ctx, Request{
		System:   systemMessage,
		Messages: messages,
	})
	if err != nil {
		return types.Draft{}, err
	}

	g.history = append(messages, Message{Role: "assistant", Content: reply})

	source, ok := tex.ExtractFenced(reply)
	if !ok {
		if prev == nil {
			return types.Draft{}, fmt.Errorf("no LaTeX code block in model response")
		}
		// "I am done" or a codeless reply keeps the previous source.
		return types.Draft{Source: prev.Source}, nil
	}

	return types.Draft{Source: source}, nil
}
