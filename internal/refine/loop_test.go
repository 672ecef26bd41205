// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package refine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

// scriptGen returns one canned source per call and counts invocations.
type scriptGen struct {
	sources []string
	err     error
	errAt   int // call number (1-based) at which err is returned; 0 = never
	calls   int

	// capture of the feedback passed on each reflection call
	diagnostics []string
}

func (g *scriptGen) Generate(ctx context.Context, project *types.Project, prev *types.Draft, diagnostics string) (types.Draft, error) {
	g.calls++
	if prev != nil {
		g.diagnostics = append(g.diagnostics, diagnostics)
	}
	if g.errAt != 0 && g.calls >= g.errAt {
		return types.Draft{}, g.err
	}
	idx := g.calls - 1
	if idx >= len(g.sources) {
		idx = len(g.sources) - 1
	}
	return types.Draft{Source: g.sources[idx]}, nil
}

// scriptComp passes or fails per call and counts invocations.
type scriptComp struct {
	passes []bool
	err    error
	calls  int
	seen   []string // sources in compile order
}

func (c *scriptComp) Compile(ctx context.Context, draft types.Draft) (types.CompileResult, error) {
	c.calls++
	c.seen = append(c.seen, draft.Source)
	if c.err != nil {
		return types.CompileResult{}, c.err
	}
	idx := c.calls - 1
	if idx >= len(c.passes) {
		idx = len(c.passes) - 1
	}
	if c.passes[idx] {
		return types.CompileResult{Passed: true, ArtifactPath: fmt.Sprintf("out-%d.pdf", draft.Index)}, nil
	}
	return types.CompileResult{Log: fmt.Sprintf("! LaTeX Error in revision %d", draft.Index)}, nil
}

// passAll is a Checker that accepts everything.
func passAll(string) error { return nil }

// failAll is a Checker that rejects everything.
func failAll(string) error { return errors.New("unbalanced braces") }

func run(t *testing.T, gen Generator, comp Compiler, check Checker, budget int) (Outcome, error) {
	t.Helper()
	var log bytes.Buffer
	return Run(context.Background(), gen, comp, check, &types.Project{Slug: "demo"}, budget, &log)
}

func TestRunFirstDraftCompiles(t *testing.T) {
	// Success on the first round ends the loop regardless of budget.
	for _, budget := range []int{0, 1, 5} {
		t.Run(fmt.Sprintf("budget=%d", budget), func(t *testing.T) {
			gen := &scriptGen{sources: []string{"v0"}}
			comp := &scriptComp{passes: []bool{true}}

			out, err := run(t, gen, comp, passAll, budget)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !out.Accepted {
				t.Error("expected accepted outcome")
			}
			if out.Reason != ReasonCompiled {
				t.Errorf("reason = %q, want %q", out.Reason, ReasonCompiled)
			}
			if gen.calls != 1 {
				t.Errorf("generate calls = %d, want 1", gen.calls)
			}
			if comp.calls != 1 {
				t.Errorf("compile calls = %d, want 1", comp.calls)
			}
		})
	}
}

func TestRunCallBudget(t *testing.T) {
	// At most budget+1 generate calls and budget+1 compile attempts.
	tests := []struct {
		budget int
	}{
		{0}, {1}, {2}, {4},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("budget=%d", tt.budget), func(t *testing.T) {
			gen := &scriptGen{sources: []string{"always-failing"}}
			comp := &scriptComp{passes: []bool{false}}

			out, err := run(t, gen, comp, passAll, tt.budget)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if out.Accepted {
				t.Error("expected rejected outcome")
			}
			if out.Reason != ReasonBudgetExhausted {
				t.Errorf("reason = %q, want %q", out.Reason, ReasonBudgetExhausted)
			}
			if want := tt.budget + 1; gen.calls != want {
				t.Errorf("generate calls = %d, want %d", gen.calls, want)
			}
			if want := tt.budget + 1; comp.calls != want {
				t.Errorf("compile calls = %d, want %d", comp.calls, want)
			}
		})
	}
}

func TestRunStructuralFailureSkipsCompiler(t *testing.T) {
	// When every draft fails the structural check the compiler is never
	// invoked and the loop ends with the budget exhausted.
	gen := &scriptGen{sources: []string{"broken"}}
	comp := &scriptComp{passes: []bool{true}}

	out, err := run(t, gen, comp, failAll, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Accepted {
		t.Error("expected rejected outcome")
	}
	if out.Reason != ReasonBudgetExhausted {
		t.Errorf("reason = %q, want %q", out.Reason, ReasonBudgetExhausted)
	}
	if comp.calls != 0 {
		t.Errorf("compile calls = %d, want 0", comp.calls)
	}
	if gen.calls != 3 {
		t.Errorf("generate calls = %d, want 3", gen.calls)
	}
	for _, rev := range out.Revisions {
		if rev.Compile != nil {
			t.Errorf("revision %d has a compile result despite failing the check", rev.Index)
		}
		if rev.CheckFailure == "" {
			t.Errorf("revision %d missing check failure text", rev.Index)
		}
	}
}

func TestRunRevisionIndices(t *testing.T) {
	// Indices are strictly increasing from 0 with no gaps.
	gen := &scriptGen{sources: []string{"a", "b", "c", "d"}}
	comp := &scriptComp{passes: []bool{false}}

	out, err := run(t, gen, comp, passAll, 3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Revisions) != 4 {
		t.Fatalf("len(Revisions) = %d, want 4", len(out.Revisions))
	}
	for i, rev := range out.Revisions {
		if rev.Index != i {
			t.Errorf("revision[%d].Index = %d, want %d", i, rev.Index, i)
		}
		if rev.Draft.Index != i {
			t.Errorf("revision[%d].Draft.Index = %d, want %d", i, rev.Draft.Index, i)
		}
	}
}

func TestRunGenerationFailureAborts(t *testing.T) {
	tests := []struct {
		name      string
		errAt     int // generate call that fails (1-based)
		wantCalls int
	}{
		{name: "initial call fails", errAt: 1, wantCalls: 1},
		{name: "second call fails", errAt: 2, wantCalls: 2},
		{name: "third call fails", errAt: 3, wantCalls: 3},
	}
	backendDown := errors.New("backend unreachable")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &scriptGen{sources: []string{"x"}, err: backendDown, errAt: tt.errAt}
			comp := &scriptComp{passes: []bool{false}}

			out, err := run(t, gen, comp, passAll, 5)
			if !errors.Is(err, backendDown) {
				t.Fatalf("error = %v, want wrapped %v", err, backendDown)
			}
			if out.Accepted {
				t.Error("expected rejected outcome")
			}
			if out.Reason != ReasonGenerationFailed {
				t.Errorf("reason = %q, want %q", out.Reason, ReasonGenerationFailed)
			}
			if gen.calls != tt.wantCalls {
				t.Errorf("generate calls = %d, want %d", gen.calls, tt.wantCalls)
			}
		})
	}
}

func TestRunCompilerFailureAborts(t *testing.T) {
	// An infrastructure error from the compiler is fatal and is not
	// treated as a content problem.
	toolBroken := errors.New("pdflatex not found")
	gen := &scriptGen{sources: []string{"x"}}
	comp := &scriptComp{err: toolBroken}

	out, err := run(t, gen, comp, passAll, 5)
	if !errors.Is(err, toolBroken) {
		t.Fatalf("error = %v, want wrapped %v", err, toolBroken)
	}
	if out.Reason != ReasonCompilerFailed {
		t.Errorf("reason = %q, want %q", out.Reason, ReasonCompilerFailed)
	}
	if gen.calls != 1 {
		t.Errorf("generate calls = %d, want 1 (no retry after tooling failure)", gen.calls)
	}
	if comp.calls != 1 {
		t.Errorf("compile calls = %d, want 1", comp.calls)
	}
}

func TestRunMixedScenario(t *testing.T) {
	// v0 fails the structural check, v1 compiles with errors, v2
	// compiles successfully: accepted at index 2, compile called twice.
	checkFailsOnce := func(source string) error {
		if source == "v0" {
			return errors.New("missing \\documentclass")
		}
		return nil
	}
	gen := &scriptGen{sources: []string{"v0", "v1", "v2"}}
	comp := &scriptComp{passes: []bool{false, true}}

	out, err := run(t, gen, comp, checkFailsOnce, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !out.Accepted {
		t.Fatal("expected accepted outcome")
	}
	final := out.Final()
	if final == nil || final.Index != 2 {
		t.Fatalf("final revision = %+v, want index 2", final)
	}
	if gen.calls != 3 {
		t.Errorf("generate calls = %d, want 3", gen.calls)
	}
	if comp.calls != 2 {
		t.Errorf("compile calls = %d, want 2", comp.calls)
	}
	if len(comp.seen) != 2 || comp.seen[0] != "v1" || comp.seen[1] != "v2" {
		t.Errorf("compiled sources = %v, want [v1 v2]", comp.seen)
	}
}

func TestRunFeedbackPropagation(t *testing.T) {
	// The check failure text reaches the first reflection; the compile
	// log reaches the second.
	checkFailsOnce := func(source string) error {
		if source == "v0" {
			return errors.New("unmatched \\begin{tikzpicture}")
		}
		return nil
	}
	gen := &scriptGen{sources: []string{"v0", "v1", "v2"}}
	comp := &scriptComp{passes: []bool{false, true}}

	if _, err := run(t, gen, comp, checkFailsOnce, 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(gen.diagnostics) != 2 {
		t.Fatalf("reflection calls = %d, want 2", len(gen.diagnostics))
	}
	if !strings.Contains(gen.diagnostics[0], "unmatched \\begin{tikzpicture}") {
		t.Errorf("first feedback %q should carry the check failure", gen.diagnostics[0])
	}
	if !strings.Contains(gen.diagnostics[0], "compiler not invoked") {
		t.Errorf("first feedback %q should note the compiler was skipped", gen.diagnostics[0])
	}
	if !strings.Contains(gen.diagnostics[1], "LaTeX Error in revision 1") {
		t.Errorf("second feedback %q should carry the compile log", gen.diagnostics[1])
	}
}

func TestRunNegativeBudgetClamped(t *testing.T) {
	gen := &scriptGen{sources: []string{"x"}}
	comp := &scriptComp{passes: []bool{false}}

	out, err := run(t, gen, comp, passAll, -3)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.calls != 1 || comp.calls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", gen.calls, comp.calls)
	}
	if out.Reason != ReasonBudgetExhausted {
		t.Errorf("reason = %q, want %q", out.Reason, ReasonBudgetExhausted)
	}
}

func TestOutcomeFinalEmpty(t *testing.T) {
	var out Outcome
	if out.Final() != nil {
		t.Error("Final() on empty outcome should be nil")
	}
}
