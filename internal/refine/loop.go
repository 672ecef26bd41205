// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package refine drives the bounded generate-reflect-compile loop that
// turns a model-authored LaTeX draft into a compiled artifact.
// Implements: prd008-graphical-abstract (R3);
//
//	docs/ARCHITECTURE § Refinement Loop.
package refine

import (
	"context"
	"fmt"
	"io"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

// Generator produces draft documents. The initial call receives a nil
// previous draft; reflection calls receive the previous draft and the
// diagnostics from its failed check or compilation. An error return is
// fatal to the loop: a malformed draft is expected and drives another
// round, but an unreachable generation backend is not retried.
//
// A Generator instance may keep conversation state across calls within
// one run; it must not be shared between concurrent runs.
type Generator interface {
	Generate(ctx context.Context, project *types.Project, prev *types.Draft, diagnostics string) (types.Draft, error)
}

// Compiler turns a draft into a PDF artifact. A failed compilation of a
// well-formed request is reported through CompileResult.Passed, not
// through the error return; an error return means the tooling itself is
// broken (missing binary, unusable working directory) and aborts the
// loop. Compile must be a function of the draft source alone: compiling
// the same draft twice yields the same outcome.
type Compiler interface {
	Compile(ctx context.Context, draft types.Draft) (types.CompileResult, error)
}

// Checker is the cheap structural validation applied to a draft before
// the compiler is invoked. A non-nil error is fed back to the Generator
// exactly like a compile failure, without spending a compiler run.
type Checker func(source string) error

// Reason explains why the loop terminated.
type Reason string

const (
	// ReasonCompiled: a draft compiled successfully.
	ReasonCompiled Reason = "compiled"

	// ReasonBudgetExhausted: every draft within the revision budget
	// failed its check or compilation. Normal termination, not a fault.
	ReasonBudgetExhausted Reason = "budget-exhausted"

	// ReasonGenerationFailed: the generation capability itself errored.
	ReasonGenerationFailed Reason = "generation-failed"

	// ReasonCompilerFailed: the compiler tooling itself errored.
	ReasonCompilerFailed Reason = "compiler-failed"
)

// Outcome is the final verdict of one loop invocation.
type Outcome struct {
	// Accepted reports whether a compiled artifact was produced.
	Accepted bool

	// Reason explains the termination.
	Reason Reason

	// Revisions is the full per-round history, indices 0..n with no
	// gaps. Always non-empty unless the very first generation failed.
	Revisions []types.Revision
}

// Final returns the last attempted revision, or nil when no draft was
// ever produced.
func (o Outcome) Final() *types.Revision {
	if len(o.Revisions) == 0 {
		return nil
	}
	return &o.Revisions[len(o.Revisions)-1]
}

// Run executes the refinement loop over the injected capabilities.
//
// The revision budget is the number of regeneration attempts allowed
// after the initial draft, so the loop performs at most budget+1
// generation calls and at most budget+1 compile attempts. The loop is
// strictly sequential: each round's prompt depends on the previous
// round's diagnostics. Progress lines are written to w.
//
// Capability errors are returned alongside an Outcome with
// Accepted=false so callers can distinguish "the model never produced a
// compiling document" (nil error, Accepted=false) from "the tooling is
// broken" (non-nil error).
func Run(ctx context.Context, gen Generator, comp Compiler, check Checker, project *types.Project, budget int, w io.Writer) (Outcome, error) {
	if budget < 0 {
		budget = 0
	}

	draft, err := gen.Generate(ctx, project, nil, "")
	if err != nil {
		return Outcome{Reason: ReasonGenerationFailed}, fmt.Errorf("generating initial draft: %w", err)
	}
	draft.Index = 0

	var out Outcome
	for i := 0; ; i++ {
		rev := types.Revision{Index: i, Draft: draft}

		if cerr := check(draft.Source); cerr != nil {
			fmt.Fprintf(w, "revision %d: structural check failed: %v\n", i, cerr)
			rev.CheckFailure = fmt.Sprintf("structural check failed (compiler not invoked): %v", cerr)
		} else {
			res, err := comp.Compile(ctx, draft)
			if err != nil {
				out.Revisions = append(out.Revisions, rev)
				out.Reason = ReasonCompilerFailed
				return out, fmt.Errorf("compiling revision %d: %w", i, err)
			}
			rev.Compile = &res
			if res.Passed {
				fmt.Fprintf(w, "revision %d: compiled %s\n", i, res.ArtifactPath)
				out.Revisions = append(out.Revisions, rev)
				out.Accepted = true
				out.Reason = ReasonCompiled
				return out, nil
			}
			fmt.Fprintf(w, "revision %d: compilation failed\n", i)
		}

		out.Revisions = append(out.Revisions, rev)

		if i == budget {
			out.Reason = ReasonBudgetExhausted
			fmt.Fprintf(w, "revision budget exhausted after %d rounds\n", i+1)
			return out, nil
		}

		next, err := gen.Generate(ctx, project, &draft, rev.Diagnostics())
		if err != nil {
			out.Reason = ReasonGenerationFailed
			return out, fmt.Errorf("generating revision %d: %w", i+1, err)
		}
		next.Index = i + 1
		draft = next
	}
}
