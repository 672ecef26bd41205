// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Draft is one version of the generated LaTeX document. Drafts are
// immutable: every revision round produces a new Draft value with the
// next index. Per prd008-graphical-abstract R3.1.
type Draft struct {
	// Index is the revision index, starting at 0 for the initial draft.
	Index int `json:"index" yaml:"index"`

	// Source is the standalone TikZ LaTeX source.
	Source string `json:"source" yaml:"source"`
}

// CompileResult is the outcome of one compiler invocation on one draft.
type CompileResult struct {
	// Passed reports whether compilation produced the output PDF.
	Passed bool `json:"passed" yaml:"passed"`

	// Log is the captured compiler diagnostic output, plus lint output
	// when available.
	Log string `json:"log" yaml:"log"`

	// ArtifactPath is the path of the produced PDF. Empty on failure.
	ArtifactPath string `json:"artifact_path,omitempty" yaml:"artifact_path,omitempty"`
}

// Revision records one round of the refinement loop: the draft that was
// attempted, the structural-check failure if the draft never reached the
// compiler, and the compile result if it did. A revision has at most one
// CompileResult; the loop never compiles the same draft version twice.
type Revision struct {
	// Index mirrors Draft.Index for convenience in the run ledger.
	Index int `json:"index" yaml:"index"`

	// Draft is the document version attempted in this round.
	Draft Draft `json:"draft" yaml:"draft"`

	// CheckFailure holds the structural-check error text when the check
	// failed. When set, Compile is nil.
	CheckFailure string `json:"check_failure,omitempty" yaml:"check_failure,omitempty"`

	// Compile is the compiler outcome for this draft, when the
	// structural check passed.
	Compile *CompileResult `json:"compile,omitempty" yaml:"compile,omitempty"`
}

// Diagnostics returns the feedback text carried into the next generation
// round: the structural-check failure, or the compile log.
func (r Revision) Diagnostics() string {
	if r.CheckFailure != "" {
		return r.CheckFailure
	}
	if r.Compile != nil {
		return r.Compile.Log
	}
	return ""
}
