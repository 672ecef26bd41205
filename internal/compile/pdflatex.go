// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package compile turns TikZ LaTeX drafts into PDF artifacts by
// shelling out to pdflatex.
// Implements: prd008-graphical-abstract (R4);
//
//	docs/ARCHITECTURE § Compilation.
package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

const (
	binPdflatex = "pdflatex"
	binChktex   = "chktex"

	texFile = "graphical_abstract.tex"
	pdfFile = "graphical_abstract.pdf"

	// maxLogBytes bounds the diagnostic text fed back into the next
	// generation round.
	maxLogBytes = 4096

	defaultTimeout = 30 * time.Second
)

// ErrNotFound reports that the pdflatex binary is not on PATH. This is
// an infrastructure failure, distinct from a draft that fails to
// compile, and is never retried as a content problem.
var ErrNotFound = errors.New("pdflatex not found on PATH")

// chktexArgs quiets chktex and suppresses warnings that are noise for
// generated TikZ code.
var chktexArgs = []string{"-q", "-n2", "-n24", "-n13", "-n1"}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	// Run executes a command in dir and returns its combined output.
	// A non-nil error with output still attached means the command ran
	// and failed; callers decide whether that is fatal.
	Run(ctx context.Context, dir, name string, args ...string) (string, error)
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}

var defaultExec executor = &osExecutor{}

// PdfLatex compiles standalone TikZ documents. It writes each draft
// into its working directory, runs pdflatex twice (the second pass
// settles positioning), and judges success by the presence of the
// output PDF, since pdflatex in nonstop mode can exit non-zero while
// still producing one.
type PdfLatex struct {
	workDir     string
	artifactDir string
	slug        string
	timeout     time.Duration
	lint        bool
	exec        executor
}

// NewPdfLatex builds a compiler rooted at workDir that drops accepted
// artifacts into artifactDir, named after slug. It fails with
// ErrNotFound when pdflatex is not installed.
func NewPdfLatex(workDir, artifactDir, slug string, cfg types.CompileConfig) (*PdfLatex, error) {
	return newPdfLatex(workDir, artifactDir, slug, cfg, defaultExec)
}

func newPdfLatex(workDir, artifactDir, slug string, cfg types.CompileConfig, ex executor) (*PdfLatex, error) {
	if _, err := ex.LookPath(binPdflatex); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	_, lintErr := ex.LookPath(binChktex)
	return &PdfLatex{
		workDir:     workDir,
		artifactDir: artifactDir,
		slug:        slug,
		timeout:     timeout,
		lint:        lintErr == nil,
		exec:        ex,
	}, nil
}

// Compile writes the draft source into the working directory, runs
// pdflatex over it, and moves the PDF to a per-revision artifact path
// on success. The source is written fresh on every call, so compiling
// the same draft twice sees identical inputs. Failed compilations are
// reported through the CompileResult; only tooling problems surface as
// errors.
func (p *PdfLatex) Compile(ctx context.Context, draft types.Draft) (types.CompileResult, error) {
	name := fmt.Sprintf("%s_graphical_abstract_%d.pdf", p.slug, draft.Index)
	return p.compileTo(ctx, draft, name)
}

// CompileFinal compiles a draft outside the revision loop, naming the
// artifact with a "final" suffix so it cannot clobber a numbered
// revision artifact from an earlier run.
func (p *PdfLatex) CompileFinal(ctx context.Context, draft types.Draft) (types.CompileResult, error) {
	name := fmt.Sprintf("%s_graphical_abstract_final.pdf", p.slug)
	return p.compileTo(ctx, draft, name)
}

func (p *PdfLatex) compileTo(ctx context.Context, draft types.Draft, artifactName string) (types.CompileResult, error) {
	texPath := filepath.Join(p.workDir, texFile)
	if err := os.WriteFile(texPath, []byte(draft.Source), 0o644); err != nil {
		return types.CompileResult{}, fmt.Errorf("writing %s: %w", texFile, err)
	}

	// Drop any PDF left by a previous revision so success detection
	// cannot see stale output.
	pdfPath := filepath.Join(p.workDir, pdfFile)
	if err := os.Remove(pdfPath); err != nil && !os.IsNotExist(err) {
		return types.CompileResult{}, fmt.Errorf("clearing stale PDF: %w", err)
	}

	var log strings.Builder
	for pass := 1; pass <= 2; pass++ {
		runCtx, cancel := context.WithTimeout(ctx, p.timeout)
		out, err := p.exec.Run(runCtx, p.workDir, binPdflatex, "-interaction=nonstopmode", texFile)
		cancel()

		fmt.Fprintf(&log, "pdflatex pass %d:\n%s\n", pass, out)
		if err != nil {
			// Exit status or timeout: diagnostics for the model, not a
			// tooling fault. The PDF check below decides the verdict.
			fmt.Fprintf(&log, "pdflatex pass %d error: %v\n", pass, err)
		}
	}

	if _, err := os.Stat(pdfPath); err != nil {
		return types.CompileResult{
			Passed: false,
			Log:    tail(log.String(), maxLogBytes) + p.lintOutput(ctx),
		}, nil
	}

	artifact := filepath.Join(p.artifactDir, artifactName)
	if err := os.Rename(pdfPath, artifact); err != nil {
		return types.CompileResult{}, fmt.Errorf("moving artifact: %w", err)
	}

	return types.CompileResult{
		Passed:       true,
		Log:          tail(log.String(), maxLogBytes),
		ArtifactPath: artifact,
	}, nil
}

// lintOutput runs chktex over the current source when available,
// enriching the feedback for the next revision round.
func (p *PdfLatex) lintOutput(ctx context.Context) string {
	if !p.lint {
		return ""
	}
	args := append(append([]string{}, chktexArgs...), texFile)
	out, err := p.exec.Run(ctx, p.workDir, binChktex, args...)
	if err != nil && out == "" {
		return ""
	}
	if strings.TrimSpace(out) == "" {
		return ""
	}
	return "\nchktex:\n" + out
}

// tail returns the final n bytes of s, cutting at a line boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := s[len(s)-n:]
	if idx := strings.IndexByte(cut, '\n'); idx >= 0 && idx < len(cut)-1 {
		cut = cut[idx+1:]
	}
	return cut
}
