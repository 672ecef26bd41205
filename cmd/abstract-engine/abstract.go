// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/abstract-engine/internal/compile"
	"github.com/pdiddy/abstract-engine/internal/describe"
	"github.com/pdiddy/abstract-engine/internal/generate"
	"github.com/pdiddy/abstract-engine/internal/history"
	"github.com/pdiddy/abstract-engine/internal/project"
	"github.com/pdiddy/abstract-engine/internal/refine"
	"github.com/pdiddy/abstract-engine/internal/secrets"
	"github.com/pdiddy/abstract-engine/internal/tex"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

var abstractCmd = &cobra.Command{
	Use:   "abstract",
	Short: "Generate and compile a graphical abstract for a project folder",
	Long: `Abstract reads the project folder (research idea, experiment
summaries, figures, LaTeX writeup), asks the generation model for a
standalone TikZ document, and compiles it with pdflatex. Failed drafts
are revised with compiler feedback until one compiles or the revision
budget runs out.

The accepted PDF lands in the project folder; the full revision trail
is recorded in graphical_abstract/history.db.

Exit status is 0 when a draft compiled, 1 when every draft within the
budget was rejected, and 2 when the tooling itself failed (missing
pdflatex, unreachable model API).`,
	RunE: runAbstract,
}

func runAbstract(cmd *cobra.Command, args []string) error {
	folder, _ := cmd.Flags().GetString("folder")
	noGeneration, _ := cmd.Flags().GetBool("no-generation")

	cfg := pipelineConfig(cmd)
	ctx := context.Background()

	proj, err := project.Load(folder)
	if err != nil {
		return err
	}

	if noGeneration {
		return compileExisting(ctx, proj, cfg.Compile)
	}

	workDir, err := project.PrepareWorkDir(folder)
	if err != nil {
		return err
	}

	proj.PlotDescriptions = describeFigures(ctx, cfg.Describe, cfg.HTTP, proj, workDir)

	backend, err := generate.BackendFor(cfg.Generation.AIConfig, cfg.HTTP, loadedSecrets)
	if err != nil {
		return err
	}
	gen := generate.NewTikZGenerator(backend)

	comp, err := compile.NewPdfLatex(workDir, folder, proj.Slug, cfg.Compile)
	if err != nil {
		return err
	}

	started := time.Now()
	outcome, runErr := refine.Run(ctx, gen, comp, tex.Check, proj, cfg.Generation.Reflections, os.Stdout)

	recordOutcome(ctx, workDir, cfg.History, history.RunMeta{
		StartedAt: started,
		Model:     cfg.Generation.Model,
		Budget:    cfg.Generation.Reflections,
	}, outcome)

	if runErr != nil {
		return runErr
	}
	if !outcome.Accepted {
		return fmt.Errorf("%w (%s after %d revisions)", errRejected, outcome.Reason, len(outcome.Revisions))
	}

	fmt.Fprintf(os.Stdout, "accepted: %s\n", outcome.Final().Compile.ArtifactPath)
	return nil
}

// pipelineConfig assembles the stage configuration from flags, filling
// API keys from the secrets loaded at startup.
func pipelineConfig(cmd *cobra.Command) types.PipelineConfig {
	bigModel, _ := cmd.Flags().GetString("big-model")
	descModel, _ := cmd.Flags().GetString("model")
	reflections, _ := cmd.Flags().GetInt("reflections")
	maxRetries, _ := cmd.Flags().GetInt("max-retries")
	skipDescriptions, _ := cmd.Flags().GetBool("skip-descriptions")
	compileTimeout, _ := cmd.Flags().GetDuration("compile-timeout")
	httpTimeout, _ := cmd.Flags().GetDuration("http-timeout")

	cfg := types.PipelineConfig{
		HTTP: types.HTTPConfig{
			Timeout:   httpTimeout,
			UserAgent: "abstract-engine/" + version,
		},
		Generation: types.GenerationConfig{
			AIConfig:    types.AIConfig{Model: bigModel, MaxRetries: maxRetries},
			Reflections: reflections,
		},
		Describe: types.DescribeConfig{
			AIConfig: types.AIConfig{Model: descModel, MaxRetries: maxRetries},
			Skip:     skipDescriptions,
		},
		Compile: types.CompileConfig{Timeout: compileTimeout},
		History: types.HistoryConfig{},
	}
	cfg.Describe.APIKey = loadedSecrets[secrets.KeyAnthropic]
	return cfg
}

// compileExisting compiles the draft left in the workspace by a
// previous run, without touching the generation backend. The artifact
// gets a "final" name so numbered revision artifacts are preserved.
func compileExisting(ctx context.Context, proj *types.Project, cfg types.CompileConfig) error {
	workDir := filepath.Join(proj.Folder, project.WorkDirName)
	source, err := os.ReadFile(filepath.Join(workDir, "graphical_abstract.tex"))
	if err != nil {
		return fmt.Errorf("no existing draft to compile: %w", err)
	}

	comp, err := compile.NewPdfLatex(workDir, proj.Folder, proj.Slug, cfg)
	if err != nil {
		return err
	}

	res, err := comp.CompileFinal(ctx, types.Draft{Source: string(source)})
	if err != nil {
		return err
	}
	if !res.Passed {
		fmt.Fprintln(os.Stderr, res.Log)
		return fmt.Errorf("%w (existing draft)", errRejected)
	}

	fmt.Fprintf(os.Stdout, "accepted: %s\n", res.ArtifactPath)
	return nil
}

// describeFigures produces the figure description block for the
// generation prompt. Descriptions are best-effort: a missing key or an
// unsupported vision model degrades to the default placeholder rather
// than failing the run.
func describeFigures(ctx context.Context, cfg types.DescribeConfig, httpCfg types.HTTPConfig, proj *types.Project, workDir string) string {
	if cfg.Skip || len(proj.PlotNames) == 0 {
		return ""
	}
	if !strings.HasPrefix(cfg.Model, "claude") {
		fmt.Fprintf(os.Stderr, "warning: no vision support for model %s, skipping figure descriptions\n", cfg.Model)
		return ""
	}
	if cfg.APIKey == "" {
		fmt.Fprintf(os.Stderr, "warning: %s not found, skipping figure descriptions\n", secrets.KeyAnthropic)
		return ""
	}

	vision := describe.NewClaudeVision(cfg, httpCfg)
	return describe.DescribeAll(ctx, vision, proj, workDir, os.Stderr)
}

// recordOutcome appends the run to the ledger. Ledger problems are
// warnings: the verdict of the run is already decided.
func recordOutcome(ctx context.Context, workDir string, cfg types.HistoryConfig, meta history.RunMeta, out refine.Outcome) {
	store, err := history.NewStore(workDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: opening run ledger: %v\n", err)
		return
	}
	defer store.Close()

	if _, err := store.RecordRun(ctx, meta, out); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording run: %v\n", err)
		return
	}
	if err := store.ExportYAML(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "warning: exporting run ledger: %v\n", err)
	}
}

func init() {
	abstractCmd.Flags().String("folder", "", "project folder containing idea, summaries, figures, and writeup")
	abstractCmd.Flags().String("big-model", "claude-sonnet-4-5-20250929", "model used for draft generation and reflection")
	abstractCmd.Flags().String("model", "claude-sonnet-4-5-20250929", "vision model used for figure descriptions")
	abstractCmd.Flags().Int("reflections", 2, "revision budget: regeneration attempts after the initial draft")
	abstractCmd.Flags().Int("max-retries", 3, "retry attempts for rate-limited model API calls")
	abstractCmd.Flags().Bool("skip-descriptions", false, "skip vision-model figure descriptions")
	abstractCmd.Flags().Bool("no-generation", false, "compile the existing draft in graphical_abstract/ without calling the model")
	abstractCmd.Flags().Duration("compile-timeout", 30*time.Second, "timeout for a single pdflatex invocation")
	abstractCmd.Flags().Duration("http-timeout", 0, "HTTP request timeout for model API calls (0 = no timeout)")
	abstractCmd.MarkFlagRequired("folder")

	rootCmd.AddCommand(abstractCmd)
}
