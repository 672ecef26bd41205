// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package project loads the research-project folder that supplies
// context to graphical abstract generation.
// Implements: prd008-graphical-abstract (R1);
//
//	docs/ARCHITECTURE § Project Layout.
package project

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pdiddy/abstract-engine/internal/tex"
	"github.com/pdiddy/abstract-engine/pkg/types"
)

const (
	ideaFile         = "research_idea.md"
	ideaFallbackFile = "idea.md"
	aggregatorFile   = "auto_plot_aggregator.py"
	figuresDir       = "figures"

	// WorkDirName is the subdirectory used as the compilation
	// workspace and ledger location.
	WorkDirName = "graphical_abstract"
)

// summarySources lists the experiment summary files in prompt order.
// A missing or unparsable file contributes an empty object, matching
// the tolerant behaviour expected of partially-complete experiments.
var summarySources = []struct {
	path string
	key  string
}{
	{filepath.Join("logs", "0-run", "baseline_summary.json"), "BASELINE_SUMMARY"},
	{filepath.Join("logs", "0-run", "research_summary.json"), "RESEARCH_SUMMARY"},
	{filepath.Join("logs", "0-run", "ablation_summary.json"), "ABLATION_SUMMARY"},
}

// Load reads the project folder into an immutable Project. Only the
// folder itself must exist; every individual input is optional and
// degrades to an empty value, since experiments are often incomplete
// when the graphical abstract is first attempted.
func Load(folder string) (*types.Project, error) {
	info, err := os.Stat(folder)
	if err != nil {
		return nil, fmt.Errorf("opening project folder: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project path %s is not a directory", folder)
	}

	p := &types.Project{
		Folder: folder,
		Slug:   slug(folder),
	}

	p.IdeaText = readOptional(folder, ideaFile)
	if p.IdeaText == "" {
		p.IdeaText = readOptional(folder, ideaFallbackFile)
	}

	p.Summaries = loadSummaries(folder)
	p.AggregatorCode = readOptional(folder, aggregatorFile)
	if p.AggregatorCode == "" {
		p.AggregatorCode = "No aggregator script found."
	}
	p.Writeup = readOptional(folder, filepath.Join("latex", "template.tex"))

	plots, err := plotNames(folder)
	if err != nil {
		return nil, err
	}
	p.PlotNames = plots

	return p, nil
}

// PrepareWorkDir removes any previous graphical_abstract/ workspace
// under the folder and creates a fresh one, returning its path.
func PrepareWorkDir(folder string) (string, error) {
	dir := filepath.Join(folder, WorkDirName)
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("clearing workspace %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating workspace %s: %w", dir, err)
	}
	return dir, nil
}

// slug derives the artifact-naming identifier from the folder basename.
func slug(folder string) string {
	abs, err := filepath.Abs(folder)
	if err != nil {
		abs = folder
	}
	s := tex.CleanIdentifier(filepath.Base(abs))
	if s == "" {
		return "project"
	}
	return s
}

// readOptional returns the file contents or "" when the file is absent.
func readOptional(folder, rel string) string {
	data, err := os.ReadFile(filepath.Join(folder, rel))
	if err != nil {
		return ""
	}
	return string(data)
}

// loadSummaries combines the experiment summary JSON files into one
// indented JSON document keyed by summary name.
func loadSummaries(folder string) string {
	combined := make(map[string]json.RawMessage, len(summarySources))
	for _, src := range summarySources {
		combined[src.key] = json.RawMessage("{}")
		data, err := os.ReadFile(filepath.Join(folder, src.path))
		if err != nil {
			continue
		}
		if !json.Valid(data) {
			continue
		}
		combined[src.key] = json.RawMessage(data)
	}
	out, err := json.MarshalIndent(combined, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// plotNames lists PNG files under figures/, sorted by name. A missing
// figures directory yields an empty list.
func plotNames(folder string) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(folder, figuresDir))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading figures directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".png") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
