// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package describe produces vision-model descriptions of a project's
// figures, giving the generation prompt something concrete to say
// about each plot.
package describe

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

const descriptionsFile = "figure_descriptions.yaml"

// noDescriptions is the degraded prompt block used when nothing could
// be described.
const noDescriptions = "No descriptions available."

// Describer turns one image file into a short textual description.
type Describer interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// DescribeAll describes every plot in the project, writes the results
// to workDir/figure_descriptions.yaml, and returns the newline-joined
// "name: description" block for the generation prompt. Individual
// failures degrade to a placeholder line; description work is
// best-effort and never fails the run.
func DescribeAll(ctx context.Context, d Describer, project *types.Project, workDir string, w io.Writer) string {
	if len(project.PlotNames) == 0 {
		return noDescriptions
	}

	descriptions := make(map[string]string, len(project.PlotNames))
	var block []byte
	for _, name := range project.PlotNames {
		path := filepath.Join(project.Folder, "figures", name)
		desc, err := d.Describe(ctx, path)
		if err != nil {
			fmt.Fprintf(w, "warning: describing %s failed: %v\n", name, err)
			desc = "No description found"
		}
		descriptions[name] = desc
		block = append(block, fmt.Sprintf("%s: %s\n", name, desc)...)
	}

	if data, err := yaml.Marshal(descriptions); err == nil {
		outPath := filepath.Join(workDir, descriptionsFile)
		if err := os.WriteFile(outPath, data, 0o644); err != nil {
			fmt.Fprintf(w, "warning: writing %s failed: %v\n", descriptionsFile, err)
		}
	}

	return string(block)
}
