// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Project holds everything a research project folder supplies to the
// graphical abstract pipeline. It is loaded once per run and never
// mutated afterwards. Per prd008-graphical-abstract R1.1-R1.5.
type Project struct {
	// Folder is the absolute or relative path to the project directory.
	Folder string `json:"folder" yaml:"folder"`

	// Slug is a cleaned identifier derived from the folder basename,
	// used to name output artifacts.
	Slug string `json:"slug" yaml:"slug"`

	// IdeaText is the research idea Markdown (research_idea.md, with
	// idea.md as fallback). Empty when neither file exists.
	IdeaText string `json:"idea_text" yaml:"idea_text"`

	// Summaries is the combined experiment summary JSON: baseline,
	// research, and ablation summaries keyed by summary name.
	Summaries string `json:"summaries" yaml:"summaries"`

	// AggregatorCode is the source of the plot aggregation script,
	// included so the model can see how plots were produced.
	AggregatorCode string `json:"aggregator_code" yaml:"aggregator_code"`

	// PlotNames lists PNG filenames found under figures/.
	PlotNames []string `json:"plot_names" yaml:"plot_names"`

	// PlotDescriptions is a newline-joined block of per-figure
	// descriptions produced by the vision model.
	PlotDescriptions string `json:"plot_descriptions" yaml:"plot_descriptions"`

	// Writeup is the full paper LaTeX (latex/template.tex), when present.
	Writeup string `json:"writeup" yaml:"writeup"`
}
