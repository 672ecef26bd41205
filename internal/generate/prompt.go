// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package generate

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/pdiddy/abstract-engine/pkg/types"
)

// systemMessage frames every generation and reflection turn. It asks
// for a standalone TikZ document so the result compiles on its own.
const systemMessage = `You are an ambitious AI researcher preparing a paper for publication.
The paper is already written. You now need to create a publication-ready graphical abstract in LaTeX using TikZ, compiled as a standalone document. The graphical abstract sits directly beneath the textual abstract and must give a one-glance overview of the problem, core method, novelty, and outcome. Combine multiple layout patterns (pipeline, before/after, 2x2 grid, hub-and-spoke, parallel comparison, timeline, layered, cycle) to best communicate the story.

Deliverables:
1) A self-contained LaTeX file using the standalone class and tikzpicture, loading only necessary TikZ libraries (e.g. arrows.meta, positioning, calc, fit, backgrounds, shapes.geometric). The code must compile on its own.
2) A hybrid layout combining at least two layout patterns, with a consistent visual style (line widths, colors, icon detail) and short, legible labels.
3) Clearly named nodes, edges, and groups, with concise code comments for structure and sizing.

Always write compilable LaTeX. Common mistakes to avoid:
- Syntax errors (unenclosed math, unmatched braces).
- Duplicate labels or references.
- Unescaped special characters: & % $ # _ { } ~ ^ \
- Unclosed environments.
- Do not invent citations or results not present in the provided material.

When returning final code, place it in fenced triple backticks with latex syntax highlighting.`

// initialPromptTmpl carries the full project context for draft zero.
var initialPromptTmpl = template.Must(template.New("initial").Parse(`Your goal is to create a graphical abstract based on the following research context:

` + "```markdown\n{{.IdeaText}}\n```" + `

We have the following experiment summaries (JSON):
` + "```json\n{{.Summaries}}\n```" + `

We also have the script used to produce the final plots (use this to see how the plots are generated and what names appear in legends):
` + "```python\n{{.AggregatorCode}}\n```" + `

Available plots for reference:
` + "```\n{{.PlotList}}\n```" + `

Figure descriptions from a vision model:
` + "```\n{{.PlotDescriptions}}\n```" + `

The full paper LaTeX is available for context:
` + "```latex\n{{.Writeup}}\n```" + `

Create a standalone LaTeX document with TikZ that serves as a graphical abstract. The document should:

1. Use the standalone document class with appropriate TikZ libraries
2. Summarize the key contribution in a visually appealing way
3. Combine multiple layout patterns for maximum impact
4. Use consistent styling (colors, fonts, line widths)
5. Include brief, informative labels
6. Be compilation-ready and self-contained

Provide the complete LaTeX code wrapped in triple backticks with "latex" syntax highlighting.`))

// reflectionPromptTmpl feeds the previous draft and its diagnostics back
// for one revision round.
var reflectionPromptTmpl = template.Must(template.New("reflection").Parse(`The previous graphical abstract did not produce a valid PDF. Diagnostics from validation and compilation:

` + "```\n{{.Diagnostics}}\n```" + `

Current LaTeX code:
` + "```latex\n{{.Source}}\n```" + `

Reflect on the current graphical abstract and fix it:

1) Resolve every syntax or compilation issue reported above.
2) Keep the visual design clear, informative, and aesthetically pleasing.
3) Make sure it still communicates the key contribution of the research.
4) Keep the text legible and concise.

Provide the improved complete LaTeX code wrapped in triple backticks with "latex" syntax highlighting, or repeat the same code if no changes are needed. If you believe you are done, simply say: "I am done".`))

// renderInitialPrompt fills the draft-zero template from the project.
func renderInitialPrompt(p *types.Project) (string, error) {
	plotList := "none"
	if len(p.PlotNames) > 0 {
		plotList = strings.Join(p.PlotNames, ", ")
	}
	descriptions := p.PlotDescriptions
	if descriptions == "" {
		descriptions = "No descriptions available."
	}

	var buf bytes.Buffer
	err := initialPromptTmpl.Execute(&buf, struct {
		IdeaText, Summaries, AggregatorCode, PlotList, PlotDescriptions, Writeup string
	}{
		IdeaText:         p.IdeaText,
		Summaries:        p.Summaries,
		AggregatorCode:   p.AggregatorCode,
		PlotList:         plotList,
		PlotDescriptions: descriptions,
		Writeup:          p.Writeup,
	})
	if err != nil {
		return "", fmt.Errorf("rendering initial prompt: %w", err)
	}
	return buf.String(), nil
}

// renderReflectionPrompt fills the revision template.
func renderReflectionPrompt(source, diagnostics string) (string, error) {
	var buf bytes.Buffer
	err := reflectionPromptTmpl.Execute(&buf, struct {
		Source, Diagnostics string
	}{Source: source, Diagnostics: diagnostics})
	if err != nil {
		return "", fmt.Errorf("rendering reflection prompt: %w", err)
	}
	return buf.String(), nil
}
