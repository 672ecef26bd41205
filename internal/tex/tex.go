// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package tex provides cheap local validation and text utilities for
// model-authored LaTeX, used before the full compiler is invoked.
// Implements: prd008-graphical-abstract R3.2 (structural check).
package tex

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fencedPattern matches a ```latex fenced code block in a model response.
var fencedPattern = regexp.MustCompile("(?s)```latex\\s*(.*?)```")

// envPattern matches \begin{name} and \end{name} markers.
var envPattern = regexp.MustCompile(`\\(begin|end)\{([^{}]*)\}`)

// requiredMarkers are the structural elements every standalone TikZ
// document must carry to be worth sending to the compiler.
var requiredMarkers = []string{
	`\documentclass`,
	`\begin{document}`,
	`\end{document}`,
	`\begin{tikzpicture}`,
}

// Check validates the structure of a standalone TikZ LaTeX document
// without invoking a compiler: required markers present, braces
// balanced, environments properly nested. It returns nil when the
// source looks compilable, or an error describing the first problem
// found.
func Check(source string) error {
	if strings.TrimSpace(source) == "" {
		return fmt.Errorf("empty document")
	}

	stripped := stripComments(source)

	for _, marker := range requiredMarkers {
		if !strings.Contains(stripped, marker) {
			return fmt.Errorf("missing %s", marker)
		}
	}

	if err := checkBraces(stripped); err != nil {
		return err
	}

	return checkEnvironments(stripped)
}

// stripComments removes LaTeX comments: an unescaped % through the end
// of its line.
func stripComments(source string) string {
	var b strings.Builder
	for _, line := range strings.Split(source, "\n") {
		escaped := false
		cut := len(line)
		for i, c := range line {
			if escaped {
				escaped = false
				continue
			}
			if c == '\\' {
				escaped = true
			} else if c == '%' {
				cut = i
				break
			}
		}
		b.WriteString(line[:cut])
		b.WriteByte('\n')
	}
	return b.String()
}

// checkBraces verifies that { and } balance, ignoring escaped \{ and \}.
func checkBraces(source string) error {
	depth := 0
	escaped := false
	for _, c := range source {
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fmt.Errorf("unbalanced braces: unexpected }")
			}
		}
	}
	if depth != 0 {
		return fmt.Errorf("unbalanced braces: %d unclosed {", depth)
	}
	return nil
}

// checkEnvironments verifies that \begin{...}/\end{...} pairs nest
// properly.
func checkEnvironments(source string) error {
	var stack []string
	for _, m := range envPattern.FindAllStringSubmatch(source, -1) {
		kind, name := m[1], m[2]
		if kind == "begin" {
			stack = append(stack, name)
			continue
		}
		if len(stack) == 0 {
			return fmt.Errorf(`\end{%s} without matching \begin`, name)
		}
		top := stack[len(stack)-1]
		if top != name {
			return fmt.Errorf(`\end{%s} does not match \begin{%s}`, name, top)
		}
		stack = stack[:len(stack)-1]
	}
	if len(stack) > 0 {
		return fmt.Errorf(`unclosed \begin{%s}`, stack[len(stack)-1])
	}
	return nil
}

// ExtractFenced pulls the LaTeX source out of a model response wrapped
// in a ```latex fenced block. The second return is false when no such
// block exists.
func ExtractFenced(response string) (string, bool) {
	m := fencedPattern.FindStringSubmatch(response)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// accentStripper decomposes characters and drops combining marks, so
// "Schrödinger" becomes "Schrodinger".
var accentStripper = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))

// CleanIdentifier reduces a string to a safe lowercase LaTeX identifier:
// accents folded away, anything outside letters, digits, and a small
// punctuation set removed.
func CleanIdentifier(s string) string {
	folded, _, err := transform.String(accentStripper, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, c := range folded {
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
			b.WriteRune(c)
		case c >= 'A' && c <= 'Z':
			b.WriteRune(c + ('a' - 'A'))
		case c == ':', c == '_', c == '@', c == '{', c == '}', c == ',', c == '-':
			b.WriteRune(c)
		}
	}
	return b.String()
}
