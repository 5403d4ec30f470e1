package docs

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
)

type heading struct {
	level int
	line  int
	text  string
}

// collectHeadings walks the AST so that headings inside fenced code blocks
// are never mistaken for steps.
func collectHeadings(root ast.Node, source []byte) []heading {
	var headings []heading
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		h, ok := n.(*ast.Heading)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := h.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		seg := lines.At(0)
		headings = append(headings, heading{
			level: h.Level,
			line:  bytes.Count(source[:seg.Start], []byte("\n")) + 1,
			text:  headingText(string(seg.Value(source))),
		})
		return ast.WalkSkipChildren, nil
	})
	return headings
}

// parseSteps extracts every "Step N: name" heading. A step's instructions run
// until the next heading of the same or a higher level.
func parseSteps(d *parsedDoc) []Step {
	headings := collectHeadings(d.root, d.source)
	lines := strings.Split(string(d.source), "\n")

	var steps []Step
	for i, h := range headings {
		m := stepHeadingPattern.FindStringSubmatch(h.text)
		if m == nil {
			continue
		}
		seq, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		end := len(lines) + 1
		for _, next := range headings[i+1:] {
			if next.level <= h.level {
				end = next.line
				break
			}
		}

		firstLine := h.line + 1
		instructions := ""
		if firstLine <= end-1 {
			instructions = strings.Join(lines[h.line:end-1], "\n")
		}

		step := Step{
			Sequence:       seq,
			Name:           m[2],
			Instructions:   strings.TrimSpace(instructions),
			OutputTemplate: findOutputTemplate(instructions),
			Branches:       findBranches(instructions, firstLine),
			Skills:         findSkillRefs(instructions, firstLine),
			Line:           h.line,
		}
		step.Subagent, step.SubagentLine = findSubagent(instructions, firstLine)
		steps = append(steps, step)
	}
	return steps
}
