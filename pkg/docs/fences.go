package docs

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark/ast"
)

// Fence is a fenced code block. Start and End are the 1-based lines of its
// first and last content line.
type Fence struct {
	Info  string `json:"info"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Contains reports whether line falls inside the block's content
func (f Fence) Contains(line int) bool {
	return line >= f.Start && line <= f.End
}

// collectFences returns every non-empty fenced code block in document order
func collectFences(root ast.Node, source []byte) []Fence {
	var fences []Fence
	_ = ast.Walk(root, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fcb, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		lines := fcb.Lines()
		if lines.Len() == 0 {
			return ast.WalkSkipChildren, nil
		}
		first, last := lines.At(0), lines.At(lines.Len()-1)
		fences = append(fences, Fence{
			Info:  strings.ToLower(string(fcb.Language(source))),
			Start: bytes.Count(source[:first.Start], []byte("\n")) + 1,
			End:   bytes.Count(source[:last.Start], []byte("\n")) + 1,
		})
		return ast.WalkSkipChildren, nil
	})
	return fences
}
