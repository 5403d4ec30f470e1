package lint

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/aymanbagabas/go-udiff"
	"github.com/hashicorp/go-multierror"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/pkg/errors"
	"github.com/rogpeppe/go-internal/lockedfile"
)

var (
	tagPattern     = regexp.MustCompile(`\{\{~?\s*([^{}]*?)\s*~?\}\}`)
	eachAsPattern  = regexp.MustCompile(`^(.+?)\s+as\s+\|\s*(\w+)(?:\s+\w+)?\s*\|$`)
	thisRefPattern = regexp.MustCompile(`\bthis\b`)
)

var loopVariables = map[string]string{
	"@index": "loop.index0",
	"@first": "loop.first",
	"@last":  "loop.last",
}

type block struct {
	kind    string
	loopVar string
}

// ConvertHandlebars rewrites Handlebars block helpers into the {% %} tag
// syntax used by prompt files. Inside #each blocks, references to this and
// @index become the loop variable and loop.index0.
func ConvertHandlebars(content string) (string, bool) {
	var stack []block
	changed := false

	currentLoopVar := func() string {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].kind == "each" {
				return stack[i].loopVar
			}
		}
		return ""
	}
	rewriteThis := func(expr string) string {
		if v := currentLoopVar(); v != "" {
			return thisRefPattern.ReplaceAllString(expr, v)
		}
		return expr
	}
	pop := func(kind string) {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i].kind == kind {
				stack = append(stack[:i], stack[i+1:]...)
				return
			}
		}
	}

	out := tagPattern.ReplaceAllStringFunc(content, func(tag string) string {
		inner := strings.TrimSpace(tagPattern.FindStringSubmatch(tag)[1])

		var replacement string
		switch {
		case strings.HasPrefix(inner, "#if "):
			replacement = "{% if " + rewriteThis(strings.TrimSpace(inner[4:])) + " %}"
			stack = append(stack, block{kind: "if"})
		case strings.HasPrefix(inner, "#unless "):
			replacement = "{% if not " + rewriteThis(strings.TrimSpace(inner[8:])) + " %}"
			stack = append(stack, block{kind: "unless"})
		case strings.HasPrefix(inner, "#each "):
			collection := strings.TrimSpace(inner[6:])
			v := ""
			if m := eachAsPattern.FindStringSubmatch(collection); m != nil {
				collection, v = m[1], m[2]
			} else {
				v = loopVar(collection)
			}
			replacement = "{% for " + v + " in " + rewriteThis(collection) + " %}"
			stack = append(stack, block{kind: "each", loopVar: v})
		case strings.HasPrefix(inner, "else if "):
			replacement = "{% elif " + rewriteThis(strings.TrimSpace(inner[8:])) + " %}"
		case inner == "else":
			replacement = "{% else %}"
		case inner == "/if":
			pop("if")
			replacement = "{% endif %}"
		case inner == "/unless":
			pop("unless")
			replacement = "{% endif %}"
		case inner == "/each":
			pop("each")
			replacement = "{% endfor %}"
		default:
			v := currentLoopVar()
			if v == "" {
				return tag
			}
			if lv, ok := loopVariables[inner]; ok {
				replacement = "{{ " + lv + " }}"
			} else if thisRefPattern.MatchString(inner) {
				replacement = "{{ " + thisRefPattern.ReplaceAllString(inner, v) + " }}"
			} else {
				return tag
			}
		}

		changed = true
		return replacement
	})

	return out, changed
}

// loopVar names the loop variable after the singular of the collection
func loopVar(collection string) string {
	name := collection
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	singular := name
	switch {
	case strings.HasSuffix(name, "ies") && len(name) > 3:
		singular = name[:len(name)-3] + "y"
	case strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") && len(name) > 1:
		singular = name[:len(name)-1]
	}
	if singular == name || singular == "" || singular == "this" {
		return "item"
	}
	return singular
}

// FileFix is the rewrite of one document
type FileFix struct {
	Path  string   `json:"path"`
	Rules []string `json:"rules"`
	Diff  string   `json:"diff"`

	original string
	updated  string
}

// Fix computes rewrites for every document an enabled fixable rule applies
// to. Nothing is written; see Apply.
func Fix(ctx context.Context, store *docs.Store, cfg Config) []FileFix {
	var fixers []Rule
	for _, r := range Rules() {
		if r.fix != nil && cfg.enabled(r.ID) {
			fixers = append(fixers, r)
		}
	}

	var fixes []FileFix
	for _, o := range allOrigins(store) {
		content := o.Content
		var applied []string
		for _, r := range fixers {
			if updated, ok := r.fix(o, content); ok {
				content = updated
				applied = append(applied, r.ID)
			}
		}
		if len(applied) == 0 || content == o.Content {
			continue
		}

		fixes = append(fixes, FileFix{
			Path:     o.Path,
			Rules:    applied,
			Diff:     udiff.Unified(o.Path, o.Path, o.Content, content),
			original: o.Content,
			updated:  content,
		})
		logger.G(ctx).WithField("path", o.Path).WithField("rules", applied).Debug("computed fix")
	}
	return fixes
}

// Apply writes fixes back under a file lock and returns the fixes that were
// written. A file that changed on disk since it was loaded is left alone and
// reported in the returned error.
func Apply(ctx context.Context, fixes []FileFix) ([]FileFix, error) {
	var (
		applied []FileFix
		result  *multierror.Error
	)
	for _, f := range fixes {
		err := lockedfile.Transform(f.Path, func(current []byte) ([]byte, error) {
			if string(bytes.ReplaceAll(current, []byte("\r\n"), []byte("\n"))) != f.original {
				return nil, errors.New("file changed since it was loaded")
			}
			return []byte(f.updated), nil
		})
		if err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "failed to fix %s", f.Path))
			continue
		}
		applied = append(applied, f)
		logger.G(ctx).WithField("path", f.Path).Info("applied fix")
	}
	return applied, result.ErrorOrNil()
}
