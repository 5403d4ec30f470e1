package docs

import (
	"bytes"
	"reflect"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/yuin/goldmark"
	meta "github.com/yuin/goldmark-meta"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"
)

const frontmatterDelimiter = "---"

var markdown = goldmark.New(goldmark.WithExtensions(meta.Meta))

// parsedDoc is a Markdown document split into frontmatter and body, with its
// AST kept for heading walks.
type parsedDoc struct {
	source      []byte
	root        ast.Node
	meta        map[string]any
	frontmatter bool
	keyLines    map[string]int
	body        string
	bodyLine    int
}

// parseMarkdown parses content once with the frontmatter extension enabled.
// A document without a leading --- line is valid and simply has no metadata.
func parseMarkdown(content []byte) (*parsedDoc, error) {
	source := bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	d := &parsedDoc{
		source:   source,
		body:     string(source),
		bodyLine: 1,
		keyLines: map[string]int{},
	}

	header, body, bodyLine, ok, err := splitFrontmatter(string(source))
	if err != nil {
		return nil, err
	}

	pctx := parser.NewContext()
	d.root = markdown.Parser().Parse(text.NewReader(source), parser.WithContext(pctx))
	if !ok {
		return d, nil
	}

	metaData, err := meta.TryGet(pctx)
	if err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	if metaData == nil {
		metaData = map[string]any{}
	}

	keyLines, err := frontmatterKeyLines(header)
	if err != nil {
		return nil, err
	}

	d.meta = metaData
	d.frontmatter = true
	d.keyLines = keyLines
	d.body = body
	d.bodyLine = bodyLine
	return d, nil
}

// splitFrontmatter returns the YAML header, the body and the 1-based line the
// body starts on.
func splitFrontmatter(content string) (header, body string, bodyLine int, ok bool, err error) {
	lines := strings.Split(content, "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != frontmatterDelimiter {
		return "", content, 1, false, nil
	}

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
			header = strings.Join(lines[1:i], "\n")
			body = strings.Join(lines[i+1:], "\n")
			return header, body, i + 2, true, nil
		}
	}

	return "", "", 0, false, errors.New("unterminated frontmatter: missing closing ---")
}

// frontmatterKeyLines maps each top-level key to its line in the file. The
// header starts on line 2, after the opening delimiter.
func frontmatterKeyLines(header string) (map[string]int, error) {
	lines := map[string]int{}
	if strings.TrimSpace(header) == "" {
		return lines, nil
	}

	var node yaml.Node
	if err := yaml.Unmarshal([]byte(header), &node); err != nil {
		return nil, errors.Wrap(err, "invalid frontmatter")
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 {
		return lines, nil
	}

	mapping := node.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return nil, errors.New("frontmatter must be a mapping")
	}
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i]
		lines[key.Value] = key.Line + 1
	}
	return lines, nil
}

// decodeFrontmatter decodes metadata into one of the *Frontmatter structs
func decodeFrontmatter(metaData map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       commaSeparatedToSlice,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return errors.Wrap(err, "failed to create frontmatter decoder")
	}
	return errors.Wrap(decoder.Decode(metaData), "failed to decode frontmatter")
}

// commaSeparatedToSlice lets `tools: Read, Write` decode into []string
func commaSeparatedToSlice(from, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	return splitList(reflect.ValueOf(data).String()), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
