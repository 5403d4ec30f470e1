// Package schema generates JSON schemas for document frontmatter, plans and
// tool inputs.
package schema

import (
	"sort"

	"github.com/invopop/jsonschema"
	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/pkg/errors"
)

// Generate reflects a self-contained schema for T
func Generate[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T

	return reflector.Reflect(v)
}

var generators = map[string]func() *jsonschema.Schema{
	"command": Generate[docs.CommandFrontmatter],
	"agent":   Generate[docs.AgentFrontmatter],
	"skill":   Generate[docs.SkillFrontmatter],
	"plan":    Generate[plan.Plan],
}

// Names lists the schemas For accepts
func Names() []string {
	names := make([]string, 0, len(generators))
	for name := range generators {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// For returns the schema called name. Document kinds describe frontmatter.
func For(name string) (*jsonschema.Schema, error) {
	if kind, ok := docs.ParseKind(name); ok {
		name = string(kind)
	}
	gen, ok := generators[name]
	if !ok {
		return nil, errors.Errorf("unknown schema '%s', expected one of %v", name, Names())
	}
	return gen(), nil
}
