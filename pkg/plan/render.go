package plan

import (
	"bytes"
	"encoding/json"
	"strings"
	"text/template"

	"github.com/pkg/errors"
)

var markdownTemplate = template.Must(template.New("plan").Funcs(template.FuncMap{
	"trim": func(s string) string {
		return strings.TrimSpace(s)
	},
}).Parse(`# Plan: /{{ .Command }}

{{ if .Description }}{{ .Description }}

{{ end -}}
- ID: {{ .ID }}
- Created: {{ .CreatedAt.Format "2006-01-02 15:04:05 MST" }}
{{- if .Model }}
- Model: {{ .Model }}
{{- end }}
- Arguments: {{ if .Arguments }}{{ .Arguments }}{{ else }}(none){{ end }}
{{- if .OutputPath }}
- Output: ` + "`{{ .OutputPath }}`" + `
{{- end }}
{{- if .NeedsInput }}

> Needs input: {{ .Question }}
{{- end }}
{{ range .Steps }}
## Step {{ .Sequence }}: {{ .Name }}
{{ if .Agent }}
- Agent: ` + "`{{ .Agent }}`" + `{{ if .AgentUnresolved }} (unresolved){{ end }}
{{- end }}
{{- range .Skills }}
- Skill: ` + "`{{ .Name }}`" + ` ({{ .Source }}{{ if .Unresolved }}, unresolved{{ end }})
{{- end }}
{{- if .Output }}
- Output: ` + "`{{ .Output }}`" + `
{{- end }}
{{- range .Branches }}
- Branch: if {{ .Condition }} then {{ .Then }}, otherwise {{ .Else }}
{{- end }}
{{ if .Instructions }}
{{ trim .Instructions }}
{{ end -}}
{{ end -}}
`))

// Markdown renders the plan as the PLAN.md artifact
func Markdown(p *Plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdownTemplate.Execute(&buf, p); err != nil {
		return nil, errors.Wrap(err, "failed to render plan")
	}
	return buf.Bytes(), nil
}

// JSON renders the plan as indented JSON
func JSON(p *Plan) ([]byte, error) {
	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal plan")
	}
	return b, nil
}
