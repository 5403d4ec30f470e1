package mcpserver

import (
	"context"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/pkg/errors"
)

// ListDocumentsInput is the input of list_documents
type ListDocumentsInput struct {
	Kind string `json:"kind,omitempty" jsonschema:"description=Only list documents of this kind,enum=command,enum=agent,enum=skill"`
}

// ShowDocumentInput is the input of show_document
type ShowDocumentInput struct {
	Kind string `json:"kind" jsonschema:"description=Document kind,enum=command,enum=agent,enum=skill"`
	Name string `json:"name" jsonschema:"description=Command slug or agent or skill name"`
}

// MatchInput is the input of match
type MatchInput struct {
	Text      string  `json:"text" jsonschema:"description=The free-text request to match"`
	Kind      string  `json:"kind,omitempty" jsonschema:"description=Only match documents of this kind,enum=agent,enum=skill"`
	Limit     int     `json:"limit,omitempty" jsonschema:"description=Maximum number of matches"`
	Threshold float64 `json:"threshold,omitempty" jsonschema:"description=Minimum score between 0 and 1; omitted or 0 uses the configured threshold"`
}

// PlanInput is the input of plan
type PlanInput struct {
	Command   string `json:"command" jsonschema:"description=Command slug such as plan_workflow or /flow:convert"`
	Arguments string `json:"arguments,omitempty" jsonschema:"description=The arguments the user passed to the command"`
}

// LintInput is the input of lint
type LintInput struct {
	ErrorsOnly bool `json:"errors_only,omitempty" jsonschema:"description=Drop warnings from the report"`
}

func parseKind(s string) ([]docs.Kind, error) {
	if s == "" {
		return nil, nil
	}
	k, ok := docs.ParseKind(s)
	if !ok {
		return nil, errors.Errorf("unknown document kind '%s'", s)
	}
	return []docs.Kind{k}, nil
}

func (s *Server) handleListDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ListDocumentsInput
	if err := bind(request, &input); err != nil {
		return errorResult(err), nil
	}
	kinds, err := parseKind(input.Kind)
	if err != nil {
		return errorResult(err), nil
	}
	store, err := s.store(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	summaries := store.Summaries(kinds...)
	if summaries == nil {
		summaries = []docs.Summary{}
	}
	return jsonResult(summaries)
}

func (s *Server) handleShowDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input ShowDocumentInput
	if err := bind(request, &input); err != nil {
		return errorResult(err), nil
	}
	kind, ok := docs.ParseKind(input.Kind)
	if !ok {
		return errorResult(errors.Errorf("unknown document kind '%s'", input.Kind)), nil
	}
	if input.Name == "" {
		return errorResult(errors.New("name is required")), nil
	}
	store, err := s.store(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	doc, err := store.Lookup(kind, input.Name)
	if err != nil {
		return errorResult(err), nil
	}
	return jsonResult(doc)
}

func (s *Server) handleMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input MatchInput
	if err := bind(request, &input); err != nil {
		return errorResult(err), nil
	}
	if input.Text == "" {
		return errorResult(errors.New("text is required")), nil
	}
	kinds, err := parseKind(input.Kind)
	if err != nil {
		return errorResult(err), nil
	}
	store, err := s.store(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	opts := s.opts.Match
	opts.Kinds = kinds
	if input.Limit > 0 {
		opts.Limit = input.Limit
	}
	if input.Threshold > 0 {
		opts.Threshold = input.Threshold
	}

	matches := match.NewEngine(store).Match(ctx, input.Text, opts)
	if matches == nil {
		matches = []match.Match{}
	}
	return jsonResult(matches)
}

func (s *Server) handlePlan(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input PlanInput
	if err := bind(request, &input); err != nil {
		return errorResult(err), nil
	}
	if input.Command == "" {
		return errorResult(errors.New("command is required")), nil
	}
	store, err := s.store(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	p, err := plan.New(store, s.opts.Plan...).Plan(ctx, input.Command, input.Arguments)
	if err != nil {
		return errorResult(err), nil
	}
	logger.G(ctx).WithField("command", p.Command).WithField("steps", len(p.Steps)).Debug("planned command over MCP")
	return jsonResult(p)
}

func (s *Server) handleLint(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var input LintInput
	if err := bind(request, &input); err != nil {
		return errorResult(err), nil
	}
	store, err := s.store(ctx)
	if err != nil {
		return errorResult(err), nil
	}

	report := lint.Run(ctx, store, s.opts.Lint)
	if input.ErrorsOnly {
		filtered := &lint.Report{Findings: []lint.Finding{}, Errors: report.Errors}
		for _, f := range report.Findings {
			if f.Severity == lint.SeverityError {
				filtered.Findings = append(filtered.Findings, f)
			}
		}
		report = filtered
	}
	if report.Findings == nil {
		report.Findings = []lint.Finding{}
	}
	return jsonResult(report)
}
