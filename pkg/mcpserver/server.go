// Package mcpserver exposes the document store, matcher, planner and linter
// to a hosting assistant as read-only MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"

	"github.com/jingkaihe/plugdoc/pkg/docs"
	"github.com/jingkaihe/plugdoc/pkg/lint"
	"github.com/jingkaihe/plugdoc/pkg/logger"
	"github.com/jingkaihe/plugdoc/pkg/match"
	"github.com/jingkaihe/plugdoc/pkg/plan"
	"github.com/jingkaihe/plugdoc/pkg/schema"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
)

// Name is the server name announced during initialization
const Name = "plugdoc"

// Loader returns a freshly loaded store. A non-nil store with an error means
// some documents failed to parse.
type Loader func(ctx context.Context) (*docs.Store, error)

// Options configures the tools
type Options struct {
	Version string
	Match   match.Options
	Lint    lint.Config
	Plan    []plan.Option
}

// Server serves plugdoc tools over MCP
type Server struct {
	load Loader
	opts Options
	mcp  *server.MCPServer
}

type tool struct {
	def    mcp.Tool
	handle server.ToolHandlerFunc
}

// New creates a server whose tools reload the bundle through load on every call
func New(load Loader, opts Options) (*Server, error) {
	if load == nil {
		return nil, errors.New("a document loader is required")
	}
	if opts.Version == "" {
		opts.Version = "dev"
	}

	s := &Server{load: load, opts: opts}
	s.mcp = server.NewMCPServer(
		Name,
		opts.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	tools, err := s.tools()
	if err != nil {
		return nil, err
	}
	for _, t := range tools {
		s.mcp.AddTool(t.def, t.handle)
	}
	return s, nil
}

// MCP returns the underlying MCP server
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger.G(ctx).Info("serving MCP tools over stdio")
	stdio := server.NewStdioServer(s.mcp)
	if err := stdio.Listen(ctx, in, out); err != nil && !errors.Is(err, context.Canceled) {
		return errors.Wrap(err, "MCP stdio server failed")
	}
	return nil
}

func (s *Server) tools() ([]tool, error) {
	var out []tool
	for _, t := range []struct {
		name        string
		description string
		schema      func() ([]byte, error)
		handle      server.ToolHandlerFunc
	}{
		{"list_documents", "List the commands, agents and skills in the plugin bundle.", inputSchema[ListDocumentsInput], s.handleListDocuments},
		{"show_document", "Show one parsed command, agent or skill document.", inputSchema[ShowDocumentInput], s.handleShowDocument},
		{"match", "Find the skills and agents that apply to a free-text request.", inputSchema[MatchInput], s.handleMatch},
		{"plan", "Plan the step by step dispatch of a slash command without writing any files.", inputSchema[PlanInput], s.handlePlan},
		{"lint", "Check the plugin bundle for broken references and malformed documents.", inputSchema[LintInput], s.handleLint},
	} {
		raw, err := t.schema()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to generate input schema for %s", t.name)
		}
		out = append(out, tool{
			def:    mcp.NewToolWithRawSchema(t.name, t.description, raw),
			handle: t.handle,
		})
	}
	return out, nil
}

func inputSchema[T any]() ([]byte, error) {
	return json.Marshal(schema.Generate[T]())
}

// bind decodes the tool arguments into input
func bind(request mcp.CallToolRequest, input any) error {
	raw, err := json.Marshal(request.Params.Arguments)
	if err != nil {
		return errors.Wrap(err, "failed to encode tool arguments")
	}
	if string(raw) == "null" {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, input), "invalid tool arguments")
}

// store loads the bundle, tolerating per-document parse failures
func (s *Server) store(ctx context.Context) (*docs.Store, error) {
	store, err := s.load(ctx)
	if store == nil {
		if err == nil {
			err = errors.New("no documents loaded")
		}
		return nil, err
	}
	if err != nil {
		logger.G(ctx).WithError(err).Warn("some documents failed to load")
	}
	return store, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode tool result")
	}
	return mcp.NewToolResultText(string(b)), nil
}

func errorResult(err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(err.Error())
}

const instructions = `plugdoc indexes a plugin bundle of slash commands, subagents and skills.
Use list_documents and show_document to browse it, match to find the skills and agents
relevant to a request, plan to see which subagent performs each step of a command and
lint to find broken references. Every tool is read-only.`
