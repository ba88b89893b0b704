package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rmax-ai/actionflow/pkg/controller"
	"github.com/rmax-ai/actionflow/pkg/graph"
	"github.com/rmax-ai/actionflow/pkg/workflow"
)

// Editor is the controller surface exposed to MCP agents.
type Editor interface {
	Graph() *graph.Graph
	Stages() []workflow.OrderStage
	ProductID() int64
	Refresh(ctx context.Context) error
	Connect(ctx context.Context, source, target int64) error
	Disconnect(ctx context.Context, edgeID string) error
	CreateDraft(from *int64) error
	ConfirmCreate(ctx context.Context, draft workflow.Draft) error
	SelectNode(id int64) error
	UpdateSelected(ctx context.Context, fields workflow.Fields) error
	DeleteNode(ctx context.Context, id int64) error
}

const graphURI = "actionflow://graph"

// Server adapts the workflow editor to the Model Context Protocol.
type Server struct {
	mcpServer *server.MCPServer
	editor    Editor
}

// NewServer creates a new MCP server instance.
func NewServer(editor Editor, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer("actionflow", version),
		editor:    editor,
	}
	s.registerResources()
	s.registerTools()
	s.registerPrompts()
	return s
}

// Serve starts the MCP server on stdio.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcpServer)
}

// --- Resources ---

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(
		graphURI,
		"Workflow Graph",
		mcp.WithResourceDescription("Actions and directed relations of the product being edited"),
		mcp.WithMIMEType("application/json"),
	), s.handleReadGraph)
}

// --- Tools ---

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool(
		"refresh_graph",
		mcp.WithDescription("Re-read the workflow from the record store and return it."),
	), s.handleRefresh)

	s.mcpServer.AddTool(mcp.NewTool(
		"connect_actions",
		mcp.WithDescription("Add a directed relation source -> target."),
		mcp.WithNumber("source", mcp.Required(), mcp.Description("Source action id")),
		mcp.WithNumber("target", mcp.Required(), mcp.Description("Target action id")),
	), s.handleConnect)

	s.mcpServer.AddTool(mcp.NewTool(
		"disconnect_actions",
		mcp.WithDescription("Remove the directed relation source -> target."),
		mcp.WithNumber("source", mcp.Required(), mcp.Description("Source action id")),
		mcp.WithNumber("target", mcp.Required(), mcp.Description("Target action id")),
	), s.handleDisconnect)

	s.mcpServer.AddTool(mcp.NewTool(
		"create_action",
		mcp.WithDescription("Create an action, optionally connected from an existing one."),
		mcp.WithString("name", mcp.Required(), mcp.Description("Action name")),
		mcp.WithString("description", mcp.Description("Free text description")),
		mcp.WithString("state", mcp.Enum("draft", "in_progress", "done", "cancelled")),
		mcp.WithString("priority", mcp.Enum("low", "medium", "high", "urgent")),
		mcp.WithNumber("stage_id", mcp.Description("Order stage id, 0 for none")),
		mcp.WithNumber("from", mcp.Description("Connect the new action from this action id")),
		mcp.WithBoolean("is_automatic"),
		mcp.WithBoolean("completes_order_line"),
		mcp.WithBoolean("require_evidence"),
	), s.handleCreate)

	s.mcpServer.AddTool(mcp.NewTool(
		"update_action",
		mcp.WithDescription("Change fields of an action. Omitted fields are left untouched."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Action id")),
		mcp.WithString("name"),
		mcp.WithString("description"),
		mcp.WithString("state", mcp.Enum("draft", "in_progress", "done", "cancelled")),
		mcp.WithString("priority", mcp.Enum("low", "medium", "high", "urgent")),
		mcp.WithNumber("stage_id", mcp.Description("Order stage id, 0 to clear")),
		mcp.WithBoolean("is_automatic"),
		mcp.WithBoolean("completes_order_line"),
		mcp.WithBoolean("require_evidence"),
	), s.handleUpdate)

	s.mcpServer.AddTool(mcp.NewTool(
		"delete_action",
		mcp.WithDescription("Delete an action."),
		mcp.WithNumber("id", mcp.Required(), mcp.Description("Action id")),
	), s.handleDelete)
}

// --- Prompts ---

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(
		"actionflow-aware",
		mcp.WithPromptDescription("Explains how product workflows are modelled"),
	), s.handleGetPrompt)
}

// --- Handlers ---

func (s *Server) handleReadGraph(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	data, err := json.MarshalIndent(s.editor.Graph(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleRefresh(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.editor.Refresh(ctx); err != nil {
		return toolError(err), nil
	}
	return s.graphResult()
}

func (s *Server) handleConnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := mcp.ParseInt64(request, "source", 0)
	target := mcp.ParseInt64(request, "target", 0)
	if err := s.editor.Connect(ctx, source, target); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Connected %d -> %d", source, target)), nil
}

func (s *Server) handleDisconnect(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	source := mcp.ParseInt64(request, "source", 0)
	target := mcp.ParseInt64(request, "target", 0)
	if err := s.editor.Disconnect(ctx, graph.EdgeID(source, target)); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Disconnected %d -> %d", source, target)), nil
}

func (s *Server) handleCreate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var from *int64
	if _, ok := args["from"]; ok {
		id := mcp.ParseInt64(request, "from", 0)
		from = &id
	}
	if err := s.editor.CreateDraft(from); err != nil {
		return toolError(err), nil
	}

	draft := workflow.NewDraft()
	draft.Name = mcp.ParseString(request, "name", "")
	draft.Description = mcp.ParseString(request, "description", "")
	draft.State = workflow.State(mcp.ParseString(request, "state", string(workflow.StateDraft)))
	draft.Priority = workflow.Priority(mcp.ParseString(request, "priority", string(workflow.PriorityLow)))
	draft.StageID = mcp.ParseInt64(request, "stage_id", 0)
	draft.IsAutomatic = mcp.ParseBoolean(request, "is_automatic", false)
	draft.CompletesOrderLine = mcp.ParseBoolean(request, "completes_order_line", false)
	draft.RequireEvidence = mcp.ParseBoolean(request, "require_evidence", false)

	if err := s.editor.ConfirmCreate(ctx, draft); err != nil {
		return toolError(err), nil
	}
	return s.graphResult()
}

func (s *Server) handleUpdate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseInt64(request, "id", 0)
	fields := fieldsFromArgs(request)
	if fields.Empty() {
		return mcp.NewToolResultError("no fields to update"), nil
	}
	if err := s.editor.SelectNode(id); err != nil {
		return toolError(err), nil
	}
	if err := s.editor.UpdateSelected(ctx, fields); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Updated action %d", id)), nil
}

func (s *Server) handleDelete(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := mcp.ParseInt64(request, "id", 0)
	if err := s.editor.DeleteNode(ctx, id); err != nil {
		return toolError(err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Deleted action %d", id)), nil
}

func (s *Server) handleGetPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	name := request.Params.Name
	if name != "actionflow-aware" {
		return nil, fmt.Errorf("prompt not found: %s", name)
	}

	promptText := fmt.Sprintf(`You are editing the workflow of product %d.

Concepts:
- Action: one step of the workflow, with a state, a priority and an optional order stage.
- Relation: a directed link source -> target stored on the source action.
- The first action returned is the main (entry) action.

Read %s before changing anything. Use connect_actions and disconnect_actions for relations,
create_action with "from" to add a step after an existing one, and delete_action only when asked.
`, s.editor.ProductID(), graphURI)

	return mcp.NewGetPromptResult(
		"actionflow-aware",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(promptText)),
		},
	), nil
}

func (s *Server) graphResult() (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(s.editor.Graph(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

func fieldsFromArgs(request mcp.CallToolRequest) workflow.Fields {
	args := request.GetArguments()
	var f workflow.Fields
	if _, ok := args["name"]; ok {
		f.Name = workflow.Ptr(mcp.ParseString(request, "name", ""))
	}
	if _, ok := args["description"]; ok {
		f.Description = workflow.Ptr(mcp.ParseString(request, "description", ""))
	}
	if _, ok := args["state"]; ok {
		f.State = workflow.Ptr(workflow.State(mcp.ParseString(request, "state", "")))
	}
	if _, ok := args["priority"]; ok {
		f.Priority = workflow.Ptr(workflow.Priority(mcp.ParseString(request, "priority", "")))
	}
	if _, ok := args["stage_id"]; ok {
		f.StageID = workflow.Ptr(mcp.ParseInt64(request, "stage_id", 0))
	}
	if _, ok := args["is_automatic"]; ok {
		f.IsAutomatic = workflow.Ptr(mcp.ParseBoolean(request, "is_automatic", false))
	}
	if _, ok := args["completes_order_line"]; ok {
		f.CompletesOrderLine = workflow.Ptr(mcp.ParseBoolean(request, "completes_order_line", false))
	}
	if _, ok := args["require_evidence"]; ok {
		f.RequireEvidence = workflow.Ptr(mcp.ParseBoolean(request, "require_evidence", false))
	}
	return f
}

func toolError(err error) *mcp.CallToolResult {
	var opErr *controller.OpError
	if errors.As(err, &opErr) {
		return mcp.NewToolResultError(fmt.Sprintf("%s: %v", opErr.Message(), opErr.Err))
	}
	return mcp.NewToolResultError(err.Error())
}
