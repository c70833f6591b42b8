// Package mcp exposes the GOI engine as an MCP server so agent hosts
// can drive goal sessions as tools.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

// StatusResponse is the structured result of goi_status.
type StatusResponse struct {
	SessionID  string             `json:"session_id" jsonschema_description:"The session identifier"`
	Status     domain.LoopStatus  `json:"status" jsonschema_description:"Current loop status"`
	Goal       string             `json:"goal,omitempty" jsonschema_description:"The goal being pursued"`
	Mode       domain.Mode        `json:"mode" jsonschema_description:"Interaction mode"`
	Controller domain.Controller  `json:"controller" jsonschema_description:"Who holds control right now"`
	Todo       *domain.TodoList   `json:"todo,omitempty" jsonschema_description:"The current todo list"`
	Checkpoint *domain.Checkpoint `json:"checkpoint,omitempty" jsonschema_description:"Open checkpoint, if any"`
}

// Server wraps the session manager and exposes it as an MCP server.
type Server struct {
	manager   *session.Manager
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// NewServer creates an MCP server around a session manager.
func NewServer(manager *session.Manager, version string, opts ...Option) *Server {
	s := &Server{
		manager:   manager,
		mcpServer: server.NewMCPServer("goi-mcp", version),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	startTool := mcp.NewTool("goi_start",
		mcp.WithDescription("Start a goal session: decompose the goal into a todo list. Execution then proceeds one goi_step at a time. Creates the session if it does not exist."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("goal", mcp.Required(), mcp.Description("The goal to pursue, in natural language")),
		mcp.WithString("mode", mcp.Description("Interaction mode for a new session: manual, assisted or auto (default assisted)")),
		mcp.WithString("context", mcp.Description("JSON object of planning context (optional)")),
		mcp.WithOutputSchema[runtime.StartResult](),
	)
	s.mcpServer.AddTool(startTool, mcp.NewStructuredToolHandler(s.handleStart))

	stepTool := mcp.NewTool("goi_step",
		mcp.WithDescription("Advance the session by one todo item, or report the open checkpoint."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[runtime.StepResult](),
	)
	s.mcpServer.AddTool(stepTool, mcp.NewStructuredToolHandler(s.handleStep))

	approveTool := mcp.NewTool("goi_approve",
		mcp.WithDescription("Approve the open checkpoint and resume execution."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checkpoint id or owning item id")),
		mcp.WithString("feedback", mcp.Description("Optional human feedback passed to the executor")),
		mcp.WithString("selected_resource_id", mcp.Description("Resource chosen from the checkpoint options")),
		mcp.WithOutputSchema[runtime.StepResult](),
	)
	s.mcpServer.AddTool(approveTool, mcp.NewStructuredToolHandler(s.handleApprove))

	rejectTool := mcp.NewTool("goi_reject",
		mcp.WithDescription("Reject the open checkpoint. The item is skipped and execution continues. A reason is required."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithString("id", mcp.Required(), mcp.Description("Checkpoint id or owning item id")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Why the step was rejected")),
		mcp.WithOutputSchema[runtime.StepResult](),
	)
	s.mcpServer.AddTool(rejectTool, mcp.NewStructuredToolHandler(s.handleReject))

	statusTool := mcp.NewTool("goi_status",
		mcp.WithDescription("Report the session's loop status, todo list and open checkpoint."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session identifier")),
		mcp.WithOutputSchema[StatusResponse](),
	)
	s.mcpServer.AddTool(statusTool, mcp.NewStructuredToolHandler(s.handleStatus))
}

func (s *Server) handleStart(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (runtime.StartResult, error) {
	id, _ := args["session_id"].(string)
	goal, _ := args["goal"].(string)

	planCtx := map[string]any{}
	if raw, ok := args["context"].(string); ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &planCtx); err != nil {
			return runtime.StartResult{}, fmt.Errorf("context must be a JSON object: %w", err)
		}
	}

	sess, err := s.ensureSession(ctx, id, args)
	if err != nil {
		return runtime.StartResult{}, err
	}
	return sess.Start(ctx, goal, planCtx), nil
}

func (s *Server) handleStep(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (runtime.StepResult, error) {
	sess, err := s.resume(ctx, args)
	if err != nil {
		return runtime.StepResult{}, err
	}
	return sess.Step(ctx)
}

func (s *Server) handleApprove(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (runtime.StepResult, error) {
	sess, err := s.resume(ctx, args)
	if err != nil {
		return runtime.StepResult{}, err
	}

	req := runtime.ApproveRequest{}
	req.ID, _ = args["id"].(string)
	req.Feedback, _ = args["feedback"].(string)
	req.SelectedResourceID, _ = args["selected_resource_id"].(string)

	return sess.Approve(ctx, req)
}

func (s *Server) handleReject(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (runtime.StepResult, error) {
	sess, err := s.resume(ctx, args)
	if err != nil {
		return runtime.StepResult{}, err
	}

	id, _ := args["id"].(string)
	reason, _ := args["reason"].(string)

	return sess.Reject(ctx, id, reason)
}

func (s *Server) handleStatus(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (StatusResponse, error) {
	sess, err := s.resume(ctx, args)
	if err != nil {
		return StatusResponse{}, err
	}

	loop := sess.Loop()
	return StatusResponse{
		SessionID:  sess.ID(),
		Status:     loop.Status(),
		Goal:       loop.Goal(),
		Mode:       sess.Control().Mode(),
		Controller: sess.Control().Controller(),
		Todo:       loop.TodoList(),
		Checkpoint: loop.OpenCheckpoint(),
	}, nil
}

// ensureSession resumes an existing session or creates one in the
// requested mode.
func (s *Server) ensureSession(ctx context.Context, id string, args map[string]any) (*session.Session, error) {
	sess, err := s.manager.Resume(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, domain.ErrSessionNotFound) {
		return nil, err
	}

	mode := domain.ModeAssisted
	if m, ok := args["mode"].(string); ok && m != "" {
		mode = domain.Mode(m)
	}
	return s.manager.Create(ctx, id, mode)
}

func (s *Server) resume(ctx context.Context, args map[string]any) (*session.Session, error) {
	id, _ := args["session_id"].(string)
	return s.manager.Resume(ctx, id)
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource("goi://sessions", "Active Sessions",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.manager.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		jsonBytes, _ := json.Marshal(ids)

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "goi://sessions",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
