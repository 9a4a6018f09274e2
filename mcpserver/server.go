package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/isdmx/judgebox/config"
	"github.com/isdmx/judgebox/executor"
	"github.com/isdmx/judgebox/model"
	"github.com/isdmx/judgebox/pipeline"
)

// Transports.
const (
	TransportNone  = "none"
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Pipeline is the part of *pipeline.Manager the MCP tools need.
type Pipeline interface {
	Enqueue(sub model.Submission) error
	Status(ctx context.Context) pipeline.Status
}

// MCPServer exposes submission intake and executor status as MCP tools.
type MCPServer struct {
	logger    *zap.Logger
	pipeline  Pipeline
	transport string
	addr      string

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
	cancel     context.CancelFunc
}

// New creates an MCPServer serving over transport. addr is used by the http
// transport only.
func New(logger *zap.Logger, p Pipeline, transport, addr string) *MCPServer {
	s := &MCPServer{
		logger:    logger,
		pipeline:  p,
		transport: transport,
		addr:      addr,
	}

	s.mcpServer = server.NewMCPServer("judgebox-executor", "1.0.0", server.WithToolCapabilities(false))
	s.registerSubmitTool()
	s.registerStatusTool()
	return s
}

// NewFromConfig creates an MCPServer using the mcp section of cfg.
func NewFromConfig(logger *zap.Logger, cfg *config.Config, p Pipeline) *MCPServer {
	logger = logger.Named("mcp")
	logger.Info("mcp configuration loaded",
		zap.String("mcp.transport", cfg.MCP.Transport),
		zap.Int("mcp.http_port", cfg.MCP.HTTPPort))
	return New(logger, p, cfg.MCP.Transport, fmt.Sprintf(":%d", cfg.MCP.HTTPPort))
}

func (s *MCPServer) registerSubmitTool() {
	tool := mcp.Tool{
		Name:        "submit_execution",
		Description: "Queue a submission for compilation and evaluation against a problem's test cases. The outcome is reported to the coordinator.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"id": map[string]any{
					"type":        "integer",
					"description": "Submission identifier assigned by the coordinator",
				},
				"language": map[string]any{
					"type":        "string",
					"description": "Source language; see executor_status for the supported set",
				},
				"problem": map[string]any{
					"type":        "string",
					"description": "Name of the problem to evaluate against",
				},
				"entry_point": map[string]any{
					"type":        "string",
					"description": "Main class or module to run",
				},
				"files": map[string]any{
					"type":        "array",
					"description": "Source files",
					"items": map[string]any{
						"type": "object",
						"properties": map[string]any{
							"filename": map[string]any{"type": "string"},
							"contents": map[string]any{"type": "string"},
						},
						"required": []string{"filename", "contents"},
					},
				},
			},
			Required: []string{"id", "language", "problem", "entry_point", "files"},
		},
	}

	s.mcpServer.AddTool(tool, s.handleSubmit)
}

func (s *MCPServer) registerStatusTool() {
	tool := mcp.Tool{
		Name:        "executor_status",
		Description: "Report the executor's name, supported languages, available problems and queued submission IDs",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{},
		},
	}

	s.mcpServer.AddTool(tool, s.handleStatus)
}

type submitArgs struct {
	ID         int64  `json:"id"`
	Language   string `json:"language"`
	Problem    string `json:"problem"`
	EntryPoint string `json:"entry_point"`
	Files      []struct {
		Filename string `json:"filename"`
		Contents string `json:"contents"`
	} `json:"files"`
}

func (a submitArgs) submission() model.Submission {
	sub := model.Submission{
		ID:         a.ID,
		Language:   a.Language,
		Problem:    a.Problem,
		EntryPoint: a.EntryPoint,
		Files:      make([]model.SubmissionFile, 0, len(a.Files)),
	}
	for _, f := range a.Files {
		sub.Files = append(sub.Files, model.SubmissionFile{Filename: f.Filename, Contents: []byte(f.Contents)})
	}
	return sub
}

func (s *MCPServer) handleSubmit(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args submitArgs
	if err := request.BindArguments(&args); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if args.Language == "" || args.Problem == "" || args.EntryPoint == "" || len(args.Files) == 0 {
		return nil, errors.New("language, problem, entry_point and files are required")
	}

	if err := s.pipeline.Enqueue(args.submission()); err != nil {
		s.logger.Warn("submission rejected", zap.Int64("id", args.ID), zap.Error(err))
		if errors.Is(err, executor.ErrNoExecutorAvailable) {
			return textResult(fmt.Sprintf("Not accepted: %v", err), true), nil
		}
		return textResult(fmt.Sprintf("Queueing failed: %v", err), true), nil
	}

	s.logger.Info("submission accepted", zap.Int64("id", args.ID), zap.String("language", args.Language))
	return textResult(fmt.Sprintf(`{"id":%d,"status":"queued"}`, args.ID), false), nil
}

func (s *MCPServer) handleStatus(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	body, err := json.Marshal(s.pipeline.Status(ctx))
	if err != nil {
		return nil, fmt.Errorf("encode status: %w", err)
	}
	return textResult(string(body), false), nil
}

func textResult(text string, isError bool) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{
				Type: "text",
				Text: text,
			},
		},
		IsError: isError,
	}
}

// Start serves the configured transport in the background.
func (s *MCPServer) Start(context.Context) error {
	switch s.transport {
	case TransportNone, "":
		s.logger.Info("MCP server disabled")
		return nil
	case TransportStdio:
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.logger.Info("starting MCP server on stdio")
		go func() {
			err := server.NewStdioServer(s.mcpServer).Listen(ctx, os.Stdin, os.Stdout)
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("MCP stdio server stopped", zap.Error(err))
			}
		}()
		return nil
	case TransportHTTP:
		s.httpServer = server.NewStreamableHTTPServer(s.mcpServer)
		s.logger.Info("starting MCP server on HTTP", zap.String("addr", s.addr))
		go func() {
			if err := s.httpServer.Start(s.addr); err != nil {
				s.logger.Error("MCP http server stopped", zap.Error(err))
			}
		}()
		return nil
	default:
		return fmt.Errorf("unsupported MCP transport: %s", s.transport)
	}
}

// Stop ends the running transport.
func (s *MCPServer) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
