package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/price-reconciler/pkg/cache"
	"github.com/Sriram-PR/price-reconciler/pkg/config"
	"github.com/Sriram-PR/price-reconciler/pkg/models"
	"github.com/Sriram-PR/price-reconciler/pkg/orchestrate"
)

const (
	serverName    = "price-reconciler"
	serverVersion = "1.0.0"
)

// Backend is what the tools need from the reconciliation runtime
type Backend interface {
	Config() config.AppConfig
	Run(ctx context.Context, req orchestrate.Request) (*orchestrate.RunSummary, error)
	LocalCache() (*cache.Store, []models.Collection, error)
}

// ServerConfig holds configuration for the MCP server
type ServerConfig struct {
	Backend    Backend
	ConfigPath string
	Transport  string // "stdio" or "sse"
	Port       int
	Logger     *logrus.Logger
}

// Server exposes reconciliation as MCP tools
type Server struct {
	mcpServer  *server.MCPServer
	cfg        *ServerConfig
	log        *logrus.Entry
	jobManager *JobManager
}

// NewServer creates a new MCP server instance
func NewServer(cfg *ServerConfig) (*Server, error) {
	if cfg.Backend == nil {
		return nil, fmt.Errorf("Backend is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	mcpServer := server.NewMCPServer(
		serverName,
		serverVersion,
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:  mcpServer,
		cfg:        cfg,
		log:        cfg.Logger.WithField("component", "mcp"),
		jobManager: NewJobManager(),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all available MCP tools
func (s *Server) registerTools() {
	listCompetitorsTool := mcp.NewTool("list_competitors",
		mcp.WithDescription("List the configured competitor sites and how their pages are read"),
	)
	s.mcpServer.AddTool(listCompetitorsTool, s.handleListCompetitors)

	reconcileTool := mcp.NewTool("reconcile",
		mcp.WithDescription("Start a background price reconciliation of a catalog file. Returns immediately with a job ID."),
		mcp.WithString("catalog",
			mcp.Required(),
			mcp.Description("Path to the catalog (';'-separated CSV or XLSX with NomProduit and MonPrix columns)"),
		),
		mcp.WithString("competitors",
			mcp.Description("Comma-separated competitor domains (default: all configured)"),
		),
	)
	s.mcpServer.AddTool(reconcileTool, s.handleReconcile)

	getJobStatusTool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Get the status and progress of a reconcile job"),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The job ID returned by reconcile"),
		),
	)
	s.mcpServer.AddTool(getJobStatusTool, s.handleGetJobStatus)

	lookupURLTool := mcp.NewTool("lookup_url",
		mcp.WithDescription("Look up the known competitor URL and manual verification state of a product"),
		mcp.WithString("product",
			mcp.Required(),
			mcp.Description("Product name as written in the catalog"),
		),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Competitor domain"),
		),
	)
	s.mcpServer.AddTool(lookupURLTool, s.handleLookupURL)

	listVerificationTool := mcp.NewTool("list_verification",
		mcp.WithDescription("List product/competitor pairs waiting for manual verification"),
		mcp.WithString("domain",
			mcp.Description("Limit to one competitor domain (optional)"),
		),
		mcp.WithNumber("max_results",
			mcp.Description("Maximum number of entries to return (default: 50, max: 500)"),
		),
	)
	s.mcpServer.AddTool(listVerificationTool, s.handleListVerification)

	s.log.Infof("Registered %d MCP tools", 5)
}

// Run starts the MCP server with the configured transport
func (s *Server) Run() error {
	switch s.cfg.Transport {
	case "stdio":
		s.log.Info("Starting MCP server with stdio transport")
		return server.ServeStdio(s.mcpServer)
	case "sse":
		addr := fmt.Sprintf(":%d", s.cfg.Port)
		s.log.Infof("Starting MCP server with SSE transport on %s", addr)
		sseServer := server.NewSSEServer(s.mcpServer)
		return sseServer.Start(addr)
	default:
		return fmt.Errorf("unknown transport: %s (supported: stdio, sse)", s.cfg.Transport)
	}
}

// Shutdown cancels running jobs
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down MCP server...")
	s.jobManager.CancelAll()
	return nil
}
