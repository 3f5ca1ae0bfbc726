package mcp

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// New creates an MCP server with all tools and resources registered.
// history may be nil, in which case get_analysis_history is not offered.
func New(backend Backend, history History, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("FormCoach", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("FormCoach exercise form analysis. Start and stop live camera analysis, read form feedback, and upload squat or plank videos for annotated analysis."),
	)

	h := &handlers{backend: backend, history: history, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListModes, Handler: h.listModes},
		server.ServerTool{Tool: toolListExercises, Handler: h.listExercises},
		server.ServerTool{Tool: toolStartLiveAnalysis, Handler: h.startLiveAnalysis},
		server.ServerTool{Tool: toolStopLiveAnalysis, Handler: h.stopLiveAnalysis},
		server.ServerTool{Tool: toolGetVideoFeedURL, Handler: h.getVideoFeedURL},
		server.ServerTool{Tool: toolGetFeedback, Handler: h.getFeedback},
		server.ServerTool{Tool: toolUploadVideo, Handler: h.uploadVideo},
	)
	if history != nil {
		s.AddTool(toolGetAnalysisHistory, h.getAnalysisHistory)
	}

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resExerciseGuide, Handler: h.exerciseGuide},
		server.ServerResource{Resource: resModes, Handler: h.modes},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	backend Backend
	history History
	log     *slog.Logger
}

// --- Resource definitions ---

var resExerciseGuide = mcp.NewResource(
	"formcoach://exercise_guide",
	"Exercise Guide",
	mcp.WithResourceDescription("Instructions and expert demo videos for each supported exercise"),
	mcp.WithMIMEType("application/json"),
)

var resModes = mcp.NewResource(
	"formcoach://modes",
	"Analysis Modes",
	mcp.WithResourceDescription("Analysis modes offered by the backend"),
	mcp.WithMIMEType("application/json"),
)
