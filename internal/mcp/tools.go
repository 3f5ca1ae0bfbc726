package mcp

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/upload"
)

// --- Tool definitions ---

var toolListModes = mcp.NewTool("list_modes",
	mcp.WithDescription("List the analysis modes offered by the backend (e.g. Beginner, Pro)."),
)

var toolListExercises = mcp.NewTool("list_exercises",
	mcp.WithDescription("List the supported exercises with descriptions and images."),
)

var toolStartLiveAnalysis = mcp.NewTool("start_live_analysis",
	mcp.WithDescription("Select a mode and exercise on the backend, then start the camera. Returns the live video feed URL."),
	mcp.WithString("mode", mcp.Description("Analysis mode id. Defaults to Beginner.")),
	mcp.WithString("exercise", mcp.Description("Exercise type. Defaults to squat."), mcp.Enum("squat", "plank")),
)

var toolStopLiveAnalysis = mcp.NewTool("stop_live_analysis",
	mcp.WithDescription("Stop the backend camera and live analysis."),
)

var toolGetVideoFeedURL = mcp.NewTool("get_video_feed_url",
	mcp.WithDescription("Get the MJPEG live feed URL for an exercise. Empty when the backend cannot be reached."),
	mcp.WithString("exercise", mcp.Description("Exercise type. Defaults to squat."), mcp.Enum("squat", "plank")),
)

var toolGetFeedback = mcp.NewTool("get_feedback",
	mcp.WithDescription("Get one form feedback hint for the exercise being analyzed."),
	mcp.WithString("exercise", mcp.Description("Exercise type. Defaults to squat."), mcp.Enum("squat", "plank")),
)

var toolUploadVideo = mcp.NewTool("upload_video",
	mcp.WithDescription("Upload a local video file for analysis. Returns URLs of the original and the annotated video."),
	mcp.WithString("path", mcp.Required(), mcp.Description("Path of a local video file (mp4, mov, webm, ...)")),
	mcp.WithString("mode", mcp.Description("Analysis mode id. Defaults to Beginner.")),
	mcp.WithString("exercise", mcp.Description("Exercise type. Defaults to squat."), mcp.Enum("squat", "plank")),
)

var toolGetAnalysisHistory = mcp.NewTool("get_analysis_history",
	mcp.WithDescription("List recent uploads and live sessions, newest first."),
	mcp.WithString("kind", mcp.Description("Filter by kind."), mcp.Enum("upload", "live")),
	mcp.WithString("exercise", mcp.Description("Filter by exercise."), mcp.Enum("squat", "plank")),
	mcp.WithNumber("limit", mcp.Description("Maximum entries. Defaults to 50.")),
)

// exerciseArg reads the optional exercise argument.
func exerciseArg(req mcp.CallToolRequest) (models.ExerciseType, *mcp.CallToolResult) {
	e, err := models.ParseExerciseType(req.GetString("exercise", ""))
	if err != nil {
		return "", mcp.NewToolResultError(err.Error())
	}
	return e, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	result, err := mcp.NewToolResultJSON(v)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// --- Tool handlers ---

func (h *handlers) listModes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"modes": h.backend.ListModes(ctx)})
}

func (h *handlers) listExercises(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(map[string]any{"exercises": h.backend.ListExercises(ctx)})
}

func (h *handlers) startLiveAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, errResult := exerciseArg(req)
	if errResult != nil {
		return errResult, nil
	}
	mode := req.GetString("mode", models.DefaultMode)

	if err := h.backend.StartLiveAnalysis(ctx, mode, exercise); err != nil {
		h.log.Error("mcp start_live_analysis", "error", err)
		return mcp.NewToolResultError("starting live analysis failed: " + err.Error()), nil
	}

	return jsonResult(map[string]string{
		"status":         "started",
		"mode":           mode,
		"exercise":       string(exercise),
		"video_feed_url": h.backend.VideoFeedURL(ctx, exercise),
	})
}

func (h *handlers) stopLiveAnalysis(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := h.backend.StopLiveAnalysis(ctx); err != nil {
		h.log.Error("mcp stop_live_analysis", "error", err)
		return mcp.NewToolResultError("stopping live analysis failed: " + err.Error()), nil
	}
	return jsonResult(map[string]string{"status": "stopped"})
}

func (h *handlers) getVideoFeedURL(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, errResult := exerciseArg(req)
	if errResult != nil {
		return errResult, nil
	}
	return jsonResult(map[string]string{"url": h.backend.VideoFeedURL(ctx, exercise)})
}

func (h *handlers) getFeedback(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	exercise, errResult := exerciseArg(req)
	if errResult != nil {
		return errResult, nil
	}
	msg, err := h.backend.Feedback(ctx, exercise)
	if err != nil {
		h.log.Error("mcp get_feedback", "error", err)
		return mcp.NewToolResultError("feedback failed: " + err.Error()), nil
	}
	return jsonResult(map[string]string{"exercise": string(exercise), "feedback": msg})
}

func (h *handlers) uploadVideo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError("path parameter is required"), nil
	}
	exercise, errResult := exerciseArg(req)
	if errResult != nil {
		return errResult, nil
	}
	mode := req.GetString("mode", models.DefaultMode)

	contentType, ok := upload.VideoContentType(path)
	if !ok {
		return mcp.NewToolResultError("not a video file: " + filepath.Base(path)), nil
	}

	f, err := os.Open(path)
	if err != nil {
		return mcp.NewToolResultError("opening video: " + err.Error()), nil
	}
	defer f.Close()

	res, err := h.backend.UploadVideo(ctx, fitness.VideoFile{
		Name:        filepath.Base(path),
		ContentType: contentType,
		Body:        f,
	}, mode, exercise)
	if err != nil {
		var upErr *fitness.UploadError
		if errors.As(err, &upErr) {
			return mcp.NewToolResultError("Error: " + upErr.Message), nil
		}
		h.log.Error("mcp upload_video", "error", err)
		return mcp.NewToolResultError("upload failed: " + err.Error()), nil
	}

	return jsonResult(map[string]string{
		"status":    "success",
		"original":  res.Original,
		"processed": res.Processed,
	})
}

func (h *handlers) getAnalysisHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	f := storage.HistoryFilter{
		Kind:  models.AnalysisKind(req.GetString("kind", "")),
		Limit: req.GetInt("limit", 0),
	}
	if ex := req.GetString("exercise", ""); ex != "" {
		exercise, errResult := exerciseArg(req)
		if errResult != nil {
			return errResult, nil
		}
		f.Exercise = exercise
	}

	logs, err := h.history.QueryAnalysisLogs(ctx, f)
	if err != nil {
		h.log.Error("mcp get_analysis_history", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	return jsonResult(logs)
}
