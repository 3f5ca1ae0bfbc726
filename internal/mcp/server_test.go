package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	startErr error
	upload   models.UploadResult
	upErr    error
	uploaded string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeBackend) ListModes(context.Context) []models.Mode {
	f.record("modes")
	return []models.Mode{{ID: "Beginner", Name: "Beginner Mode"}, {ID: "Pro", Name: "Pro Mode"}}
}

func (f *fakeBackend) ListExercises(context.Context) []models.Exercise {
	f.record("exercises")
	return models.DefaultCatalog("http://backend")
}

func (f *fakeBackend) StartLiveAnalysis(_ context.Context, mode string, exercise models.ExerciseType) error {
	f.record("start:" + mode + ":" + string(exercise))
	return f.startErr
}

func (f *fakeBackend) StopLiveAnalysis(context.Context) error {
	f.record("stop")
	return nil
}

func (f *fakeBackend) VideoFeedURL(_ context.Context, exercise models.ExerciseType) string {
	return "http://backend/video_feed?exercise=" + string(exercise)
}

func (f *fakeBackend) Feedback(_ context.Context, exercise models.ExerciseType) (string, error) {
	return fitness.CannedMessages(exercise)[0], nil
}

func (f *fakeBackend) UploadVideo(_ context.Context, file fitness.VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error) {
	b, _ := io.ReadAll(file.Body)
	f.mu.Lock()
	f.uploaded = file.Name + ":" + file.ContentType + ":" + string(b)
	f.mu.Unlock()
	return f.upload, f.upErr
}

type fakeHistory struct {
	filter storage.HistoryFilter
}

func (f *fakeHistory) QueryAnalysisLogs(_ context.Context, filter storage.HistoryFilter) ([]models.AnalysisLog, error) {
	f.filter = filter
	return []models.AnalysisLog{{ID: 1, Kind: models.KindLive, Exercise: models.Squat, Status: "success"}}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content type = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

// TestStartLiveAnalysis verifies defaults and that the feed URL is returned.
func TestStartLiveAnalysis(t *testing.T) {
	b := &fakeBackend{}
	h := &handlers{backend: b, log: quietLogger()}

	res, err := h.startLiveAnalysis(context.Background(), callTool(map[string]any{"exercise": "plank"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var got map[string]string
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatal(err)
	}
	if got["video_feed_url"] != "http://backend/video_feed?exercise=plank" || got["mode"] != "Beginner" {
		t.Errorf("result = %v", got)
	}
	if len(b.calls) != 1 || b.calls[0] != "start:Beginner:plank" {
		t.Errorf("calls = %v", b.calls)
	}
}

func TestStartLiveAnalysisFailure(t *testing.T) {
	b := &fakeBackend{startErr: errors.New("camera busy")}
	h := &handlers{backend: b, log: quietLogger()}

	res, _ := h.startLiveAnalysis(context.Background(), callTool(nil))
	if !res.IsError || !strings.Contains(resultText(t, res), "camera busy") {
		t.Errorf("expected tool error, got %+v", res)
	}
}

func TestInvalidExercise(t *testing.T) {
	h := &handlers{backend: &fakeBackend{}, log: quietLogger()}
	res, _ := h.getFeedback(context.Background(), callTool(map[string]any{"exercise": "yoga"}))
	if !res.IsError {
		t.Error("expected error for unknown exercise")
	}
}

func TestGetFeedback(t *testing.T) {
	h := &handlers{backend: &fakeBackend{}, log: quietLogger()}
	res, _ := h.getFeedback(context.Background(), callTool(map[string]any{"exercise": "squat"}))
	if !strings.Contains(resultText(t, res), "Keep your back straight") {
		t.Errorf("result = %s", resultText(t, res))
	}
}

// TestUploadVideo verifies a local video is streamed with its MIME type.
func TestUploadVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lift.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := &fakeBackend{upload: models.UploadResult{
		Original:  "http://backend/uploads/lift.mp4",
		Processed: "http://backend/outputs/analyzed_lift.mp4",
	}}
	h := &handlers{backend: b, log: quietLogger()}

	res, _ := h.uploadVideo(context.Background(), callTool(map[string]any{"path": path, "mode": "Pro"}))
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if !strings.Contains(resultText(t, res), "analyzed_lift.mp4") {
		t.Errorf("result = %s", resultText(t, res))
	}
	if b.uploaded != "lift.mp4:video/mp4:frames" {
		t.Errorf("uploaded = %q", b.uploaded)
	}
}

func TestUploadVideoRejectsNonVideo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}
	b := &fakeBackend{}
	h := &handlers{backend: b, log: quietLogger()}

	res, _ := h.uploadVideo(context.Background(), callTool(map[string]any{"path": path}))
	if !res.IsError {
		t.Error("expected error for non-video")
	}
	if b.uploaded != "" {
		t.Error("backend must not receive non-video files")
	}
}

func TestUploadVideoBackendError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lift.mp4")
	if err := os.WriteFile(path, []byte("frames"), 0o644); err != nil {
		t.Fatal(err)
	}
	h := &handlers{backend: &fakeBackend{upErr: &fitness.UploadError{Message: "Invalid file type"}}, log: quietLogger()}

	res, _ := h.uploadVideo(context.Background(), callTool(map[string]any{"path": path}))
	if !res.IsError || resultText(t, res) != "Error: Invalid file type" {
		t.Errorf("result = %+v", res)
	}
}

func TestUploadVideoMissingPath(t *testing.T) {
	h := &handlers{backend: &fakeBackend{}, log: quietLogger()}
	res, _ := h.uploadVideo(context.Background(), callTool(map[string]any{}))
	if !res.IsError {
		t.Error("expected error when path is missing")
	}
}

func TestGetAnalysisHistory(t *testing.T) {
	hist := &fakeHistory{}
	h := &handlers{backend: &fakeBackend{}, history: hist, log: quietLogger()}

	res, _ := h.getAnalysisHistory(context.Background(), callTool(map[string]any{
		"kind":     "live",
		"exercise": "squat",
		"limit":    float64(10),
	}))
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	want := storage.HistoryFilter{Kind: models.KindLive, Exercise: models.Squat, Limit: 10}
	if hist.filter != want {
		t.Errorf("filter = %+v, want %+v", hist.filter, want)
	}
}

// TestToolsRegistered verifies the tool list, with and without a journal.
func TestToolsRegistered(t *testing.T) {
	list := func(history History) string {
		s := New(&fakeBackend{}, history, "test", quietLogger())
		resp := s.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
		data, err := json.Marshal(resp)
		if err != nil {
			t.Fatal(err)
		}
		return string(data)
	}

	out := list(nil)
	for _, name := range []string{"list_modes", "list_exercises", "start_live_analysis", "stop_live_analysis", "get_video_feed_url", "get_feedback", "upload_video"} {
		if !strings.Contains(out, `"`+name+`"`) {
			t.Errorf("tools/list missing %s", name)
		}
	}
	if strings.Contains(out, "get_analysis_history") {
		t.Error("history tool offered without a journal")
	}
	if !strings.Contains(list(&fakeHistory{}), "get_analysis_history") {
		t.Error("history tool missing with a journal")
	}
}

func TestExerciseGuideResource(t *testing.T) {
	h := &handlers{backend: &fakeBackend{}, log: quietLogger()}
	var req mcp.ReadResourceRequest
	req.Params.URI = "formcoach://exercise_guide"

	contents, err := h.exerciseGuide(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	text := contents[0].(mcp.TextResourceContents).Text
	if !strings.Contains(text, "plank_expert.mp4") || !strings.Contains(text, "/exercises/squat/live") {
		t.Errorf("guide = %s", text)
	}
}
