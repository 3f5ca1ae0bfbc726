package server

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"testing"
)

func postForm(s *Server, path string, form url.Values) string {
	rec := do(s, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	return rec.Body.String()
}

func TestLegacyLiveStartStop(t *testing.T) {
	backend := newFakeBackend(t)
	s := newTestServer(t, backend)

	body := do(s, http.MethodGet, "/legacy/live_stream", nil, "").Body.String()
	if !strings.Contains(body, cameraPlaceholder) {
		t.Error("initial page should show the placeholder")
	}

	body = postForm(s, "/legacy/live_stream/start", url.Values{"mode": {"Pro"}, "active": {"false"}})
	if !strings.Contains(body, `src="/video_feed?t=1700000000000"`) {
		t.Errorf("start: feed not shown\n%s", body)
	}
	if !strings.Contains(body, `name="active" value="true"`) {
		t.Error("start: stream not marked active")
	}
	if got := backend.Calls(); len(got) != 2 || got[0] != "set_mode:Pro" || got[1] != "start_camera" {
		t.Errorf("calls = %v", got)
	}

	body = postForm(s, "/legacy/live_stream/stop", url.Values{"mode": {"Pro"}, "active": {"true"}})
	if !strings.Contains(body, cameraPlaceholder) {
		t.Error("stop: placeholder not restored")
	}
	if backend.count("stop_camera") != 1 {
		t.Errorf("stop_camera calls = %d, want 1", backend.count("stop_camera"))
	}
}

// TestLegacyStopInactive verifies stop is a no-op when the stream is not running.
func TestLegacyStopInactive(t *testing.T) {
	backend := newFakeBackend(t)
	s := newTestServer(t, backend)

	postForm(s, "/legacy/live_stream/stop", url.Values{"active": {"false"}})
	if len(backend.Calls()) != 0 {
		t.Errorf("calls = %v, want none", backend.Calls())
	}
}

func TestLegacyUploadMissingFile(t *testing.T) {
	backend := newFakeBackend(t)
	s := newTestServer(t, backend)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("mode", "Pro")
	_ = mw.Close()

	rec := do(s, http.MethodPost, "/legacy/upload_video", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Please select a video file") {
		t.Error("missing-file flash not shown")
	}
	if backend.count("upload") != 0 {
		t.Error("backend upload must not be called")
	}
}

func TestLegacyUploadBackendError(t *testing.T) {
	backend := newFakeBackend(t)
	backend.uploadStatus = "error"
	backend.uploadMsg = "No selected file"
	s := newTestServer(t, backend)

	body, ctype := multipartFile(t, "file", "lift.mp4", "video/mp4", "frames", map[string]string{"mode": "Beginner"})
	rec := do(s, http.MethodPost, "/legacy/upload_video", body, ctype)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("status = %d, want 422", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Error: No selected file") {
		t.Error("backend message not shown")
	}
}

// TestLegacyUploadSuccess verifies the result section shows cache-busted
// media and a download named after the upload.
func TestLegacyUploadSuccess(t *testing.T) {
	s := newTestServer(t, newFakeBackend(t))

	body, ctype := multipartFile(t, "file", "lift.mp4", "video/mp4", "frames", map[string]string{"mode": "Pro"})
	rec := do(s, http.MethodPost, "/legacy/upload_video", body, ctype)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	page := rec.Body.String()
	for _, want := range []string{
		`src="/uploads/lift.mp4?t=1700000000000"`,
		`src="/outputs/analyzed_lift.mp4?t=1700000000000"`,
		`href="/outputs/analyzed_lift.mp4"`,
		`download="analyzed_lift.mp4"`,
		"Video processed successfully",
		`value="Pro" checked`,
	} {
		if !strings.Contains(page, want) {
			t.Errorf("page missing %q", want)
		}
	}
}

func TestCacheBusted(t *testing.T) {
	s := newTestServer(t, newFakeBackend(t))
	tests := []struct {
		in, want string
	}{
		{"/video_feed", "/video_feed?t=1700000000000"},
		{"/video_feed?exercise=plank", "/video_feed?exercise=plank&t=1700000000000"},
	}
	for _, tt := range tests {
		if got := s.cacheBusted(tt.in); got != tt.want {
			t.Errorf("cacheBusted(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
