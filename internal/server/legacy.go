package server

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
)

// cameraPlaceholder is shown while the legacy live stream is off.
const cameraPlaceholder = "/static/img/camera-placeholder.jpg"

// legacyModes are the fixed radio choices of the legacy live page.
var legacyModes = []models.Mode{
	{ID: "Beginner", Name: "Beginner"},
	{ID: "Pro", Name: "Pro"},
}

type legacyLivePage struct {
	Modes   []models.Mode
	Mode    string
	Active  bool
	FeedURL string
}

type legacyUploadPage struct {
	Modes        []models.Mode
	Mode         string
	Original     string
	Processed    string
	DownloadURL  string
	DownloadName string
}

func (s *Server) handleLegacyIndex(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "legacy/index.html", "Legacy tools", nil, nil)
}

func (s *Server) handleLegacyLiveStream(w http.ResponseWriter, r *http.Request) {
	s.renderLegacyLive(w, r, nil, legacyLivePage{Mode: models.DefaultMode, FeedURL: cameraPlaceholder})
}

func (s *Server) renderLegacyLive(w http.ResponseWriter, r *http.Request, flash *FlashMessage, data legacyLivePage) {
	data.Modes = legacyModes
	s.page(w, r, "legacy/live_stream.html", "Live stream", flash, data)
}

// cacheBusted appends t=<unix millis> to path.
func (s *Server) cacheBusted(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "t=" + strconv.FormatInt(s.now().UnixMilli(), 10)
}

// handleLegacyStart sets the mode and starts the camera. It also serves
// mode changes while the stream is active.
func (s *Server) handleLegacyStart(w http.ResponseWriter, r *http.Request) {
	mode := r.FormValue("mode")
	if mode == "" {
		mode = models.DefaultMode
	}
	wasActive := r.FormValue("active") == "true"
	page := legacyLivePage{Mode: mode, Active: wasActive, FeedURL: cameraPlaceholder}
	if wasActive {
		page.FeedURL = s.cacheBusted("/video_feed")
	}

	if _, err := s.client.SetMode(r.Context(), mode, ""); err != nil {
		s.log.Error("legacy set mode failed", "error", err)
		s.renderLegacyLive(w, r, &FlashMessage{Type: "error", Message: "Error setting mode: " + err.Error()}, page)
		return
	}
	status, err := s.client.StartCamera(r.Context(), "")
	if err != nil {
		s.log.Error("legacy start camera failed", "error", err)
		s.renderLegacyLive(w, r, &FlashMessage{Type: "error", Message: "Error starting camera: " + err.Error()}, page)
		return
	}
	if status == "started" {
		page.Active = true
		page.FeedURL = s.cacheBusted("/video_feed")
	}
	s.renderLegacyLive(w, r, nil, page)
}

// handleLegacyStop stops the camera when the stream is active.
func (s *Server) handleLegacyStop(w http.ResponseWriter, r *http.Request) {
	mode := r.FormValue("mode")
	if mode == "" {
		mode = models.DefaultMode
	}
	page := legacyLivePage{Mode: mode, FeedURL: cameraPlaceholder}
	if r.FormValue("active") != "true" {
		s.renderLegacyLive(w, r, nil, page)
		return
	}

	status, err := s.client.StopCamera(r.Context())
	if err != nil {
		s.log.Error("legacy stop camera failed", "error", err)
		page.Active = true
		page.FeedURL = s.cacheBusted("/video_feed")
		s.renderLegacyLive(w, r, &FlashMessage{Type: "error", Message: "Error stopping camera: " + err.Error()}, page)
		return
	}
	if status != "stopped" {
		page.Active = true
		page.FeedURL = s.cacheBusted("/video_feed")
	}
	s.renderLegacyLive(w, r, nil, page)
}

func (s *Server) handleLegacyUploadPage(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "legacy/upload_video.html", "Upload video", nil, legacyUploadPage{
		Modes: legacyModes,
		Mode:  models.DefaultMode,
	})
}

// handleLegacyUpload posts the chosen file to the backend. Media paths in
// the result stay relative and are served through the backend proxy.
func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	page := legacyUploadPage{Modes: legacyModes, Mode: models.DefaultMode}
	render := func(status int, flash *FlashMessage) {
		s.pageStatus(w, r, status, "legacy/upload_video.html", "Upload video", flash, page)
	}

	file, mode, err := legacyUploadForm(r)
	if mode != "" {
		page.Mode = mode
	}
	if err != nil {
		render(http.StatusBadRequest, &FlashMessage{Type: "error", Message: "Please select a video file"})
		return
	}

	res, err := s.client.UploadRaw(r.Context(), file, page.Mode, "")
	if err != nil {
		var upErr *fitness.UploadError
		if errors.As(err, &upErr) {
			render(http.StatusUnprocessableEntity, &FlashMessage{Type: "error", Message: "Error: " + upErr.Message})
			return
		}
		s.log.Error("legacy upload failed", "error", err)
		render(http.StatusBadGateway, &FlashMessage{Type: "error", Message: "Error uploading video. Please try again."})
		return
	}

	page.Original = s.cacheBusted(res.Original)
	page.Processed = s.cacheBusted(res.Processed)
	page.DownloadURL = res.Processed
	page.DownloadName = "analyzed_" + file.Name
	render(http.StatusOK, &FlashMessage{Type: "success", Message: "Video processed successfully"})
}

// legacyUploadForm reads form fields up to the first non-empty "file"
// part. Fields after the file are not seen.
func legacyUploadForm(r *http.Request) (fitness.VideoFile, string, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return fitness.VideoFile{}, "", err
	}
	var mode string
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fitness.VideoFile{}, mode, errNoFile
		}
		if err != nil {
			return fitness.VideoFile{}, mode, err
		}
		switch part.FormName() {
		case "mode":
			b, err := io.ReadAll(io.LimitReader(part, 64))
			if err != nil {
				return fitness.VideoFile{}, mode, err
			}
			mode = strings.TrimSpace(string(b))
		case "file":
			if part.FileName() == "" {
				continue
			}
			return partFile(part), mode, nil
		}
	}
}
