package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/training"
)

// session resolves the {id} URL parameter. It writes the 404 itself.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*training.Controller, bool) {
	c, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return nil, false
	}
	return c, true
}

// sessionError maps controller errors onto HTTP statuses.
func (s *Server) sessionError(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	var upErr *fitness.UploadError
	switch {
	case errors.Is(err, training.ErrWrongMode), errors.Is(err, training.ErrBusy):
		status = http.StatusConflict
	case errors.Is(err, training.ErrNotVideo):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, training.ErrUnknownMode):
		status = http.StatusBadRequest
	case errors.Is(err, training.ErrClosed), errors.Is(err, training.ErrNotFound):
		status = http.StatusGone
	case errors.As(err, &upErr):
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleSessionState(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleSessionClose(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Close(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionMode(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	if err := c.SelectMode(req.Mode); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleSessionToggle(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	if err := c.Toggle(r.Context()); err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

// handleSessionUpload takes the file picked in the upload form.
func (s *Server) handleSessionUpload(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	file, err := firstFilePart(r, "file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	res, err := c.Upload(r.Context(), file)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"original":  res.Original,
		"processed": res.Processed,
	})
}

// handleSessionDrop takes a drag-and-drop payload. Only the first file
// is considered.
func (s *Server) handleSessionDrop(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var files []fitness.VideoFile
	file, err := firstFilePart(r, "files")
	switch {
	case errors.Is(err, errNoFile):
	case err != nil:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	default:
		files = append(files, file)
	}

	res, err := c.Drop(r.Context(), files)
	if err != nil {
		s.sessionError(w, err)
		return
	}
	if len(files) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "success",
		"original":  res.Original,
		"processed": res.Processed,
	})
}

func (s *Server) handleSessionDrag(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON: " + err.Error()})
		return
	}
	switch req.Action {
	case "enter":
		c.DragEnter()
	case "over":
		c.DragOver()
	case "leave":
		c.DragLeave()
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "action must be enter, over or leave"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	c, ok := s.session(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := c.Subscribe()
	defer c.Unsubscribe(ch)

	// Send current state immediately
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", training.EventState, mustJSON(c.Snapshot()))
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Name, mustJSON(evt.Data))
			flusher.Flush()

			if evt.Name == training.EventClosed {
				return
			}
		}
	}
}

var errNoFile = errors.New("no file in request")

// firstFilePart streams the first file part named field. The body is not
// buffered; the returned file reads straight from the request.
func firstFilePart(r *http.Request, field string) (fitness.VideoFile, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return fitness.VideoFile{}, fmt.Errorf("expected multipart form: %w", err)
	}
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return fitness.VideoFile{}, errNoFile
		}
		if err != nil {
			return fitness.VideoFile{}, fmt.Errorf("reading multipart form: %w", err)
		}
		if part.FormName() != field || part.FileName() == "" {
			continue
		}
		return partFile(part), nil
	}
}

func partFile(part *multipart.Part) fitness.VideoFile {
	return fitness.VideoFile{
		Name:        part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		Body:        part,
	}
}
