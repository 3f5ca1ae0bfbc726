package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/report"
	"github.com/claude/formcoach/internal/storage"
)

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	s.page(w, r, "home.html", "FormCoach", nil, nil)
}

// exerciseCard is a catalog entry with the links of both training screens.
type exerciseCard struct {
	models.Exercise
	LiveURL   string
	UploadURL string
}

func (s *Server) handleExercises(w http.ResponseWriter, r *http.Request) {
	exercises := s.client.ListExercises(r.Context())
	cards := make([]exerciseCard, 0, len(exercises))
	for _, e := range exercises {
		cards = append(cards, exerciseCard{
			Exercise:  e,
			LiveURL:   "/exercises/" + string(e.ID) + "/" + string(models.Live),
			UploadURL: "/exercises/" + string(e.ID) + "/" + string(models.Upload),
		})
	}
	s.page(w, r, "exercises.html", "Choose an exercise", nil, cards)
}

// trainingPage is the data of the training screen template.
type trainingPage struct {
	SessionID   string
	Exercise    models.ExerciseType
	Interface   models.InterfaceMode
	Live        bool
	Content     models.ExerciseContent
	ExpertVideo string
	Modes       []models.Mode
	Selected    string
}

// handleTraining mounts a training interface. Unknown exercise or mode
// values send the visitor back to the landing page.
func (s *Server) handleTraining(w http.ResponseWriter, r *http.Request) {
	exercise, err := models.ParseExerciseType(chi.URLParam(r, "exercise"))
	if err != nil || chi.URLParam(r, "exercise") == "" {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}
	mode, err := models.ParseInterfaceMode(chi.URLParam(r, "mode"))
	if err != nil {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	c := s.sessions.Open(exercise, mode)
	modes := c.LoadModes(r.Context())
	snap := c.Snapshot()
	content := exercise.Content()

	s.page(w, r, "training.html", content.Title+" "+mode.Label(), nil, trainingPage{
		SessionID:   c.ID(),
		Exercise:    exercise,
		Interface:   mode,
		Live:        mode == models.Live,
		Content:     content,
		ExpertVideo: content.ExpertVideo,
		Modes:       modes,
		Selected:    snap.SelectedMode,
	})
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"modes": s.client.ListModes(r.Context())})
}

func (s *Server) handleListExercises(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"exercises": s.client.ListExercises(r.Context())})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeJSON(w, http.StatusOK, []models.AnalysisLog{})
		return
	}
	logs, err := s.history.QueryAnalysisLogs(r.Context(), historyFilter(r))
	if err != nil {
		s.log.Error("history query failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleHistoryExport(w http.ResponseWriter, r *http.Request) {
	var logs []models.AnalysisLog
	if s.history != nil {
		var err error
		logs, err = s.history.QueryAnalysisLogs(r.Context(), historyFilter(r))
		if err != nil {
			s.log.Error("history query failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="formcoach-history.xlsx"`)
	if err := report.WriteHistory(w, logs); err != nil {
		s.log.Error("history export failed", "error", err)
	}
}

func historyFilter(r *http.Request) storage.HistoryFilter {
	q := r.URL.Query()
	f := storage.HistoryFilter{Kind: models.AnalysisKind(q.Get("kind"))}
	if ex := q.Get("exercise"); ex != "" {
		if parsed, err := models.ParseExerciseType(ex); err == nil {
			f.Exercise = parsed
		}
	}
	if l := q.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 {
			f.Limit = parsed
		}
	}
	return f
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
		"journal":  s.history != nil,
	})
}

// page renders a full page and logs template failures.
func (s *Server) page(w http.ResponseWriter, r *http.Request, name, title string, flash *FlashMessage, data any) {
	s.pageStatus(w, r, http.StatusOK, name, title, flash, data)
}

func (s *Server) pageStatus(w http.ResponseWriter, r *http.Request, status int, name, title string, flash *FlashMessage, data any) {
	if err := s.render.render(w, r, status, name, title, flash, data); err != nil {
		s.log.Error("render failed", "template", name, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return `{}`
	}
	return string(b)
}
