package server

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
	"github.com/claude/formcoach/internal/training"
)

// History lists journal entries. *storage.DB satisfies it.
type History interface {
	QueryAnalysisLogs(ctx context.Context, f storage.HistoryFilter) ([]models.AnalysisLog, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	client   *fitness.Client
	sessions *training.Manager
	history  History
	render   *renderer
	backend  *httputil.ReverseProxy
	log      *slog.Logger
	now      func() time.Time
	router   chi.Router
}

// New creates a new Server with all routes configured. history may be nil
// when no journal database is configured.
func New(client *fitness.Client, sessions *training.Manager, history History, log *slog.Logger) (*Server, error) {
	origin, err := url.Parse(client.Origin())
	if err != nil {
		return nil, err
	}

	s := &Server{
		client:   client,
		sessions: sessions,
		history:  history,
		render:   newRenderer(),
		log:      log,
		now:      time.Now,
		router:   chi.NewRouter(),
	}
	s.backend = newBackendProxy(origin, log)
	s.routes()
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(Recover(s.log))
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Pages
	s.router.Get("/", s.handleHome)
	s.router.Get("/exercises", s.handleExercises)
	s.router.Get("/exercises/{exercise}/{mode}", s.handleTraining)

	// Training interface API
	s.router.Route("/api/sessions/{id}", func(r chi.Router) {
		r.Get("/", s.handleSessionState)
		r.Delete("/", s.handleSessionClose)
		r.Post("/close", s.handleSessionClose)
		r.Post("/mode", s.handleSessionMode)
		r.Post("/toggle", s.handleSessionToggle)
		r.Post("/upload", s.handleSessionUpload)
		r.Post("/drop", s.handleSessionDrop)
		r.Post("/drag", s.handleSessionDrag)
		r.Get("/events", s.handleSessionEvents)
	})

	s.router.Get("/api/modes", s.handleModes)
	s.router.Get("/api/exercises", s.handleListExercises)
	s.router.Get("/api/history", s.handleHistory)
	s.router.Get("/api/history.xlsx", s.handleHistoryExport)
	s.router.Get("/healthz", s.handleHealth)

	// Legacy live-stream and upload pages
	s.router.Route("/legacy", func(r chi.Router) {
		r.Get("/", s.handleLegacyIndex)
		r.Get("/live_stream", s.handleLegacyLiveStream)
		r.Post("/live_stream/start", s.handleLegacyStart)
		r.Post("/live_stream/stop", s.handleLegacyStop)
		r.Get("/upload_video", s.handleLegacyUploadPage)
		r.Post("/upload_video", s.handleLegacyUpload)
	})

	// Own assets
	assets, _ := fs.Sub(staticFS, "static")
	s.router.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServerFS(assets)))

	// Backend media, so relative paths from the backend resolve here
	s.router.Handle("/video_feed", s.backend)
	s.router.Handle("/uploads/*", s.backend)
	s.router.Handle("/outputs/*", s.backend)
	s.router.Handle("/static/img/*", s.backend)
	s.router.Handle("/static/outputs/*", s.backend)

	// Any other path goes back to the landing page.
	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
}

// newBackendProxy forwards media requests to the analysis backend. The
// MJPEG feed is flushed as it arrives.
func newBackendProxy(origin *url.URL, log *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(origin)
			pr.SetXForwarded()
		},
		FlushInterval: -1,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			log.Warn("backend proxy error", "path", r.URL.Path, "error", err)
			writeJSON(w, http.StatusBadGateway, map[string]string{"error": "analysis backend unavailable"})
		},
	}
}
