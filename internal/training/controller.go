// Package training holds the stateful training-interface controller: live
// camera toggling with feedback polling, and video upload with simulated
// progress and drag-and-drop handling.
package training

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
)

var (
	ErrWrongMode   = errors.New("operation not available in this interface mode")
	ErrNotVideo    = errors.New("file is not a video")
	ErrUnknownMode = errors.New("unknown analysis mode")
	ErrClosed      = errors.New("training controller closed")
	ErrBusy        = errors.New("an upload is already running")
)

// API is the subset of the backend client the controller depends on.
type API interface {
	ListModes(ctx context.Context) []models.Mode
	StartLiveAnalysis(ctx context.Context, mode string, exercise models.ExerciseType) error
	StopLiveAnalysis(ctx context.Context) error
	VideoFeedURL(ctx context.Context, exercise models.ExerciseType) string
	UploadVideo(ctx context.Context, file fitness.VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error)
	Feedback(ctx context.Context, exercise models.ExerciseType) (string, error)
}

// Compile-time check: *fitness.Client satisfies API.
var _ API = (*fitness.Client)(nil)

// Journal records finished uploads and live sessions. *storage.DB satisfies it.
type Journal interface {
	InsertAnalysisLog(ctx context.Context, entry models.AnalysisLog) (int64, error)
}

// State is the controller's position in its state machine.
type State string

const (
	StateIdle      State = "idle"
	StateTraining  State = "training"
	StateUploading State = "uploading"
	StateResult    State = "result"
)

// Options tunes timing and side channels. Zero values take the defaults.
type Options struct {
	PollInterval     time.Duration // default 1s
	ProgressStep     int           // default 10
	ProgressInterval time.Duration // default 300ms
	Journal          Journal
	Now              func() time.Time
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.ProgressStep <= 0 {
		o.ProgressStep = 10
	}
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 300 * time.Millisecond
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// progressCap is the highest value the simulated progress may reach
// before the backend answers.
const progressCap = 90

// Snapshot is a consistent copy of a controller's state.
type Snapshot struct {
	ID           string               `json:"id"`
	Exercise     models.ExerciseType  `json:"exercise"`
	Interface    models.InterfaceMode `json:"interface"`
	State        State                `json:"state"`
	IsTraining   bool                 `json:"is_training"`
	Modes        []models.Mode        `json:"modes"`
	SelectedMode string               `json:"selected_mode"`
	Feedback     []string             `json:"feedback"`
	VideoFeedURL string               `json:"video_feed_url"`
	Progress     int                  `json:"progress"`
	DragActive   bool                 `json:"drag_active"`
	Result       *models.UploadResult `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Controller is one mounted training screen.
type Controller struct {
	id        string
	exercise  models.ExerciseType
	iface     models.InterfaceMode
	api       API
	opts      Options
	log       *slog.Logger
	createdAt time.Time

	// toggleMu serializes the network sequences of Toggle and Close.
	toggleMu sync.Mutex

	mu           sync.Mutex
	state        State
	modes        []models.Mode
	modesLoaded  bool
	selectedMode string
	feedback     []string
	videoFeedURL string
	progress     int
	dragActive   bool
	result       *models.UploadResult
	lastErr      string
	closed       bool
	lastActive   time.Time
	trainStart   time.Time

	// generation identifies the current live session. A poll belonging
	// to an older generation must not touch state.
	generation     uint64
	pollCancel     context.CancelFunc
	pollDone       chan struct{}
	progressCancel context.CancelFunc

	subs   map[chan Event]struct{}
	subsMu sync.Mutex
}

// NewController creates a controller in the Idle state.
func NewController(id string, exercise models.ExerciseType, iface models.InterfaceMode, api API, opts Options, log *slog.Logger) *Controller {
	opts = opts.withDefaults()
	if log == nil {
		log = slog.Default()
	}
	now := opts.Now()
	return &Controller{
		id:           id,
		exercise:     exercise,
		iface:        iface,
		api:          api,
		opts:         opts,
		log:          log.With("session", id, "exercise", exercise, "interface", iface),
		createdAt:    now,
		state:        StateIdle,
		selectedMode: models.DefaultMode,
		lastActive:   now,
		subs:         make(map[chan Event]struct{}),
	}
}

func (c *Controller) ID() string                          { return c.id }
func (c *Controller) Exercise() models.ExerciseType       { return c.exercise }
func (c *Controller) InterfaceMode() models.InterfaceMode { return c.iface }

// LoadModes fetches the available modes once. Later calls return the
// cached list.
func (c *Controller) LoadModes(ctx context.Context) []models.Mode {
	c.mu.Lock()
	if c.modesLoaded {
		modes := c.modes
		c.mu.Unlock()
		return modes
	}
	c.mu.Unlock()

	modes := c.api.ListModes(ctx)

	c.mu.Lock()
	if !c.modesLoaded {
		c.modes = modes
		c.modesLoaded = true
	}
	modes = c.modes
	c.mu.Unlock()
	return modes
}

// SelectMode changes the analysis mode used by the next start or upload.
func (c *Controller) SelectMode(id string) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if len(c.modes) > 0 && !containsMode(c.modes, id) {
		c.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownMode, id)
	}
	c.selectedMode = id
	c.touchLocked()
	c.mu.Unlock()

	c.broadcastState()
	return nil
}

func containsMode(modes []models.Mode, id string) bool {
	for _, m := range modes {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Toggle starts live training when idle and stops it when training.
// On error the state is left unchanged.
func (c *Controller) Toggle(ctx context.Context) error {
	if c.iface != models.Live {
		return ErrWrongMode
	}

	c.toggleMu.Lock()
	defer c.toggleMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	training := c.state == StateTraining
	mode := c.selectedMode
	c.touchLocked()
	c.mu.Unlock()

	if training {
		return c.stop(ctx)
	}
	return c.start(ctx, mode)
}

func (c *Controller) start(ctx context.Context, mode string) error {
	if err := c.api.StartLiveAnalysis(ctx, mode, c.exercise); err != nil {
		c.log.Error("training toggle failed", "error", err)
		c.setError(err)
		return fmt.Errorf("starting live analysis: %w", err)
	}
	feed := c.api.VideoFeedURL(ctx, c.exercise)

	pollCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.state = StateTraining
	c.videoFeedURL = cacheBust(feed, c.opts.Now())
	c.feedback = []string{}
	c.lastErr = ""
	c.trainStart = c.opts.Now()
	c.pollCancel = cancel
	c.pollDone = done
	c.mu.Unlock()

	c.log.Info("training started", "mode", mode)
	c.broadcastState()

	go c.pollFeedback(pollCtx, gen, done)
	return nil
}

func (c *Controller) stop(ctx context.Context) error {
	if err := c.api.StopLiveAnalysis(ctx); err != nil {
		c.log.Error("training toggle failed", "error", err)
		c.setError(err)
		return fmt.Errorf("stopping live analysis: %w", err)
	}

	entry := c.endTraining()
	c.log.Info("training stopped", "feedback", entry.FeedbackCount)
	c.broadcastState()
	c.record(entry)
	return nil
}

// endTraining clears the live session and waits for its poller to exit.
// It returns the journal entry describing the session.
func (c *Controller) endTraining() models.AnalysisLog {
	c.mu.Lock()
	entry := c.liveEntryLocked()
	c.generation++
	c.state = StateIdle
	c.feedback = []string{}
	c.videoFeedURL = ""
	cancel, done := c.pollCancel, c.pollDone
	c.pollCancel, c.pollDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return entry
}

func (c *Controller) liveEntryLocked() models.AnalysisLog {
	durationMs := int(c.opts.Now().Sub(c.trainStart).Milliseconds())
	return models.AnalysisLog{
		Source:        "web",
		Kind:          models.KindLive,
		Exercise:      c.exercise,
		Mode:          c.selectedMode,
		Status:        "success",
		FeedbackCount: len(c.feedback),
		DurationMs:    &durationMs,
	}
}

// pollFeedback appends one feedback item per interval until its context
// is cancelled or its generation is superseded. Fetch errors are logged
// and polling continues.
func (c *Controller) pollFeedback(ctx context.Context, gen uint64, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		msg, err := c.api.Feedback(ctx, c.exercise)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.log.Warn("failed to get feedback", "error", err)
		} else if !c.appendFeedback(gen, msg) {
			return
		}

		if !c.current(gen) {
			return
		}
		timer.Reset(c.opts.PollInterval)
	}
}

func (c *Controller) current(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation == gen && c.state == StateTraining
}

func (c *Controller) appendFeedback(gen uint64, msg string) bool {
	c.mu.Lock()
	if c.generation != gen || c.state != StateTraining {
		c.mu.Unlock()
		return false
	}
	c.feedback = append(c.feedback, msg)
	index := len(c.feedback) - 1
	c.mu.Unlock()

	c.broadcast(Event{Name: EventFeedback, Data: map[string]any{"index": index, "message": msg}})
	return true
}

// cacheBust appends a t=<unix millis> query parameter. An empty URL stays empty.
func cacheBust(raw string, now time.Time) string {
	if raw == "" {
		return ""
	}
	sep := "?"
	if strings.Contains(raw, "?") {
		sep = "&"
	}
	return raw + sep + "t=" + strconv.FormatInt(now.UnixMilli(), 10)
}

// Upload sends file for analysis while reporting simulated progress.
// Non-video files are rejected without contacting the backend.
func (c *Controller) Upload(ctx context.Context, file fitness.VideoFile) (models.UploadResult, error) {
	if c.iface != models.Upload {
		return models.UploadResult{}, ErrWrongMode
	}
	if !IsVideo(file.ContentType) {
		return models.UploadResult{}, ErrNotVideo
	}

	progressCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return models.UploadResult{}, ErrClosed
	}
	if c.state == StateUploading {
		c.mu.Unlock()
		cancel()
		return models.UploadResult{}, ErrBusy
	}
	c.state = StateUploading
	c.progress = 0
	c.result = nil
	c.lastErr = ""
	c.progressCancel = cancel
	mode := c.selectedMode
	c.touchLocked()
	c.mu.Unlock()

	c.broadcastState()
	go c.simulateProgress(progressCtx, done)

	start := c.opts.Now()
	res, err := c.api.UploadVideo(ctx, file, mode, c.exercise)

	cancel()
	<-done

	durationMs := int(c.opts.Now().Sub(start).Milliseconds())
	entry := models.AnalysisLog{
		Source:     "web",
		Kind:       models.KindUpload,
		Exercise:   c.exercise,
		Mode:       mode,
		DurationMs: &durationMs,
	}

	c.mu.Lock()
	c.progressCancel = nil
	if c.closed {
		c.progress = 0
		c.state = StateIdle
		c.mu.Unlock()
		if err != nil {
			msg := err.Error()
			entry.Status = "error"
			entry.ErrorMessage = &msg
		} else {
			entry.Status = "success"
			entry.Original = &res.Original
			entry.Processed = &res.Processed
		}
		c.log.Info("upload finished after close", "file", file.Name, "status", entry.Status)
		c.record(entry)
		return models.UploadResult{}, ErrClosed
	}
	if err != nil {
		c.progress = 0
		c.state = StateIdle
		c.lastErr = err.Error()
	} else {
		c.progress = 100
		c.state = StateResult
		c.result = &res
	}
	c.mu.Unlock()

	if err != nil {
		c.log.Error("upload failed", "file", file.Name, "error", err)
		msg := err.Error()
		entry.Status = "error"
		entry.ErrorMessage = &msg
		c.broadcast(Event{Name: EventProgress, Data: map[string]int{"progress": 0}})
		c.broadcastState()
		c.record(entry)
		return models.UploadResult{}, err
	}

	c.log.Info("upload analyzed", "file", file.Name, "processed", res.Processed)
	entry.Status = "success"
	entry.Original = &res.Original
	entry.Processed = &res.Processed
	c.broadcast(Event{Name: EventProgress, Data: map[string]int{"progress": 100}})
	c.broadcast(Event{Name: EventResult, Data: res})
	c.broadcastState()
	c.record(entry)
	return res, nil
}

// simulateProgress advances progress by the configured step on each tick,
// never past progressCap.
func (c *Controller) simulateProgress(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(c.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		if c.state != StateUploading || c.progress >= progressCap {
			c.mu.Unlock()
			return
		}
		c.progress = min(c.progress+c.opts.ProgressStep, progressCap)
		p := c.progress
		c.mu.Unlock()

		c.broadcast(Event{Name: EventProgress, Data: map[string]int{"progress": p}})
	}
}

// IsVideo reports whether a MIME type names a video.
func IsVideo(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "video/")
}

// DragEnter marks the drop zone as highlighted.
func (c *Controller) DragEnter() { c.setDrag(true) }

// DragOver keeps the drop zone highlighted.
func (c *Controller) DragOver() { c.setDrag(true) }

// DragLeave clears the highlight.
func (c *Controller) DragLeave() { c.setDrag(false) }

func (c *Controller) setDrag(active bool) {
	c.mu.Lock()
	changed := c.dragActive != active
	c.dragActive = active
	c.touchLocked()
	c.mu.Unlock()

	if changed {
		c.broadcastState()
	}
}

// Drop clears the highlight and uploads the first dropped file if it is
// a video. Other files are ignored.
func (c *Controller) Drop(ctx context.Context, files []fitness.VideoFile) (models.UploadResult, error) {
	c.setDrag(false)
	if len(files) == 0 {
		return models.UploadResult{}, nil
	}
	first := files[0]
	if !IsVideo(first.ContentType) {
		c.log.Info("ignoring dropped non-video file", "file", first.Name, "content_type", first.ContentType)
		return models.UploadResult{}, ErrNotVideo
	}
	return c.Upload(ctx, first)
}

// Close tears the controller down. If a live session is running, exactly
// one best-effort stop call is issued; its error is only logged.
func (c *Controller) Close(ctx context.Context) error {
	c.toggleMu.Lock()
	defer c.toggleMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	training := c.state == StateTraining
	if c.progressCancel != nil {
		c.progressCancel()
	}
	c.mu.Unlock()

	if training {
		entry := c.endTraining()
		if err := c.api.StopLiveAnalysis(ctx); err != nil {
			c.log.Error("stop on close failed", "error", err)
		}
		c.record(entry)
	}

	c.broadcast(Event{Name: EventClosed, Data: map[string]string{"id": c.id}})
	c.closeSubscribers()
	c.log.Info("training interface closed", "was_training", training)
	return nil
}

// Closed reports whether Close has been called.
func (c *Controller) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:           c.id,
		Exercise:     c.exercise,
		Interface:    c.iface,
		State:        c.state,
		IsTraining:   c.state == StateTraining,
		Modes:        append([]models.Mode{}, c.modes...),
		SelectedMode: c.selectedMode,
		Feedback:     append([]string{}, c.feedback...),
		VideoFeedURL: c.videoFeedURL,
		Progress:     c.progress,
		DragActive:   c.dragActive,
		Error:        c.lastErr,
	}
	if c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// Touch marks the controller as in use, postponing idle expiry.
func (c *Controller) Touch() {
	c.mu.Lock()
	c.touchLocked()
	c.mu.Unlock()
}

func (c *Controller) touchLocked() {
	c.lastActive = c.opts.Now()
}

func (c *Controller) idleSince() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastActive
}

func (c *Controller) setError(err error) {
	c.mu.Lock()
	c.lastErr = err.Error()
	c.mu.Unlock()
	c.broadcast(Event{Name: EventError, Data: map[string]string{"error": err.Error()}})
}

func (c *Controller) record(entry models.AnalysisLog) {
	if c.opts.Journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := c.opts.Journal.InsertAnalysisLog(ctx, entry); err != nil {
		c.log.Error("failed to record analysis", "kind", entry.Kind, "error", err)
	}
}
