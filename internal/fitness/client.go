// Package fitness is the REST client for the pose-analysis backend.
package fitness

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/claude/formcoach/internal/models"
)

// DefaultOrigin is the backend origin used when none is configured.
const DefaultOrigin = "http://localhost:5000"

// Client calls the analysis backend over HTTP.
type Client struct {
	origin     string
	httpClient *http.Client
	feedback   FeedbackSource
	log        *slog.Logger
}

// Compile-time check: Client satisfies FeedbackSource.
var _ FeedbackSource = (*Client)(nil)

// NewClient creates a Client targeting origin. A zero timeout means no
// client-side limit, which suits long-running uploads.
func NewClient(origin string, timeout time.Duration, log *slog.Logger) *Client {
	if origin == "" {
		origin = DefaultOrigin
	}
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		origin:     strings.TrimRight(origin, "/"),
		httpClient: &http.Client{Timeout: timeout},
		feedback:   NewCannedFeedback(nil),
		log:        log,
	}
}

// Feedback returns one form hint for exercise.
func (c *Client) Feedback(ctx context.Context, exercise models.ExerciseType) (string, error) {
	if exercise == "" {
		exercise = models.Squat
	}
	return c.feedback.Feedback(ctx, exercise)
}

// Origin returns the backend origin without a trailing slash.
func (c *Client) Origin() string {
	return c.origin
}

// UploadError is returned when the backend answers an upload with a
// non-success status.
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}

// statusResponse is the ad hoc {status} envelope used by the camera endpoints.
type statusResponse struct {
	Status       string `json:"status"`
	Mode         string `json:"mode,omitempty"`
	ExerciseType string `json:"exerciseType,omitempty"`
	Message      string `json:"message,omitempty"`
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fitness: %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("fitness: %s: read body: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fitness: %s returned %d: %s", op, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	u := c.origin + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("fitness: create request: %w", err)
	}
	return c.do(req, path)
}

func exerciseParam(exercise models.ExerciseType) url.Values {
	if exercise == "" {
		exercise = models.Squat
	}
	return url.Values{"exercise": {string(exercise)}}
}

// ListModes fetches the available analysis modes. Failures are logged and
// degrade to an empty list.
func (c *Client) ListModes(ctx context.Context) []models.Mode {
	body, err := c.get(ctx, "/api/modes", nil)
	if err != nil {
		c.log.Warn("error fetching modes", "error", err)
		return []models.Mode{}
	}

	var resp struct {
		Modes []models.Mode `json:"modes"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn("error decoding modes", "error", err)
		return []models.Mode{}
	}
	if resp.Modes == nil {
		return []models.Mode{}
	}
	return resp.Modes
}

// ListExercises fetches the exercise catalog. Failures are logged and fall
// back to the built-in catalog.
func (c *Client) ListExercises(ctx context.Context) []models.Exercise {
	body, err := c.get(ctx, "/api/exercises", nil)
	if err != nil {
		c.log.Warn("error fetching exercises", "error", err)
		return models.DefaultCatalog(c.origin)
	}

	var resp struct {
		Exercises []models.Exercise `json:"exercises"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Exercises) == 0 {
		if err != nil {
			c.log.Warn("error decoding exercises", "error", err)
		}
		return models.DefaultCatalog(c.origin)
	}
	return resp.Exercises
}

// VideoFeedURL asks the backend for the live feed URL of exercise.
// Failures are logged and degrade to "".
func (c *Client) VideoFeedURL(ctx context.Context, exercise models.ExerciseType) string {
	body, err := c.get(ctx, "/api/video_feed_url", exerciseParam(exercise))
	if err != nil {
		c.log.Warn("error fetching video feed URL", "error", err)
		return ""
	}

	var resp struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		c.log.Warn("error decoding video feed URL", "error", err)
		return ""
	}
	return resp.URL
}

// SetMode selects the analysis mode and exercise on the backend.
func (c *Client) SetMode(ctx context.Context, mode string, exercise models.ExerciseType) (string, error) {
	if mode == "" {
		mode = models.DefaultMode
	}
	if exercise == "" {
		exercise = models.Squat
	}
	data, err := json.Marshal(map[string]string{
		"mode":         mode,
		"exerciseType": string(exercise),
	})
	if err != nil {
		return "", fmt.Errorf("fitness: marshal set_mode: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+"/set_mode", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("fitness: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req, "/set_mode")
	if err != nil {
		return "", err
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("fitness: decode set_mode: %w", err)
	}
	return resp.Mode, nil
}

// StartCamera starts the backend capture for exercise and returns the
// reported status ("started" on success).
func (c *Client) StartCamera(ctx context.Context, exercise models.ExerciseType) (string, error) {
	body, err := c.get(ctx, "/start_camera", exerciseParam(exercise))
	if err != nil {
		return "", err
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("fitness: decode start_camera: %w", err)
	}
	return resp.Status, nil
}

// StartLiveAnalysis sets the mode and then starts the camera. The second
// call is only made once the first has completed.
func (c *Client) StartLiveAnalysis(ctx context.Context, mode string, exercise models.ExerciseType) error {
	if _, err := c.SetMode(ctx, mode, exercise); err != nil {
		return err
	}
	_, err := c.StartCamera(ctx, exercise)
	return err
}

// StopLiveAnalysis stops the backend capture.
func (c *Client) StopLiveAnalysis(ctx context.Context) error {
	_, err := c.StopCamera(ctx)
	return err
}

// StopCamera stops the backend capture and returns the reported status
// ("stopped" on success).
func (c *Client) StopCamera(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/stop_camera", nil)
	if err != nil {
		return "", err
	}
	var resp statusResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("fitness: decode stop_camera: %w", err)
	}
	return resp.Status, nil
}

// VideoFile is a video to upload.
type VideoFile struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// uploadResponse is the backend's /upload envelope.
type uploadResponse struct {
	Status    string `json:"status"`
	Original  string `json:"original"`
	Processed string `json:"processed"`
	Message   string `json:"message"`
}

// UploadRaw posts file to /upload and returns the backend's paths as sent,
// relative to the origin. Backend-reported failures yield *UploadError.
func (c *Client) UploadRaw(ctx context.Context, file VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error) {
	if mode == "" {
		mode = models.DefaultMode
	}
	if exercise == "" {
		exercise = models.Squat
	}

	// Stream the multipart body so large videos are not buffered in memory.
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUploadForm(mw, file, mode, exercise))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.origin+"/upload", pr)
	if err != nil {
		_ = pr.CloseWithError(err)
		return models.UploadResult{}, fmt.Errorf("fitness: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	body, err := c.do(req, "/upload")
	if err != nil {
		_ = pr.CloseWithError(err)
		return models.UploadResult{}, err
	}

	var resp uploadResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.UploadResult{}, fmt.Errorf("fitness: decode upload: %w", err)
	}
	if resp.Status != "success" {
		msg := resp.Message
		if msg == "" {
			msg = "Video processing failed"
		}
		return models.UploadResult{}, &UploadError{Message: msg}
	}
	return models.UploadResult{Original: resp.Original, Processed: resp.Processed}, nil
}

// UploadVideo uploads file for analysis and returns absolute URLs for the
// original and processed videos.
func (c *Client) UploadVideo(ctx context.Context, file VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error) {
	raw, err := c.UploadRaw(ctx, file, mode, exercise)
	if err != nil {
		return models.UploadResult{}, err
	}
	return models.UploadResult{
		Original:  c.origin + raw.Original,
		Processed: c.origin + raw.Processed,
	}, nil
}

func writeUploadForm(mw *multipart.Writer, file VideoFile, mode string, exercise models.ExerciseType) error {
	part, err := createFilePart(mw, file)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file.Body); err != nil {
		return fmt.Errorf("fitness: copy video: %w", err)
	}
	if err := mw.WriteField("mode", mode); err != nil {
		return err
	}
	if err := mw.WriteField("exerciseType", string(exercise)); err != nil {
		return err
	}
	return mw.Close()
}

func createFilePart(mw *multipart.Writer, file VideoFile) (io.Writer, error) {
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(map[string][]string)
	h["Content-Disposition"] = []string{
		fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name),
	}
	h["Content-Type"] = []string{contentType}
	return mw.CreatePart(h)
}
