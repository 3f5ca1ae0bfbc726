package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
)

// videoTypes backs up the platform MIME table, which often lacks video entries.
var videoTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
}

func init() {
	for ext, typ := range videoTypes {
		if mime.TypeByExtension(ext) == "" {
			_ = mime.AddExtensionType(ext, typ)
		}
	}
}

// VideoContentType returns the MIME type for name and whether it is a video.
func VideoContentType(name string) (string, bool) {
	typ := mime.TypeByExtension(strings.ToLower(filepath.Ext(name)))
	if typ == "" {
		return "", false
	}
	if mt, _, err := mime.ParseMediaType(typ); err == nil {
		typ = mt
	}
	return typ, strings.HasPrefix(typ, "video/")
}

// Analyzer uploads a video for analysis. *fitness.Client satisfies it.
type Analyzer interface {
	UploadVideo(ctx context.Context, file fitness.VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error)
}

// Journal records finished analyses. *storage.DB satisfies it.
type Journal interface {
	InsertAnalysisLog(ctx context.Context, l models.AnalysisLog) (int64, error)
}

// Stats tracks upload progress.
type Stats struct {
	FilesTotal      int
	FilesUploaded   int
	FilesSkipped    int
	FilesIgnored    int
	FilesErrored    int
	FilesDownloaded int
}

// Options configure a run.
type Options struct {
	Mode     string
	Exercise models.ExerciseType
	DryRun   bool

	// DownloadDir, when set, receives a copy of each processed video.
	DownloadDir string

	// Journal is optional.
	Journal Journal
}

// Uploader walks a directory of videos and sends each new one to the
// analysis backend.
type Uploader struct {
	api     Analyzer
	state   *StateDB
	root    string
	opts    Options
	http    *http.Client
	backoff time.Duration
	log     *slog.Logger
	stats   Stats
}

// New creates a new Uploader. api may be nil in dry-run mode.
func New(api Analyzer, state *StateDB, root string, opts Options, log *slog.Logger) *Uploader {
	if opts.Mode == "" {
		opts.Mode = models.DefaultMode
	}
	if opts.Exercise == "" {
		opts.Exercise = models.Squat
	}
	return &Uploader{
		api:     api,
		state:   state,
		root:    root,
		opts:    opts,
		http:    &http.Client{Timeout: 10 * time.Minute},
		backoff: time.Second,
		log:     log,
	}
}

// Run executes the upload pipeline. Per-file failures are counted and
// logged; only walk and context errors abort the run.
func (u *Uploader) Run(ctx context.Context) (*Stats, error) {
	if u.opts.DownloadDir != "" && !u.opts.DryRun {
		if err := os.MkdirAll(u.opts.DownloadDir, 0o755); err != nil {
			return &u.stats, fmt.Errorf("creating download dir: %w", err)
		}
	}

	// Downloads may land inside the walked tree; they are outputs, not inputs.
	var downloadDir string
	if u.opts.DownloadDir != "" {
		abs, err := filepath.Abs(u.opts.DownloadDir)
		if err != nil {
			return &u.stats, fmt.Errorf("resolving download dir: %w", err)
		}
		downloadDir = abs
	}

	err := filepath.WalkDir(u.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if p != u.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if downloadDir != "" && p != u.root {
				if abs, err := filepath.Abs(p); err == nil && abs == downloadDir {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		u.processFile(ctx, p)
		return nil
	})
	if err != nil {
		return &u.stats, fmt.Errorf("walking %s: %w", u.root, err)
	}
	return &u.stats, nil
}

func (u *Uploader) processFile(ctx context.Context, p string) {
	contentType, ok := VideoContentType(p)
	if !ok {
		u.stats.FilesIgnored++
		return
	}
	u.stats.FilesTotal++

	relPath, _ := filepath.Rel(u.root, p)
	info, err := os.Stat(p)
	if err != nil {
		u.log.Warn("stat failed", "file", p, "error", err)
		u.stats.FilesErrored++
		return
	}

	hash, err := HashFile(p)
	if err != nil {
		u.log.Warn("hash failed", "file", p, "error", err)
		u.stats.FilesErrored++
		return
	}

	uploaded, err := u.state.IsUploaded(relPath, info.Size(), hash)
	if err != nil {
		u.log.Warn("state check failed", "file", p, "error", err)
		u.stats.FilesErrored++
		return
	}
	if uploaded {
		u.stats.FilesSkipped++
		u.fetchMissing(ctx, relPath)
		return
	}

	if u.opts.DryRun {
		u.log.Info("dry-run: would upload",
			"file", relPath,
			"type", contentType,
			"bytes", info.Size(),
		)
		return
	}

	start := time.Now()
	res, err := u.uploadWithRetry(ctx, p, contentType)
	u.record(relPath, res, time.Since(start), err)
	if err != nil {
		u.log.Warn("upload failed", "file", relPath, "error", err)
		u.stats.FilesErrored++
		return
	}
	u.stats.FilesUploaded++
	u.log.Info("analyzed", "file", relPath, "processed", res.Processed)

	if err := u.state.MarkUploaded(relPath, info.Size(), hash, res); err != nil {
		u.log.Warn("failed to mark uploaded", "file", relPath, "error", err)
	}

	if u.opts.DownloadDir != "" {
		if err := u.download(ctx, res.Processed, relPath); err != nil {
			u.log.Warn("download failed", "file", relPath, "error", err)
			return
		}
		u.stats.FilesDownloaded++
	}
}

// fetchMissing downloads the recorded result of an already analyzed file
// when DownloadDir is set and the result is not on disk yet.
func (u *Uploader) fetchMissing(ctx context.Context, relPath string) {
	if u.opts.DownloadDir == "" || u.opts.DryRun {
		return
	}
	if _, err := os.Stat(u.downloadPath(relPath)); err == nil {
		return
	}
	res, ok, err := u.state.Result(relPath)
	if err != nil || !ok || res.Processed == "" {
		if err != nil {
			u.log.Warn("state lookup failed", "file", relPath, "error", err)
		}
		return
	}
	if err := u.download(ctx, res.Processed, relPath); err != nil {
		u.log.Warn("download failed", "file", relPath, "error", err)
		return
	}
	u.stats.FilesDownloaded++
}

// uploadWithRetry retries transport failures up to 3 times with
// exponential backoff. Backend-reported failures are returned at once.
func (u *Uploader) uploadWithRetry(ctx context.Context, p, contentType string) (models.UploadResult, error) {
	var lastErr error
	for attempt := range 3 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return models.UploadResult{}, ctx.Err()
			case <-time.After(u.backoff << uint(attempt-1)):
			}
		}

		res, err := u.uploadOnce(ctx, p, contentType)
		if err == nil {
			return res, nil
		}
		var upErr *fitness.UploadError
		if errors.As(err, &upErr) {
			return models.UploadResult{}, err
		}
		lastErr = err
	}
	return models.UploadResult{}, fmt.Errorf("after 3 attempts: %w", lastErr)
}

func (u *Uploader) uploadOnce(ctx context.Context, p, contentType string) (models.UploadResult, error) {
	f, err := os.Open(p)
	if err != nil {
		return models.UploadResult{}, err
	}
	defer f.Close()

	return u.api.UploadVideo(ctx, fitness.VideoFile{
		Name:        filepath.Base(p),
		ContentType: contentType,
		Body:        f,
	}, u.opts.Mode, u.opts.Exercise)
}

// download saves the processed video as analyzed_<name> in DownloadDir,
// mirroring the subdirectory of relPath.
func (u *Uploader) download(ctx context.Context, url, relPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := u.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}

	dst := u.downloadPath(relPath)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	tmp := dst + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, dst)
}

func (u *Uploader) downloadPath(relPath string) string {
	return filepath.Join(u.opts.DownloadDir, filepath.Dir(relPath), "analyzed_"+filepath.Base(relPath))
}

func (u *Uploader) record(relPath string, res models.UploadResult, elapsed time.Duration, err error) {
	if u.opts.Journal == nil {
		return
	}
	ms := int(elapsed.Milliseconds())
	l := models.AnalysisLog{
		Source:     "cli",
		Kind:       models.KindUpload,
		Exercise:   u.opts.Exercise,
		Mode:       u.opts.Mode,
		Status:     "success",
		DurationMs: &ms,
	}
	if err != nil {
		msg := relPath + ": " + err.Error()
		l.Status = "error"
		l.ErrorMessage = &msg
	} else {
		l.Original = &res.Original
		l.Processed = &res.Processed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := u.opts.Journal.InsertAnalysisLog(ctx, l); err != nil {
		u.log.Warn("failed to record analysis", "file", relPath, "error", err)
	}
}
