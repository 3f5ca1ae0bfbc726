package mcp

import (
	"context"

	"github.com/claude/formcoach/internal/fitness"
	"github.com/claude/formcoach/internal/models"
	"github.com/claude/formcoach/internal/storage"
)

// Backend is the analysis backend surface the tools drive.
type Backend interface {
	ListModes(ctx context.Context) []models.Mode
	ListExercises(ctx context.Context) []models.Exercise
	StartLiveAnalysis(ctx context.Context, mode string, exercise models.ExerciseType) error
	StopLiveAnalysis(ctx context.Context) error
	VideoFeedURL(ctx context.Context, exercise models.ExerciseType) string
	Feedback(ctx context.Context, exercise models.ExerciseType) (string, error)
	UploadVideo(ctx context.Context, file fitness.VideoFile, mode string, exercise models.ExerciseType) (models.UploadResult, error)
}

// History lists analysis journal entries. Both *storage.DB (local) and
// HTTPClient (a running FormCoach server) satisfy it.
type History interface {
	QueryAnalysisLogs(ctx context.Context, f storage.HistoryFilter) ([]models.AnalysisLog, error)
}

// Compile-time checks.
var (
	_ Backend = (*fitness.Client)(nil)
	_ History = (*storage.DB)(nil)
	_ History = (*HTTPClient)(nil)
)
