package models

import "time"

// DefaultMode is the mode id selected before the user picks one.
const DefaultMode = "Beginner"

// Mode is a named analysis sensitivity profile.
type Mode struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// UploadResult holds absolute URLs of the original and processed videos.
type UploadResult struct {
	Original  string `json:"original"`
	Processed string `json:"processed"`
}

// AnalysisKind distinguishes journal entries.
type AnalysisKind string

const (
	KindUpload AnalysisKind = "upload"
	KindLive   AnalysisKind = "live"
)

// AnalysisLog is a single journal row describing an upload or a live session.
type AnalysisLog struct {
	ID            int64        `json:"id"`
	CreatedAt     time.Time    `json:"created_at"`
	Source        string       `json:"source"` // web, cli, mcp
	Kind          AnalysisKind `json:"kind"`
	Exercise      ExerciseType `json:"exercise"`
	Mode          string       `json:"mode"`
	Status        string       `json:"status"` // success, error
	FeedbackCount int          `json:"feedback_count"`
	Original      *string      `json:"original"`
	Processed     *string      `json:"processed"`
	DurationMs    *int         `json:"duration_ms"`
	ErrorMessage  *string      `json:"error_message"`
}
