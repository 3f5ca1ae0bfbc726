package models

import (
	"fmt"
	"strings"
)

// ExerciseType selects instruction content, expert demo media and the
// backend's exercise query value.
type ExerciseType string

const (
	Squat ExerciseType = "squat"
	Plank ExerciseType = "plank"
)

// ExerciseTypes lists every supported exercise in catalog order.
var ExerciseTypes = []ExerciseType{Squat, Plank}

// ParseExerciseType parses a route or query value. Empty input yields Squat,
// matching the backend default.
func ParseExerciseType(s string) (ExerciseType, error) {
	switch ExerciseType(strings.ToLower(strings.TrimSpace(s))) {
	case "", Squat:
		return Squat, nil
	case Plank:
		return Plank, nil
	default:
		return "", fmt.Errorf("unknown exercise type %q", s)
	}
}

// InterfaceMode is the flavour of a training screen.
type InterfaceMode string

const (
	Live   InterfaceMode = "live"
	Upload InterfaceMode = "upload"
)

// ParseInterfaceMode parses the trailing segment of a training route.
func ParseInterfaceMode(s string) (InterfaceMode, error) {
	switch InterfaceMode(s) {
	case Live:
		return Live, nil
	case Upload:
		return Upload, nil
	default:
		return "", fmt.Errorf("unknown interface mode %q", s)
	}
}

// Label is the heading suffix shown next to the exercise title.
func (m InterfaceMode) Label() string {
	if m == Live {
		return "(Live Analysis)"
	}
	return "(Video Upload)"
}

// Exercise is a catalog card as served by GET /api/exercises.
type Exercise struct {
	ID          ExerciseType `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description"`
	Image       string       `json:"image"`
}

// ExerciseContent is the static copy shown on a training screen.
type ExerciseContent struct {
	Title        string
	ExpertVideo  string // path on the backend origin
	Instructions []string
	CatalogTitle string
	Description  string
	Image        string // path on the backend origin
}

var exerciseContent = map[ExerciseType]ExerciseContent{
	Squat: {
		Title:       "Squat Analysis",
		ExpertVideo: "/static/outputs/expert_vid.mp4",
		Instructions: []string{
			"Stand with feet shoulder-width apart",
			"Keep your back straight",
			"Lower your hips as if sitting in a chair",
			"Ensure knees don't extend beyond toes",
		},
		CatalogTitle: "Squat Analysis",
		Description:  "Perfect your squat form with AI feedback on hip angle, knee position, and depth. Ideal for beginners and advanced athletes.",
		Image:        "/static/img/squat.jpg",
	},
	Plank: {
		Title:       "Plank Form Analysis",
		ExpertVideo: "/static/outputs/plank_expert.mp4",
		Instructions: []string{
			"Position forearms on the ground, elbows under shoulders",
			"Extend legs behind you, resting on toes",
			"Maintain a straight line from head to heels",
			"Engage core and hold position",
		},
		CatalogTitle: "Plank Form",
		Description:  "Maintain proper plank position with real-time posture correction. Our AI detects spine alignment and body position.",
		Image:        "/static/img/plank.jpg",
	},
}

// Content returns the training-screen copy for e. Unknown values fall back to squat.
func (e ExerciseType) Content() ExerciseContent {
	if c, ok := exerciseContent[e]; ok {
		return c
	}
	return exerciseContent[Squat]
}

// DefaultCatalog builds the exercise catalog with image paths resolved
// against origin.
func DefaultCatalog(origin string) []Exercise {
	out := make([]Exercise, 0, len(ExerciseTypes))
	for _, e := range ExerciseTypes {
		c := e.Content()
		out = append(out, Exercise{
			ID:          e,
			Name:        c.CatalogTitle,
			Description: c.Description,
			Image:       origin + c.Image,
		})
	}
	return out
}
