package fitness

import (
	"context"
	"math/rand/v2"
	"sync"

	"github.com/claude/formcoach/internal/models"
)

// FeedbackSource yields one form hint per call.
type FeedbackSource interface {
	Feedback(ctx context.Context, exercise models.ExerciseType) (string, error)
}

var cannedFeedback = map[models.ExerciseType][]string{
	models.Squat: {
		"Keep your back straight",
		"Lower your hips more",
		"Keep knees aligned with toes",
		"Good depth, maintain form",
	},
	models.Plank: {
		"Keep your core engaged",
		"Maintain a straight line from head to heels",
		"Avoid dropping your hips",
		"Keep your neck neutral",
	},
}

// CannedMessages returns the canned hints for exercise. Unknown exercises
// get the squat list.
func CannedMessages(exercise models.ExerciseType) []string {
	if msgs, ok := cannedFeedback[exercise]; ok {
		return msgs
	}
	return cannedFeedback[models.Squat]
}

// CannedFeedback picks a random canned hint. The backend has no feedback
// endpoint yet, so this is the default source.
type CannedFeedback struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewCannedFeedback creates a canned source. A nil rnd uses a randomly seeded PCG.
func NewCannedFeedback(rnd *rand.Rand) *CannedFeedback {
	if rnd == nil {
		rnd = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &CannedFeedback{rnd: rnd}
}

// Feedback implements FeedbackSource.
func (f *CannedFeedback) Feedback(ctx context.Context, exercise models.ExerciseType) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	msgs := CannedMessages(exercise)
	f.mu.Lock()
	i := f.rnd.IntN(len(msgs))
	f.mu.Unlock()
	return msgs[i], nil
}
