package repositories

import (
	"context"
	"time"

	"github.com/haniipp/cybersentient/domain/entities"
)

// LandmarkDetector abstracts the pretrained vision runtime.
//
// Initialize walks the candidate asset locations and compute delegates until
// one combination comes up; until then, and permanently if all combinations
// fail, Ready reports false and the per-frame calls return empty results.
type LandmarkDetector interface {
	Initialize(ctx context.Context) error
	// Ready reports whether the runtime finished initializing.
	Ready() bool
	// Err returns the last initialization error once all candidates are
	// exhausted, nil otherwise.
	Err() error
	// DetectFaces returns the face landmark sets for the given frame.
	DetectFaces(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.FaceLandmarks, error)
	// RecognizeGestures returns the hand landmark sets, each with at most one
	// gesture label, for the given frame.
	RecognizeGestures(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.HandDetection, error)
}
