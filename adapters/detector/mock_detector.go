package detector

import (
	"context"
	"sync"
	"time"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
)

// MockDetector is a scriptable detector for development and tests. Results
// are consumed frame by frame; when the script runs out the last entry
// repeats.
type MockDetector struct {
	mu      sync.Mutex
	ready   bool
	initErr error
	frames  []entities.FrameDetections
	cursor  int
}

var _ repositories.LandmarkDetector = (*MockDetector)(nil)

// NewMockDetector creates a detector that is ready immediately.
func NewMockDetector(frames ...entities.FrameDetections) *MockDetector {
	return &MockDetector{ready: true, frames: frames}
}

// NewUnavailableDetector creates a detector stuck in the unavailable state.
func NewUnavailableDetector(err error) *MockDetector {
	return &MockDetector{initErr: err}
}

func (m *MockDetector) Initialize(ctx context.Context) error {
	return m.initErr
}

func (m *MockDetector) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready
}

func (m *MockDetector) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initErr
}

func (m *MockDetector) DetectFaces(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.FaceLandmarks, error) {
	return m.current().Faces, nil
}

func (m *MockDetector) RecognizeGestures(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.HandDetection, error) {
	detections := m.current()
	m.advance()
	return detections.Hands, nil
}

// current returns the scripted detections for the present frame.
func (m *MockDetector) current() entities.FrameDetections {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return entities.FrameDetections{}
	}
	if m.cursor >= len(m.frames) {
		return m.frames[len(m.frames)-1]
	}
	return m.frames[m.cursor]
}

// advance moves to the next scripted frame; called after the gesture pass,
// the second of the two per-frame detector calls.
func (m *MockDetector) advance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cursor < len(m.frames) {
		m.cursor++
	}
}
