package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/haniipp/cybersentient/domain/entities"
)

// fakeDetector serves whatever faces and hands the test sets before each
// Advance call.
type fakeDetector struct {
	ready   bool
	faces   []entities.FaceLandmarks
	hands   []entities.HandDetection
	faceErr error
	handErr error
}

func (f *fakeDetector) Initialize(ctx context.Context) error { return nil }
func (f *fakeDetector) Ready() bool                          { return f.ready }
func (f *fakeDetector) Err() error                           { return nil }

func (f *fakeDetector) DetectFaces(ctx context.Context, frame []byte, ts time.Time) ([]entities.FaceLandmarks, error) {
	return f.faces, f.faceErr
}

func (f *fakeDetector) RecognizeGestures(ctx context.Context, frame []byte, ts time.Time) ([]entities.HandDetection, error) {
	return f.hands, f.handErr
}

func newTestSession(t *testing.T, detector *fakeDetector) (*AnnotationSession, *time.Time) {
	session := NewAnnotationSession(detector, 1000, 1000, zaptest.NewLogger(t))
	current := time.Unix(1_700_000_000, 0)
	session.now = func() time.Time { return current }
	return session, &current
}

func facePoints(topLeft, bottomRight entities.Point) []entities.FaceLandmarks {
	return []entities.FaceLandmarks{{Points: []entities.Point{topLeft, bottomRight}}}
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestAdvanceDetectorNotReady(t *testing.T) {
	detector := &fakeDetector{ready: false}
	session, _ := newTestSession(t, detector)

	annotation := session.Advance(context.Background(), []byte("frame"))
	if len(annotation.Overlays) != 0 || len(annotation.Announcements) != 0 || annotation.Capture {
		t.Errorf("expected empty annotation while detector warms up, got %+v", annotation)
	}
}

func TestAdvanceDetectorError(t *testing.T) {
	detector := &fakeDetector{
		ready:   true,
		faceErr: errors.New("sidecar timeout"),
		handErr: errors.New("sidecar timeout"),
	}
	session, _ := newTestSession(t, detector)

	annotation := session.Advance(context.Background(), []byte("frame"))
	if annotation.FaceCount != 0 || annotation.HandCount != 0 {
		t.Errorf("detector errors should yield empty counts, got %+v", annotation)
	}
}

func TestFaceBoxMirroredAndSmoothed(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, now := newTestSession(t, detector)

	// First frame: box snaps directly to the detection.
	detector.faces = facePoints(entities.Point{X: 0.1, Y: 0.1}, entities.Point{X: 0.3, Y: 0.3})
	annotation := session.Advance(context.Background(), []byte("f1"))

	if len(annotation.Overlays) != 5 {
		t.Fatalf("got %d overlays, want 5 per face", len(annotation.Overlays))
	}
	box := annotation.Overlays[0]
	if box.Kind != entities.OverlayFaceBox {
		t.Fatalf("first overlay = %q, want face box", box.Kind)
	}
	// 1000px frame, landmarks span x 100..300, mirrored: 1000 - 100 - 200.
	if !almostEqual(box.Box.X, 700) || !almostEqual(box.Box.Y, 100) ||
		!almostEqual(box.Box.W, 200) || !almostEqual(box.Box.H, 200) {
		t.Errorf("box = %+v, want {700 100 200 200}", box.Box)
	}

	// Second frame: the face moved 100px right, the box eases 35% of the way.
	*now = now.Add(50 * time.Millisecond)
	detector.faces = facePoints(entities.Point{X: 0.2, Y: 0.1}, entities.Point{X: 0.4, Y: 0.3})
	annotation = session.Advance(context.Background(), []byte("f2"))

	box = annotation.Overlays[0]
	if !almostEqual(box.Box.X, 665) {
		t.Errorf("smoothed X = %v, want 665 (700 eased 35%% toward 600)", box.Box.X)
	}
	if !almostEqual(box.Box.W, 200) {
		t.Errorf("smoothed W = %v, want 200", box.Box.W)
	}
}

func TestFaceOverlayShapes(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, _ := newTestSession(t, detector)

	detector.faces = facePoints(entities.Point{X: 0.1, Y: 0.1}, entities.Point{X: 0.3, Y: 0.3})
	annotation := session.Advance(context.Background(), []byte("f1"))

	kinds := make([]entities.OverlayKind, len(annotation.Overlays))
	for i, op := range annotation.Overlays {
		kinds[i] = op.Kind
	}
	want := []entities.OverlayKind{
		entities.OverlayFaceBox,
		entities.OverlayCornerTick,
		entities.OverlayCornerTick,
		entities.OverlayFaceLabel,
		entities.OverlayFaceMesh,
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("overlay[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}

	label := annotation.Overlays[3]
	if label.Text != "IDENTITY CONFIRMED" {
		t.Errorf("label text = %q, want IDENTITY CONFIRMED", label.Text)
	}
	if !almostEqual(label.Anchor.Y, 100-24) {
		t.Errorf("label anchor Y = %v, want 24px above the box", label.Anchor.Y)
	}

	tick := annotation.Overlays[2]
	if !almostEqual(tick.Arm.X, -20) || !almostEqual(tick.Arm.Y, -20) {
		t.Errorf("bottom-right tick arm = %+v, want inward arms", tick.Arm)
	}
}

func TestDirectionAnnouncements(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, now := newTestSession(t, detector)

	// Frame 1 establishes the previous center; greeting fires here.
	detector.faces = facePoints(entities.Point{X: 0.1, Y: 0.1}, entities.Point{X: 0.3, Y: 0.3})
	session.Advance(context.Background(), []byte("f1"))

	// Frame 2: center moves 100px right, well past 2% of the frame.
	*now = now.Add(2 * time.Second)
	detector.faces = facePoints(entities.Point{X: 0.2, Y: 0.1}, entities.Point{X: 0.4, Y: 0.3})
	annotation := session.Advance(context.Background(), []byte("f2"))

	if !containsAnnouncement(annotation, "Face right") {
		t.Errorf("announcements = %v, want Face right", annotation.Announcements)
	}

	// Frame 3 moves again immediately: still inside the cooldown.
	*now = now.Add(500 * time.Millisecond)
	detector.faces = facePoints(entities.Point{X: 0.3, Y: 0.1}, entities.Point{X: 0.5, Y: 0.3})
	annotation = session.Advance(context.Background(), []byte("f3"))

	if containsAnnouncement(annotation, "Face right") {
		t.Errorf("direction fired inside its cooldown: %v", annotation.Announcements)
	}
}

func TestDirectionPhrase(t *testing.T) {
	tests := []struct {
		name           string
		dx, dy, tx, ty float64
		want           string
	}{
		{"right", 30, 0, 20, 20, "Face right"},
		{"left", -30, 5, 20, 20, "Face left"},
		{"down", 5, 30, 20, 20, "Face down"},
		{"up", 0, -30, 20, 20, "Face up"},
		{"below threshold", 10, 10, 20, 20, ""},
		{"horizontal dominates", 40, 30, 20, 20, "Face right"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := directionPhrase(tt.dx, tt.dy, tt.tx, tt.ty); got != tt.want {
				t.Errorf("directionPhrase(%v, %v) = %q, want %q", tt.dx, tt.dy, got, tt.want)
			}
		})
	}
}

func TestGreetingCooldown(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, now := newTestSession(t, detector)
	detector.faces = facePoints(entities.Point{X: 0.1, Y: 0.1}, entities.Point{X: 0.3, Y: 0.3})

	annotation := session.Advance(context.Background(), []byte("f1"))
	if !containsAnnouncement(annotation, "Identity Confirmed. Access Granted.") {
		t.Fatalf("first sighting should greet, got %v", annotation.Announcements)
	}

	*now = now.Add(5 * time.Second)
	annotation = session.Advance(context.Background(), []byte("f2"))
	if containsAnnouncement(annotation, "Identity Confirmed. Access Granted.") {
		t.Errorf("greeting fired inside its cooldown: %v", annotation.Announcements)
	}

	*now = now.Add(11 * time.Second)
	annotation = session.Advance(context.Background(), []byte("f3"))
	if !containsAnnouncement(annotation, "Identity Confirmed. Access Granted.") {
		t.Errorf("greeting should fire again after the cooldown, got %v", annotation.Announcements)
	}
}

func TestMewingDetection(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, now := newTestSession(t, detector)

	closedMouth := []entities.FaceLandmarks{{Points: mouthPoints(0.300, 0.301)}}
	openMouth := []entities.FaceLandmarks{{Points: mouthPoints(0.300, 0.330)}}

	// Closed mouth starts the hold clock; nothing fires yet.
	detector.faces = closedMouth
	annotation := session.Advance(context.Background(), []byte("f1"))
	if containsAnnouncement(annotation, "Mewing posture detected") {
		t.Fatal("mewing fired before the hold window elapsed")
	}

	// Still closed past the hold window: fires once.
	*now = now.Add(900 * time.Millisecond)
	annotation = session.Advance(context.Background(), []byte("f2"))
	if !containsAnnouncement(annotation, "Mewing posture detected") {
		t.Fatalf("mewing should fire after the hold window, got %v", annotation.Announcements)
	}

	// Within the 5s cooldown: silent.
	*now = now.Add(1 * time.Second)
	annotation = session.Advance(context.Background(), []byte("f3"))
	if containsAnnouncement(annotation, "Mewing posture detected") {
		t.Error("mewing fired inside its cooldown")
	}

	// Opening the mouth resets the hold clock.
	*now = now.Add(10 * time.Second)
	detector.faces = openMouth
	session.Advance(context.Background(), []byte("f4"))
	detector.faces = closedMouth
	annotation = session.Advance(context.Background(), []byte("f5"))
	if containsAnnouncement(annotation, "Mewing posture detected") {
		t.Error("mewing fired without a fresh hold window")
	}
}

// mouthPoints builds a landmark set spanning y 0.1..0.5 with the inner-lip
// pair at the given heights.
func mouthPoints(upperLipY, lowerLipY float64) []entities.Point {
	points := make([]entities.Point, 15)
	for i := range points {
		points[i] = entities.Point{X: 0.3, Y: 0.3}
	}
	points[0] = entities.Point{X: 0.1, Y: 0.1}
	points[1] = entities.Point{X: 0.5, Y: 0.5}
	points[entities.LandmarkUpperInnerLip] = entities.Point{X: 0.3, Y: upperLipY}
	points[entities.LandmarkLowerInnerLip] = entities.Point{X: 0.3, Y: lowerLipY}
	return points
}

func TestGestureAnnouncements(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, now := newTestSession(t, detector)

	detector.hands = []entities.HandDetection{{
		Points:  handPoints(),
		Gesture: "Victory",
	}}
	annotation := session.Advance(context.Background(), []byte("f1"))

	if annotation.Gesture != "Victory" {
		t.Errorf("Gesture = %q, want Victory", annotation.Gesture)
	}
	if !containsAnnouncement(annotation, "Victory sign") {
		t.Errorf("announcements = %v, want Victory sign", annotation.Announcements)
	}
	if annotation.Capture {
		t.Error("victory should not trigger capture")
	}

	// Inside the gesture cooldown: no phrase.
	*now = now.Add(1 * time.Second)
	annotation = session.Advance(context.Background(), []byte("f2"))
	if containsAnnouncement(annotation, "Victory sign") {
		t.Error("gesture phrase fired inside its cooldown")
	}

	// Unknown gestures fall back to underscores-to-spaces.
	*now = now.Add(5 * time.Second)
	detector.hands[0].Gesture = "Secret_Handshake"
	annotation = session.Advance(context.Background(), []byte("f3"))
	if !containsAnnouncement(annotation, "Secret Handshake") {
		t.Errorf("announcements = %v, want Secret Handshake", annotation.Announcements)
	}
}

func TestThumbsUpTriggersCapture(t *testing.T) {
	detector := &fakeDetector{ready: true}
	session, _ := newTestSession(t, detector)

	detector.hands = []entities.HandDetection{{
		Points:  handPoints(),
		Gesture: "Thumb_Up",
	}}
	annotation := session.Advance(context.Background(), []byte("f1"))

	if !annotation.Capture {
		t.Error("thumbs up should trigger capture")
	}
	if !containsAnnouncement(annotation, "Thumbs up") {
		t.Errorf("announcements = %v, want Thumbs up", annotation.Announcements)
	}

	// Ring meter floats above the mirrored middle fingertip.
	var ring *entities.OverlayOp
	for i := range annotation.Overlays {
		if annotation.Overlays[i].Kind == entities.OverlayRingMeter {
			ring = &annotation.Overlays[i]
		}
	}
	if ring == nil {
		t.Fatal("missing ring meter overlay")
	}
	if !almostEqual(ring.Anchor.X, 750) || !almostEqual(ring.Anchor.Y, 340) {
		t.Errorf("ring anchor = %+v, want {750 340}", ring.Anchor)
	}
}

// handPoints builds 21 landmarks with the middle fingertip at (0.25, 0.4).
func handPoints() []entities.Point {
	points := make([]entities.Point, 21)
	for i := range points {
		points[i] = entities.Point{X: 0.5, Y: 0.5}
	}
	points[entities.LandmarkMiddleFingertip] = entities.Point{X: 0.25, Y: 0.4}
	return points
}

func containsAnnouncement(annotation *entities.FrameAnnotation, phrase string) bool {
	for _, a := range annotation.Announcements {
		if a == phrase {
			return true
		}
	}
	return false
}
