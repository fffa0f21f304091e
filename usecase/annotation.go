package usecase

import (
	"context"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
)

const (
	// smoothingAlpha is the EMA weight applied to face boxes per frame.
	smoothingAlpha = 0.35
	// motionFraction of frame width/height the face center must travel
	// before a direction phrase fires.
	motionFraction = 0.02
	// mouthClosedRatio is the lip gap over face height below which the mouth
	// counts as closed.
	mouthClosedRatio = 0.015

	directionCooldown = 1500 * time.Millisecond
	mouthClosedHold   = 800 * time.Millisecond
	mewCooldown       = 5000 * time.Millisecond
	greetingCooldown  = 15000 * time.Millisecond
	gestureCooldown   = 2000 * time.Millisecond

	faceLabelText  = "IDENTITY CONFIRMED"
	greetingPhrase = "Identity Confirmed. Access Granted."
	mewingPhrase   = "Mewing posture detected"

	// triggerGesture auto-invokes image capture.
	triggerGesture = "Thumb_Up"
)

var gesturePhrases = map[string]string{
	"Thumb_Up":    "Thumbs up",
	"Open_Palm":   "Open palm",
	"Closed_Fist": "Closed fist",
	"Pointing_Up": "Pointing up",
	"Victory":     "Victory sign",
	"ILoveYou":    "I love you sign",
}

// AnnotationSession holds the per-frame bookkeeping for one camera view:
// smoothed face boxes, motion and mouth-closure state machines, and voice
// cooldown clocks. It is owned by the view's lifetime and discarded when the
// camera closes; it is not safe for concurrent use and is always advanced
// serially, one frame at a time.
type AnnotationSession struct {
	detector repositories.LandmarkDetector
	logger   *zap.Logger

	width  float64
	height float64

	// now is swappable so cooldown behavior is testable.
	now func() time.Time

	// smoothed boxes are keyed positionally by face index, reused only while
	// detection returns indices in a stable order.
	smoothed       map[int]entities.Box
	prevFaceCenter *entities.Point

	lastDirectionAt  time.Time
	lastMewAt        time.Time
	lastGreetingAt   time.Time
	lastGestureAt    time.Time
	mouthClosedSince *time.Time
}

// NewAnnotationSession creates a session for a camera view of the given pixel
// dimensions.
func NewAnnotationSession(detector repositories.LandmarkDetector, width, height int, logger *zap.Logger) *AnnotationSession {
	return &AnnotationSession{
		detector: detector,
		logger:   logger,
		width:    float64(width),
		height:   float64(height),
		now:      time.Now,
		smoothed: make(map[int]entities.Box),
	}
}

// Advance processes one video frame and returns the overlay instructions,
// announcements and capture decision for it. It never fails the loop: a
// not-ready detector or a detector error yields an empty annotation.
func (s *AnnotationSession) Advance(ctx context.Context, frame []byte) *entities.FrameAnnotation {
	annotation := &entities.FrameAnnotation{}
	if !s.detector.Ready() {
		return annotation
	}

	now := s.now()

	faces, err := s.detector.DetectFaces(ctx, frame, now)
	if err != nil {
		s.logger.Warn("Face detection failed for frame", zap.Error(err))
	}
	annotation.FaceCount = len(faces)
	for idx, face := range faces {
		s.annotateFace(annotation, idx, face, now)
	}

	hands, err := s.detector.RecognizeGestures(ctx, frame, now)
	if err != nil {
		s.logger.Warn("Gesture recognition failed for frame", zap.Error(err))
	}
	annotation.HandCount = len(hands)
	for _, hand := range hands {
		s.annotateHand(annotation, hand, now)
	}

	return annotation
}

func (s *AnnotationSession) annotateFace(annotation *entities.FrameAnnotation, idx int, face entities.FaceLandmarks, now time.Time) {
	if len(face.Points) == 0 {
		return
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range face.Points {
		x := p.X * s.width
		y := p.Y * s.height
		minX = math.Min(minX, x)
		minY = math.Min(minY, y)
		maxX = math.Max(maxX, x)
		maxY = math.Max(maxY, y)
	}

	w := math.Max(0, maxX-minX)
	h := math.Max(0, maxY-minY)
	// Overlay space is mirrored; flip the box horizontally.
	cur := entities.Box{X: s.width - minX - w, Y: minY, W: w, H: h}

	prev, ok := s.smoothed[idx]
	if !ok {
		prev = cur
	}
	smoothed := entities.Box{
		X: lerp(prev.X, cur.X, smoothingAlpha),
		Y: lerp(prev.Y, cur.Y, smoothingAlpha),
		W: lerp(prev.W, cur.W, smoothingAlpha),
		H: lerp(prev.H, cur.H, smoothingAlpha),
	}
	s.smoothed[idx] = smoothed

	annotation.Overlays = append(annotation.Overlays,
		entities.OverlayOp{Kind: entities.OverlayFaceBox, Box: smoothed},
		entities.OverlayOp{
			Kind:   entities.OverlayCornerTick,
			Anchor: entities.Point{X: smoothed.X, Y: smoothed.Y},
			Arm:    entities.Point{X: 20, Y: 20},
		},
		entities.OverlayOp{
			Kind:   entities.OverlayCornerTick,
			Anchor: entities.Point{X: smoothed.X + smoothed.W, Y: smoothed.Y + smoothed.H},
			Arm:    entities.Point{X: -20, Y: -20},
		},
		entities.OverlayOp{
			Kind:   entities.OverlayFaceLabel,
			Anchor: entities.Point{X: smoothed.X, Y: smoothed.Y - 24},
			Text:   faceLabelText,
		},
		entities.OverlayOp{Kind: entities.OverlayFaceMesh, Points: face.Points},
	)

	// Motion, mouth and greeting state machines track the first face only.
	if idx != 0 {
		return
	}

	center := entities.Point{X: (minX + maxX) / 2, Y: (minY + maxY) / 2}
	prevCenter := s.prevFaceCenter
	s.prevFaceCenter = &center
	if prevCenter != nil && now.Sub(s.lastDirectionAt) > directionCooldown {
		if phrase := directionPhrase(center.X-prevCenter.X, center.Y-prevCenter.Y, s.width*motionFraction, s.height*motionFraction); phrase != "" {
			annotation.Announcements = append(annotation.Announcements, phrase)
			s.lastDirectionAt = now
		}
	}

	s.trackMouth(annotation, face, minY, maxY, now)

	if now.Sub(s.lastGreetingAt) > greetingCooldown {
		annotation.Announcements = append(annotation.Announcements, greetingPhrase)
		s.lastGreetingAt = now
	}
}

// trackMouth watches the inner-lip gap as a mouth-openness proxy; a mouth
// held closed past the hold window announces the mewing phrase.
func (s *AnnotationSession) trackMouth(annotation *entities.FrameAnnotation, face entities.FaceLandmarks, minY, maxY float64, now time.Time) {
	if len(face.Points) <= entities.LandmarkLowerInnerLip {
		return
	}

	lipTop := face.Points[entities.LandmarkUpperInnerLip].Y * s.height
	lipBot := face.Points[entities.LandmarkLowerInnerLip].Y * s.height
	faceH := math.Max(1, maxY-minY)
	ratio := math.Abs(lipBot-lipTop) / faceH

	if ratio >= mouthClosedRatio {
		s.mouthClosedSince = nil
		return
	}

	if s.mouthClosedSince == nil {
		since := now
		s.mouthClosedSince = &since
	}
	held := now.Sub(*s.mouthClosedSince)
	if held > mouthClosedHold && now.Sub(s.lastMewAt) > mewCooldown {
		annotation.Announcements = append(annotation.Announcements, mewingPhrase)
		s.lastMewAt = now
	}
}

func (s *AnnotationSession) annotateHand(annotation *entities.FrameAnnotation, hand entities.HandDetection, now time.Time) {
	if len(hand.Points) == 0 {
		return
	}

	annotation.Overlays = append(annotation.Overlays,
		entities.OverlayOp{Kind: entities.OverlayHandSkeleton, Points: hand.Points},
	)

	if len(hand.Points) > entities.LandmarkMiddleFingertip {
		tip := hand.Points[entities.LandmarkMiddleFingertip]
		annotation.Overlays = append(annotation.Overlays, entities.OverlayOp{
			Kind:   entities.OverlayRingMeter,
			Anchor: entities.Point{X: s.width - tip.X*s.width, Y: tip.Y*s.height - 60},
		})
	}

	if hand.Gesture == "" {
		return
	}
	annotation.Gesture = hand.Gesture

	if now.Sub(s.lastGestureAt) > gestureCooldown {
		phrase, ok := gesturePhrases[hand.Gesture]
		if !ok {
			phrase = strings.ReplaceAll(hand.Gesture, "_", " ")
		}
		annotation.Announcements = append(annotation.Announcements, phrase)
		s.lastGestureAt = now
	}

	if hand.Gesture == triggerGesture {
		annotation.Capture = true
	}
}

func directionPhrase(dx, dy, tx, ty float64) string {
	switch {
	case math.Abs(dx) > math.Abs(dy) && math.Abs(dx) > tx:
		if dx > 0 {
			return "Face right"
		}
		return "Face left"
	case math.Abs(dy) > ty:
		if dy > 0 {
			return "Face down"
		}
		return "Face up"
	default:
		return ""
	}
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
