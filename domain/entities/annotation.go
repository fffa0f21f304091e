package entities

// OverlayKind tags a drawing instruction for the console overlay canvas.
type OverlayKind string

const (
	OverlayFaceBox      OverlayKind = "face_box"
	OverlayCornerTick   OverlayKind = "corner_tick"
	OverlayFaceLabel    OverlayKind = "face_label"
	OverlayFaceMesh     OverlayKind = "face_mesh"
	OverlayHandSkeleton OverlayKind = "hand_skeleton"
	OverlayRingMeter    OverlayKind = "ring_meter"
)

// OverlayOp is one drawing instruction. Box and Anchor are in mirrored pixel
// coordinates; Points are normalized and mirrored client-side together with
// the video element.
type OverlayOp struct {
	Kind   OverlayKind `json:"kind"`
	Box    Box         `json:"box,omitempty"`
	Anchor Point       `json:"anchor,omitempty"`
	// Arm holds the corner tick arm lengths (signed, pixels).
	Arm    Point   `json:"arm,omitempty"`
	Text   string  `json:"text,omitempty"`
	Points []Point `json:"points,omitempty"`
}

// FrameAnnotation is the outcome of advancing the annotation session by one
// frame: what to draw, what to say, and whether to capture.
type FrameAnnotation struct {
	Overlays      []OverlayOp `json:"overlays"`
	Announcements []string    `json:"announcements,omitempty"`
	Capture       bool        `json:"capture,omitempty"`
	FaceCount     int         `json:"face_count"`
	HandCount     int         `json:"hand_count"`
	Gesture       string      `json:"gesture,omitempty"`
}
