package entities

// Point is a 2-D landmark coordinate normalized to [0,1] in frame space.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FaceLandmarks is one detected face as an ordered set of normalized points.
// Point order follows the face mesh topology of the detection model.
type FaceLandmarks struct {
	Points []Point `json:"points"`
}

// Face mesh indices for the inner lips, used as the mouth-openness proxy.
const (
	LandmarkUpperInnerLip = 13
	LandmarkLowerInnerLip = 14
)

// LandmarkMiddleFingertip anchors the hand meter overlay.
const LandmarkMiddleFingertip = 12

// HandDetection is one detected hand with at most one recognized gesture
// label. Gesture is empty when no gesture was recognized for the hand.
type HandDetection struct {
	Points  []Point `json:"points"`
	Gesture string  `json:"gesture,omitempty"`
}

// FrameDetections carries one frame's worth of detector output. Transient;
// lifetime is a single frame.
type FrameDetections struct {
	Faces []FaceLandmarks
	Hands []HandDetection
}
