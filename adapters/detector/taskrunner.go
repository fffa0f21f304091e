package detector

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
)

// Compute delegates, tried in order: accelerated first, general-purpose
// fallback.
const (
	DelegateGPU = "gpu"
	DelegateCPU = "cpu"
)

var defaultBaseURLs = []string{
	"http://127.0.0.1:9091",
	"https://vision.cybersentient.dev/tasks-vision/0.10.3",
	"https://vision.cybersentient.dev/tasks-vision/latest",
}

// TaskRunnerConfig holds configuration for the task-runner adapter.
// Optional fields with defaults:
// - BaseURLs: candidate asset locations, local first then remote
// - Delegates: compute delegate preference order (default gpu then cpu)
// - RequestTimeout: per-call HTTP timeout (default 5s)
type TaskRunnerConfig struct {
	BaseURLs       []string
	Delegates      []string
	RequestTimeout time.Duration
}

// TaskRunnerDetector implements LandmarkDetector against a sidecar running
// the pretrained face-landmark and gesture task models behind an HTTP API.
// Initialization walks every base URL x delegate combination until one
// answers; exhaustion leaves the detector in an explicit unavailable state
// and the camera keeps working without overlay.
type TaskRunnerDetector struct {
	baseURLs  []string
	delegates []string
	client    *http.Client
	logger    *zap.Logger

	mu       sync.RWMutex
	baseURL  string
	delegate string
	ready    bool
	lastErr  error
}

var _ repositories.LandmarkDetector = (*TaskRunnerDetector)(nil)

// NewTaskRunnerDetector creates the adapter. It does not touch the network;
// call Initialize (typically in a background goroutine) to bring it up.
func NewTaskRunnerDetector(config TaskRunnerConfig, logger *zap.Logger) *TaskRunnerDetector {
	baseURLs := config.BaseURLs
	if len(baseURLs) == 0 {
		baseURLs = defaultBaseURLs
		logger.Info("Using default task runner locations", zap.Strings("baseURLs", baseURLs))
	}

	delegates := config.Delegates
	if len(delegates) == 0 {
		delegates = []string{DelegateGPU, DelegateCPU}
	}

	timeout := config.RequestTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &TaskRunnerDetector{
		baseURLs:  baseURLs,
		delegates: delegates,
		client:    &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// Initialize tries every base URL x delegate combination in preference order
// and keeps the first one that loads both task models. Returns the last
// error after exhausting all candidates; the detector then stays in the
// unavailable state.
func (d *TaskRunnerDetector) Initialize(ctx context.Context) error {
	var lastErr error
	for _, baseURL := range d.baseURLs {
		for _, delegate := range d.delegates {
			if err := d.initRuntime(ctx, baseURL, delegate); err != nil {
				d.logger.Warn("Detector runtime candidate failed",
					zap.String("baseURL", baseURL),
					zap.String("delegate", delegate),
					zap.Error(err))
				lastErr = err
				continue
			}

			d.mu.Lock()
			d.baseURL = baseURL
			d.delegate = delegate
			d.ready = true
			d.lastErr = nil
			d.mu.Unlock()

			d.logger.Info("Detector runtime initialized",
				zap.String("baseURL", baseURL),
				zap.String("delegate", delegate))
			return nil
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("no task runner candidates configured")
	}

	d.mu.Lock()
	d.ready = false
	d.lastErr = lastErr
	d.mu.Unlock()

	d.logger.Error("Detector initialization exhausted all candidates", zap.Error(lastErr))
	return lastErr
}

// Ready reports whether a runtime combination was brought up.
func (d *TaskRunnerDetector) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.ready
}

// Err returns the last initialization error, nil while ready or still
// initializing.
func (d *TaskRunnerDetector) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// DetectFaces returns the face landmark sets for the frame, or empty results
// before readiness.
func (d *TaskRunnerDetector) DetectFaces(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.FaceLandmarks, error) {
	var result struct {
		Faces []entities.FaceLandmarks `json:"faces"`
	}
	if err := d.detect(ctx, "/v1/face_landmarks", frame, timestamp, &result); err != nil {
		return nil, err
	}
	return result.Faces, nil
}

// RecognizeGestures returns the hand landmark sets with gesture labels, or
// empty results before readiness.
func (d *TaskRunnerDetector) RecognizeGestures(ctx context.Context, frame []byte, timestamp time.Time) ([]entities.HandDetection, error) {
	var result struct {
		Hands []entities.HandDetection `json:"hands"`
	}
	if err := d.detect(ctx, "/v1/gestures", frame, timestamp, &result); err != nil {
		return nil, err
	}
	return result.Hands, nil
}

type initRequest struct {
	Delegate string `json:"delegate"`
	Models   struct {
		FaceLandmarker    string `json:"face_landmarker"`
		GestureRecognizer string `json:"gesture_recognizer"`
	} `json:"models"`
	RunningMode string `json:"running_mode"`
	NumFaces    int    `json:"num_faces"`
	NumHands    int    `json:"num_hands"`
}

func (d *TaskRunnerDetector) initRuntime(ctx context.Context, baseURL, delegate string) error {
	req := initRequest{Delegate: delegate, RunningMode: "video", NumFaces: 3, NumHands: 2}
	req.Models.FaceLandmarker = "face_landmarker.task"
	req.Models.GestureRecognizer = "gesture_recognizer.task"

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal init request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/init", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create init request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("task runner unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("task runner init returned %d: %s", resp.StatusCode, string(errorBody))
	}
	return nil
}

type detectRequest struct {
	Image       string `json:"image"` // base64-encoded JPEG frame
	TimestampMS int64  `json:"timestamp_ms"`
	Delegate    string `json:"delegate"`
}

func (d *TaskRunnerDetector) detect(ctx context.Context, path string, frame []byte, timestamp time.Time, out interface{}) error {
	d.mu.RLock()
	ready := d.ready
	baseURL := d.baseURL
	delegate := d.delegate
	d.mu.RUnlock()

	if !ready {
		return nil
	}

	body, err := json.Marshal(detectRequest{
		Image:       base64.StdEncoding.EncodeToString(frame),
		TimestampMS: timestamp.UnixMilli(),
		Delegate:    delegate,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal detect request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create detect request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("detect call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("detect call returned %d: %s", resp.StatusCode, string(errorBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode detect response: %w", err)
	}
	return nil
}
