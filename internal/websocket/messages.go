package websocket

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/haniipp/cybersentient/domain/entities"
)

// MessageType defines the type of WebSocket message
type MessageType string

// Supported message types
const (
	// Operator to server
	MessageTypeChatRequest    MessageType = "chat_request"
	MessageTypeClearHistory   MessageType = "clear_history"
	MessageTypeScanStart      MessageType = "scan_start"
	MessageTypeScanStop       MessageType = "scan_stop"
	MessageTypeListeningStart MessageType = "listening_start"
	MessageTypeListeningEnd   MessageType = "listening_end"

	// Server to operator
	MessageTypeChatChunk      MessageType = "chat_chunk"
	MessageTypeChatDone       MessageType = "chat_done"
	MessageTypeHistoryCleared MessageType = "history_cleared"
	MessageTypeOverlay        MessageType = "overlay"
	MessageTypeCapture        MessageType = "capture"
	MessageTypeAnnouncement   MessageType = "announcement"
	MessageTypeTranscript     MessageType = "transcript"
	MessageTypeError          MessageType = "error"
)

// BaseMessage defines the common structure for all WebSocket messages
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp string      `json:"timestamp,omitempty"`
}

// ChatRequestMessage is one operator submission from the terminal panel.
type ChatRequestMessage struct {
	BaseMessage
	Text     string `json:"text"`
	Image    string `json:"image,omitempty"` // base64 data URL
	Provider string `json:"provider,omitempty"`
	Tool     string `json:"tool,omitempty"`
}

// ClearHistoryMessage flushes the transcript back to a single ready message.
type ClearHistoryMessage struct {
	BaseMessage
}

// ScanStartMessage opens a bio-scan session. Width and height are the pixel
// dimensions of the frames the client will stream.
type ScanStartMessage struct {
	BaseMessage
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ScanStopMessage closes the bio-scan session.
type ScanStopMessage struct {
	BaseMessage
}

// ListeningStartMessage opens a voice query session.
type ListeningStartMessage struct {
	BaseMessage
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
	Language   string `json:"language,omitempty"`
}

// ListeningEndMessage finalizes a voice query session.
type ListeningEndMessage struct {
	BaseMessage
	Provider string `json:"provider,omitempty"`
	Tool     string `json:"tool,omitempty"`
}

// ChatChunkMessage carries one streamed fragment plus the accumulated text so
// the terminal can replace the pending message wholesale.
type ChatChunkMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	Fragment  string `json:"fragment"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// ChatDoneMessage finalizes a streamed response.
type ChatDoneMessage struct {
	BaseMessage
	MessageID string `json:"message_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

// HistoryClearedMessage acknowledges a transcript flush.
type HistoryClearedMessage struct {
	BaseMessage
	Messages []entities.Message `json:"messages"`
}

// OverlayMessage carries the draw instructions for one analyzed frame.
type OverlayMessage struct {
	BaseMessage
	Overlays  []entities.OverlayOp `json:"overlays"`
	Capture   bool                 `json:"capture,omitempty"`
	FaceCount int                  `json:"face_count"`
	HandCount int                  `json:"hand_count"`
	Gesture   string               `json:"gesture,omitempty"`
}

// CaptureMessage delivers a gesture-triggered snapshot as a data URL, ready
// to attach to the next chat submission.
type CaptureMessage struct {
	BaseMessage
	Image string `json:"image"`
}

// AnnouncementMessage precedes the binary audio chunks of one spoken
// announcement.
type AnnouncementMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// TranscriptMessage reports the recognized text of a voice query before the
// response stream starts.
type TranscriptMessage struct {
	BaseMessage
	Text string `json:"text"`
}

// ErrorMessage represents an error response
type ErrorMessage struct {
	BaseMessage
	Code    string `json:"error_code"`
	Message string `json:"message"`
}

// MessageValidator provides validation for WebSocket messages
type MessageValidator struct{}

// NewMessageValidator creates a new message validator
func NewMessageValidator() *MessageValidator {
	return &MessageValidator{}
}

// ValidateMessage parses an incoming message into its typed form.
func (v *MessageValidator) ValidateMessage(messageBytes []byte) (interface{}, error) {
	var base BaseMessage
	if err := json.Unmarshal(messageBytes, &base); err != nil {
		return nil, fmt.Errorf("invalid JSON format: %w", err)
	}

	switch base.Type {
	case MessageTypeChatRequest:
		var msg ChatRequestMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid chat request: %w", err)
		}
		if err := v.validateChatRequest(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeClearHistory:
		var msg ClearHistoryMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid clear history message: %w", err)
		}
		return &msg, nil

	case MessageTypeScanStart:
		var msg ScanStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid scan start message: %w", err)
		}
		if err := v.validateScanStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeScanStop:
		var msg ScanStopMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid scan stop message: %w", err)
		}
		return &msg, nil

	case MessageTypeListeningStart:
		var msg ListeningStartMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening start message: %w", err)
		}
		if err := v.validateListeningStart(&msg); err != nil {
			return nil, err
		}
		return &msg, nil

	case MessageTypeListeningEnd:
		var msg ListeningEndMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			return nil, fmt.Errorf("invalid listening end message: %w", err)
		}
		return &msg, nil

	default:
		return nil, fmt.Errorf("unsupported message type: %s", base.Type)
	}
}

func (v *MessageValidator) validateChatRequest(msg *ChatRequestMessage) error {
	if strings.TrimSpace(msg.Text) == "" && msg.Image == "" {
		return fmt.Errorf("chat request needs text or an image")
	}
	if msg.Image != "" && !strings.HasPrefix(msg.Image, "data:") {
		return fmt.Errorf("image must be a base64 data URL")
	}
	return nil
}

func (v *MessageValidator) validateScanStart(msg *ScanStartMessage) error {
	if msg.Width <= 0 || msg.Height <= 0 {
		return fmt.Errorf("scan dimensions must be positive, got %dx%d", msg.Width, msg.Height)
	}
	return nil
}

func (v *MessageValidator) validateListeningStart(msg *ListeningStartMessage) error {
	if msg.SampleRate != 0 && (msg.SampleRate < 8000 || msg.SampleRate > 48000) {
		return fmt.Errorf("sample_rate must be between 8000 and 48000")
	}
	return nil
}

// CreateErrorMessage creates a standardized error message
func CreateErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeError,
			Timestamp: time.Now().Format(time.RFC3339),
		},
		Code:    code,
		Message: message,
	}
}
