package websocket

import (
	"testing"
)

func TestValidateMessage(t *testing.T) {
	validator := NewMessageValidator()

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{
			name:    "valid chat request",
			payload: `{"type":"chat_request","text":"scan the subnet","provider":"Gemini 2.5 Flash","tool":"general_chat"}`,
			wantErr: false,
		},
		{
			name:    "chat request with only image",
			payload: `{"type":"chat_request","image":"data:image/jpeg;base64,/9j/4AAQ"}`,
			wantErr: false,
		},
		{
			name:    "chat request with nothing",
			payload: `{"type":"chat_request","text":"   "}`,
			wantErr: true,
		},
		{
			name:    "chat request with raw base64 image",
			payload: `{"type":"chat_request","text":"x","image":"/9j/4AAQ"}`,
			wantErr: true,
		},
		{
			name:    "valid clear history",
			payload: `{"type":"clear_history"}`,
			wantErr: false,
		},
		{
			name:    "valid scan start",
			payload: `{"type":"scan_start","width":640,"height":480}`,
			wantErr: false,
		},
		{
			name:    "scan start missing dimensions",
			payload: `{"type":"scan_start"}`,
			wantErr: true,
		},
		{
			name:    "valid listening start",
			payload: `{"type":"listening_start","sample_rate":16000,"encoding":"WEBM_OPUS"}`,
			wantErr: false,
		},
		{
			name:    "listening start absurd sample rate",
			payload: `{"type":"listening_start","sample_rate":100}`,
			wantErr: true,
		},
		{
			name:    "valid listening end",
			payload: `{"type":"listening_end","tool":"general_chat"}`,
			wantErr: false,
		},
		{
			name:    "unsupported type",
			payload: `{"type":"teleport"}`,
			wantErr: true,
		},
		{
			name:    "invalid json",
			payload: `{"type":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validator.ValidateMessage([]byte(tt.payload))
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateMessageTypes(t *testing.T) {
	validator := NewMessageValidator()

	parsed, err := validator.ValidateMessage([]byte(`{"type":"chat_request","text":"hello","provider":"Grok-1 (Simulated)"}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	msg, ok := parsed.(*ChatRequestMessage)
	if !ok {
		t.Fatalf("parsed = %T, want *ChatRequestMessage", parsed)
	}
	if msg.Text != "hello" {
		t.Errorf("Text = %q, want %q", msg.Text, "hello")
	}
	if msg.Provider != "Grok-1 (Simulated)" {
		t.Errorf("Provider = %q, want %q", msg.Provider, "Grok-1 (Simulated)")
	}

	parsed, err = validator.ValidateMessage([]byte(`{"type":"scan_start","width":1280,"height":720}`))
	if err != nil {
		t.Fatalf("ValidateMessage() error = %v", err)
	}
	scan, ok := parsed.(*ScanStartMessage)
	if !ok {
		t.Fatalf("parsed = %T, want *ScanStartMessage", parsed)
	}
	if scan.Width != 1280 || scan.Height != 720 {
		t.Errorf("dimensions = %dx%d, want 1280x720", scan.Width, scan.Height)
	}
}

func TestCreateErrorMessage(t *testing.T) {
	msg := CreateErrorMessage("stream_in_flight", "a response is still streaming")
	if msg.Type != MessageTypeError {
		t.Errorf("Type = %q, want %q", msg.Type, MessageTypeError)
	}
	if msg.Code != "stream_in_flight" {
		t.Errorf("Code = %q, want %q", msg.Code, "stream_in_flight")
	}
	if msg.Timestamp == "" {
		t.Error("Timestamp should be set")
	}
}
