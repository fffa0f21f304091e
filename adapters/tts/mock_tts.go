package tts

import (
	"context"
	"fmt"
	"strings"

	"github.com/haniipp/cybersentient/domain/repositories"
)

// MockTTS returns canned audio chunks for testing without API credentials.
type MockTTS struct {
	// Chunks overrides the synthesized audio when non-nil.
	Chunks [][]byte
	// Err is returned from ConvertTextToSpeech when non-nil.
	Err error
	// Requests records every text passed in.
	Requests []string
}

var _ repositories.TextToSpeech = (*MockTTS)(nil)

func NewMockTTS() *MockTTS {
	return &MockTTS{}
}

func (m *MockTTS) ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}
	if m.Err != nil {
		return nil, m.Err
	}
	m.Requests = append(m.Requests, text)

	chunks := m.Chunks
	if chunks == nil {
		chunks = [][]byte{[]byte("mock-audio:" + text)}
	}

	audioChan := make(chan []byte, len(chunks))
	go func() {
		defer close(audioChan)
		for _, chunk := range chunks {
			select {
			case audioChan <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioChan, nil
}
