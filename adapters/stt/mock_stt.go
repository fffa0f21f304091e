package stt

import (
	"context"
	"fmt"

	"github.com/haniipp/cybersentient/domain/repositories"
)

// MockSpeechToText returns a fixed transcript for testing without Google
// Cloud credentials.
type MockSpeechToText struct {
	// Transcript is returned from End.
	Transcript string
	// Err, when non-nil, is returned from End instead.
	Err error
}

var _ repositories.SpeechToText = (*MockSpeechToText)(nil)

func NewMockSpeechToText(transcript string) *MockSpeechToText {
	return &MockSpeechToText{Transcript: transcript}
}

func (m *MockSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	return &mockStreamingSession{parent: m}, nil
}

type mockStreamingSession struct {
	parent *MockSpeechToText
	// Received accumulates all streamed audio for assertions.
	Received []byte
	ended    bool
}

func (s *mockStreamingSession) Stream(audio []byte) error {
	if s.ended {
		return fmt.Errorf("stream already ended")
	}
	s.Received = append(s.Received, audio...)
	return nil
}

func (s *mockStreamingSession) End() (string, error) {
	s.ended = true
	if s.parent.Err != nil {
		return "", s.parent.Err
	}
	return s.parent.Transcript, nil
}
