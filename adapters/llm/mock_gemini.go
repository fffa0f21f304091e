package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/haniipp/cybersentient/domain/repositories"
)

// MockGeminiLLM is a placeholder backend for development without an API key.
// It streams a canned reply word by word.
type MockGeminiLLM struct{}

// NewMockGeminiLLM creates a new mock backend.
func NewMockGeminiLLM() repositories.LargeLanguageModel {
	return &MockGeminiLLM{}
}

// StreamGenerate implements repositories.LargeLanguageModel.
func (m *MockGeminiLLM) StreamGenerate(ctx context.Context, req repositories.GenerationRequest) (repositories.GenerationStream, error) {
	reply := fmt.Sprintf(
		"SIMULATION MODE (no API key configured). Model %s acknowledged directive: %q. Configure GEMINI_API_KEY to reach the live neural core.",
		req.Model, req.Text,
	)

	stream := &mockStream{fragments: make(chan string, 4)}
	go func() {
		defer close(stream.fragments)
		for _, word := range strings.SplitAfter(reply, " ") {
			select {
			case stream.fragments <- word:
			case <-ctx.Done():
				return
			}
		}
	}()
	return stream, nil
}

type mockStream struct {
	fragments chan string
}

func (s *mockStream) Fragments() <-chan string { return s.fragments }

func (s *mockStream) Err() error { return nil }
