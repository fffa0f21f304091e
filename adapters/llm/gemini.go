package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/haniipp/cybersentient/domain/repositories"
)

const defaultAcquireTimeout = 20 * time.Second

// GeminiConfig holds configuration for the Gemini adapter.
// Required fields:
// - APIKey: your Google AI API key
// Optional fields with defaults:
// - AcquireTimeout: how long StreamGenerate waits for the stream handle
//   (default 20s; covers acquisition only, not total stream duration)
type GeminiConfig struct {
	APIKey         string
	AcquireTimeout time.Duration
}

// GeminiLLM implements the LargeLanguageModel interface using Google's
// Gemini API. This is the only real backend; "simulated" providers are this
// model behind a style preamble.
type GeminiLLM struct {
	client         *genai.Client
	logger         *zap.Logger
	acquireTimeout time.Duration
}

var _ repositories.LargeLanguageModel = (*GeminiLLM)(nil)

// NewGeminiLLM creates a new Gemini adapter.
func NewGeminiLLM(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiLLM, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Google AI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	acquireTimeout := config.AcquireTimeout
	if acquireTimeout == 0 {
		acquireTimeout = defaultAcquireTimeout
		logger.Info("Using default acquire timeout", zap.Duration("acquireTimeout", acquireTimeout))
	}

	return &GeminiLLM{
		client:         client,
		logger:         logger,
		acquireTimeout: acquireTimeout,
	}, nil
}

// StreamGenerate opens one streaming generation call. It returns once the
// backend starts answering, or fails after the acquisition timeout. The
// returned stream delivers fragments until the backend closes it; an error
// mid-stream is reported by Err after the fragment channel closes.
func (g *GeminiLLM) StreamGenerate(ctx context.Context, req repositories.GenerationRequest) (repositories.GenerationStream, error) {
	contents := buildContents(req)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr(req.Temperature),
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := &geminiStream{
		fragments: make(chan string, 8),
		cancel:    cancel,
	}
	acquired := make(chan error, 1)

	go func() {
		defer close(stream.fragments)
		opened := false
		for resp, err := range g.client.Models.GenerateContentStream(streamCtx, req.Model, contents, config) {
			if err != nil {
				if !opened {
					acquired <- err
					return
				}
				stream.err = err
				return
			}
			if !opened {
				opened = true
				acquired <- nil
			}
			text := extractText(resp)
			if text == "" {
				continue
			}
			select {
			case stream.fragments <- text:
			case <-streamCtx.Done():
				stream.err = streamCtx.Err()
				return
			}
		}
		if !opened {
			// Stream closed without a single response.
			acquired <- nil
		}
	}()

	select {
	case err := <-acquired:
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open generation stream: %w", err)
		}
		return stream, nil
	case <-time.After(g.acquireTimeout):
		cancel()
		return nil, fmt.Errorf("AI stream timeout after %s", g.acquireTimeout)
	case <-ctx.Done():
		cancel()
		return nil, ctx.Err()
	}
}

type geminiStream struct {
	fragments chan string
	cancel    context.CancelFunc
	err       error
}

func (s *geminiStream) Fragments() <-chan string {
	return s.fragments
}

func (s *geminiStream) Err() error {
	return s.err
}

// buildContents assembles the request contents: prior turns as role-tagged
// text history, then the current turn with its optional inline image part.
func buildContents(req repositories.GenerationRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.History)+1)
	for _, msg := range req.History {
		var role genai.Role = genai.RoleUser
		if msg.Role == repositories.ModelRole {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(msg.Content, role))
	}

	var parts []*genai.Part
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = "image/png"
		}
		parts = append(parts, genai.NewPartFromBytes(req.Image, mime))
	}
	parts = append(parts, genai.NewPartFromText(req.Text))
	contents = append(contents, genai.NewContentFromParts(parts, genai.RoleUser))

	return contents
}

// extractText concatenates the text parts of a streamed response chunk.
func extractText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			text += part.Text
		}
	}
	return text
}
