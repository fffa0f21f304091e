package usecase

import (
	"context"
	"encoding/base64"
	"math/rand"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
)

const (
	maxAttempts = 3
	backoffBase = 500 * time.Millisecond
	jitterSpan  = 200 * time.Millisecond
)

// FailureBanner prefixes the single error fragment emitted when every attempt
// fails; the last error's text is appended.
const FailureBanner = "**SYSTEM_HALT**: Neural core unreachable. Please check your internet connection or try again.\nDetail: "

// Fragment is one chunk of streamed response text. Failure marks the terminal
// failure banner, the only error ever surfaced by the stream.
type Fragment struct {
	Text    string
	Failure bool
}

// StreamOrchestrator turns a conversation and a persona/tool selection into a
// lazy sequence of response fragments. Each invocation opens a fresh backend
// session; no retry state is shared across invocations.
type StreamOrchestrator struct {
	llm    repositories.LargeLanguageModel
	logger *zap.Logger

	// sleep and jitter are swappable so retry timing is observable in tests.
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewStreamOrchestrator creates an orchestrator over the given backend.
func NewStreamOrchestrator(llm repositories.LargeLanguageModel, logger *zap.Logger) *StreamOrchestrator {
	return &StreamOrchestrator{
		llm:    llm,
		logger: logger,
		sleep:  sleepContext,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(jitterSpan))) },
	}
}

// Respond streams the response to the latest message of the given transcript.
// The returned channel is closed when the stream finishes; no error escapes
// it. Cancelling ctx abandons the stream (never triggered by the stock UI,
// but the token is threaded through for the caller's lifetime management).
func (o *StreamOrchestrator) Respond(
	ctx context.Context,
	messages []entities.Message,
	provider entities.Provider,
	tool entities.Tool,
	imageContext string,
) <-chan Fragment {
	out := make(chan Fragment)
	go func() {
		defer close(out)
		o.respond(ctx, messages, provider, tool, imageContext, out)
	}()
	return out
}

func (o *StreamOrchestrator) respond(
	ctx context.Context,
	messages []entities.Message,
	provider entities.Provider,
	tool entities.Tool,
	imageContext string,
	out chan<- Fragment,
) {
	if len(messages) == 0 {
		return
	}
	last := messages[len(messages)-1]

	// Lightweight intent intercept: developer identity questions bypass the
	// backend entirely.
	normalized := normalizeQuery(last.Content)
	for _, trigger := range identityTriggers {
		if strings.Contains(normalized, trigger) {
			o.emit(ctx, out, Fragment{Text: IdentityAnswer})
			return
		}
	}

	req := repositories.GenerationRequest{
		Model:             resolveModel(provider),
		SystemInstruction: assembleSystemInstruction(provider, tool),
		Temperature:       resolveTemperature(tool),
		History:           historyOf(messages[:len(messages)-1]),
		Text:              last.Content,
	}

	// Attach the image from the new message, or one passed separately.
	dataURL := imageContext
	if dataURL == "" {
		dataURL = last.Image
	}
	if dataURL != "" {
		if data, mime, err := DecodeDataURL(dataURL); err == nil {
			req.Image = data
			req.ImageMIME = mime
		} else {
			// Malformed image data is skipped, not fatal.
			o.logger.Warn("Skipping malformed image attachment", zap.Error(err))
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		stream, err := o.llm.StreamGenerate(ctx, req)
		if err == nil {
			for text := range stream.Fragments() {
				if text == "" {
					continue
				}
				if !o.emit(ctx, out, Fragment{Text: text}) {
					return
				}
			}
			if err = stream.Err(); err == nil {
				return
			}
		}

		lastErr = err
		o.logger.Warn("AI stream attempt failed",
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt < maxAttempts {
			backoff := backoffBase<<(attempt-1) + o.jitter()
			if err := o.sleep(ctx, backoff); err != nil {
				return
			}
		}
	}

	o.emit(ctx, out, Fragment{Text: FailureBanner + lastErr.Error(), Failure: true})
}

func (o *StreamOrchestrator) emit(ctx context.Context, out chan<- Fragment, f Fragment) bool {
	select {
	case out <- f:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// historyOf converts prior turns to role-tagged text history. Assistant
// messages become model turns; system and user messages are sent as user
// turns, mirroring how the backend treats them.
func historyOf(messages []entities.Message) []repositories.ChatMessage {
	history := make([]repositories.ChatMessage, 0, len(messages))
	for _, m := range messages {
		role := repositories.UserRole
		if m.Role == entities.RoleAssistant {
			role = repositories.ModelRole
		}
		history = append(history, repositories.ChatMessage{Role: role, Content: m.Content})
	}
	return history
}

// normalizeQuery lowercases the text, collapses everything that is not a
// letter, digit or Latin-extended rune into spaces, and squeezes whitespace.
func normalizeQuery(s string) string {
	lowered := strings.ToLower(s)
	mapped := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 0x00C0 && r <= 0x024F:
			return r
		default:
			return ' '
		}
	}, lowered)
	return strings.Join(strings.Fields(mapped), " ")
}

// DecodeDataURL splits a base64 data URL into raw bytes and MIME type.
func DecodeDataURL(dataURL string) ([]byte, string, error) {
	const prefix = "data:"
	if !strings.HasPrefix(dataURL, prefix) {
		return nil, "", ErrMalformedDataURL
	}
	meta, payload, found := strings.Cut(dataURL[len(prefix):], ",")
	if !found {
		return nil, "", ErrMalformedDataURL
	}
	mime, _, _ := strings.Cut(meta, ";")
	if mime == "" {
		mime = "image/png"
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", err
	}
	return data, mime, nil
}
