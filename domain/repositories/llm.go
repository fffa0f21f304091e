package repositories

import "context"

// ChatMessage is one prior turn sent as role-tagged text history. Images in
// prior turns are not resent.
type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Role defines the type of message sender as seen by the backend.
type Role string

const (
	UserRole  Role = "user"
	ModelRole Role = "model"
)

// GenerationRequest is a single streaming call to the backend.
type GenerationRequest struct {
	// Model is the backend model identifier.
	Model string
	// SystemInstruction is sent once per request.
	SystemInstruction string
	Temperature       float32
	// History holds the prior turns, text only.
	History []ChatMessage
	// Text is the current turn's text part.
	Text string
	// Image, if non-nil, is attached as an inline image part.
	Image     []byte
	ImageMIME string
}

// GenerationStream is a finite, non-restartable sequence of text fragments.
type GenerationStream interface {
	// Fragments returns the fragment channel. It is closed when the stream
	// ends, successfully or not.
	Fragments() <-chan string
	// Err reports why the stream ended early. Valid after Fragments closes.
	Err() error
}

// LargeLanguageModel abstracts the hosted generative backend. StreamGenerate
// blocks until the stream handle is acquired (or acquisition times out) and
// then delivers fragments asynchronously.
type LargeLanguageModel interface {
	StreamGenerate(ctx context.Context, req GenerationRequest) (GenerationStream, error)
}
