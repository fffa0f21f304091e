package repositories

import "context"

// TextToSpeech converts announcement text into streamed audio chunks.
type TextToSpeech interface {
	ConvertTextToSpeech(ctx context.Context, text string) (<-chan []byte, error)
}
