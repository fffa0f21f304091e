package stt

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/repositories"
)

// GoogleSpeechToText transcribes voice queries captured in the browser and
// relayed over the console socket as binary audio frames.
type GoogleSpeechToText struct {
	client *speech.Client
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText creates a speech client using application default
// credentials (GOOGLE_APPLICATION_CREDENTIALS).
func NewGoogleSpeechToText(ctx context.Context, logger *zap.Logger) (*GoogleSpeechToText, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}
	return &GoogleSpeechToText{client: client, logger: logger}, nil
}

// Close releases the underlying client connection.
func (g *GoogleSpeechToText) Close() error {
	return g.client.Close()
}

// InitTranscribeStreaming opens a streaming recognition session. The caller
// feeds audio via Stream and collects the final transcript via End.
func (g *GoogleSpeechToText) InitTranscribeStreaming(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechToTextStreaming, error) {
	stream, err := g.client.StreamingRecognize(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open streaming recognition: %w", err)
	}

	language := config.Language
	if language == "" {
		language = "id-ID"
	}
	sampleRate := config.SampleRate
	if sampleRate == 0 {
		sampleRate = 16000
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:        getAudioEncoding(config.Encoding),
					SampleRateHertz: int32(sampleRate),
					LanguageCode:    language,
				},
				InterimResults: false,
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	session := &googleStreamingSession{
		ctx:     ctx,
		stream:  stream,
		logger:  g.logger,
		results: make(chan string, 1),
		errors:  make(chan error, 1),
	}
	go session.receiveResults()
	return session, nil
}

type googleStreamingSession struct {
	ctx     context.Context
	stream  speechpb.Speech_StreamingRecognizeClient
	logger  *zap.Logger
	results chan string
	errors  chan error
	closed  sync.Once
}

// Stream sends one chunk of audio to the recognizer.
func (s *googleStreamingSession) Stream(audio []byte) error {
	if len(audio) == 0 {
		return nil
	}
	err := s.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// End closes the audio stream and waits for the final transcript.
func (s *googleStreamingSession) End() (string, error) {
	var closeErr error
	s.closed.Do(func() {
		closeErr = s.stream.CloseSend()
	})
	if closeErr != nil {
		return "", fmt.Errorf("failed to close audio stream: %w", closeErr)
	}

	select {
	case transcript := <-s.results:
		return transcript, nil
	case err := <-s.errors:
		return "", err
	case <-s.ctx.Done():
		return "", s.ctx.Err()
	}
}

func (s *googleStreamingSession) receiveResults() {
	var parts []string
	for {
		resp, err := s.stream.Recv()
		if err == io.EOF {
			s.results <- strings.Join(parts, " ")
			return
		}
		if err != nil {
			s.logger.Error("Streaming recognition failed", zap.Error(err))
			s.errors <- fmt.Errorf("streaming recognition failed: %w", err)
			return
		}
		for _, result := range resp.Results {
			if result.IsFinal && len(result.Alternatives) > 0 {
				parts = append(parts, result.Alternatives[0].Transcript)
			}
		}
	}
}

func getAudioEncoding(encoding string) speechpb.RecognitionConfig_AudioEncoding {
	switch strings.ToUpper(encoding) {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS
	default:
		return speechpb.RecognitionConfig_WEBM_OPUS
	}
}
