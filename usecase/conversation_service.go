package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/repository"
)

var (
	// ErrStreamInFlight rejects a submission while a prior response is still
	// streaming; the caller retries after the current stream finalizes.
	ErrStreamInFlight = errors.New("a response stream is already in flight")
	// ErrEmptySubmission marks a no-op submission (no text, no image).
	ErrEmptySubmission = errors.New("empty submission")
	// ErrMalformedDataURL marks attachment data that is not a base64 data URL.
	ErrMalformedDataURL = errors.New("malformed data URL")
)

// SubmitInput is one operator submission.
type SubmitInput struct {
	Text     string
	Image    string // data URL, optional
	Provider entities.Provider
	Tool     entities.Tool
}

// StreamUpdate reports progress of an in-flight response. Content always
// holds the full accumulated text so the placeholder message can be replaced
// wholesale; Fragment is the chunk that produced this update.
type StreamUpdate struct {
	MessageID string
	Fragment  string
	Content   string
	Done      bool
	IsError   bool
}

// ConversationService owns transcript state and enforces the single-flight
// rule: per conversation, at most one response stream at a time.
type ConversationService struct {
	conversations repository.ConversationRepository
	orchestrator  *StreamOrchestrator
	logger        *zap.Logger

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewConversationService creates a conversation service.
func NewConversationService(
	conversations repository.ConversationRepository,
	orchestrator *StreamOrchestrator,
	logger *zap.Logger,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		orchestrator:  orchestrator,
		logger:        logger,
		inFlight:      make(map[string]bool),
	}
}

// Open returns the operator's most recent conversation so a dropped socket
// reattaches to its transcript, or creates a fresh greeting-seeded one when
// none survives (first connect, or the idle reaper got there first).
func (s *ConversationService) Open(ctx context.Context, operatorID string) (*entities.Conversation, error) {
	conversation, err := s.conversations.GetLastByOperatorID(ctx, operatorID)
	if err == nil {
		return conversation, nil
	}
	if !errors.Is(err, repository.ErrConversationNotFound) {
		return nil, err
	}
	return s.conversations.Create(ctx, operatorID)
}

// Get returns a conversation by id.
func (s *ConversationService) Get(ctx context.Context, id string) (*entities.Conversation, error) {
	return s.conversations.GetByID(ctx, id)
}

// Submit appends the user message plus an assistant placeholder and streams
// the response into the placeholder. Returns ErrEmptySubmission for blank
// input and ErrStreamInFlight while a prior response is still streaming.
func (s *ConversationService) Submit(ctx context.Context, conversationID string, input SubmitInput) (<-chan StreamUpdate, error) {
	userMsg := entities.NewUserMessage(input.Text, input.Image)
	if userMsg.IsEmpty() {
		return nil, ErrEmptySubmission
	}

	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight[conversationID] {
		s.mu.Unlock()
		return nil, ErrStreamInFlight
	}
	s.inFlight[conversationID] = true
	s.mu.Unlock()

	placeholder := entities.NewAssistantMessage("")
	history := conversation.BeginExchange(userMsg, placeholder)

	updates := make(chan StreamUpdate)
	go func() {
		defer close(updates)
		defer func() {
			s.mu.Lock()
			delete(s.inFlight, conversationID)
			s.mu.Unlock()
		}()

		fragments := s.orchestrator.Respond(ctx, history, input.Provider, input.Tool, userMsg.Image)

		var content string
		failed := false
		for fragment := range fragments {
			content += fragment.Text
			failed = failed || fragment.Failure

			if err := conversation.UpdateContent(placeholder.ID, content); err != nil {
				s.logger.Warn("Lost in-flight message", zap.String("messageID", placeholder.ID), zap.Error(err))
			}
			if fragment.Failure {
				_ = conversation.MarkError(placeholder.ID)
			}

			select {
			case updates <- StreamUpdate{
				MessageID: placeholder.ID,
				Fragment:  fragment.Text,
				Content:   content,
				IsError:   fragment.Failure,
			}:
			case <-ctx.Done():
				return
			}
		}

		select {
		case updates <- StreamUpdate{
			MessageID: placeholder.ID,
			Content:   content,
			Done:      true,
			IsError:   failed,
		}:
		case <-ctx.Done():
		}
	}()

	return updates, nil
}

// Clear resets the transcript to a single ready message. Rejected while a
// response is streaming.
func (s *ConversationService) Clear(ctx context.Context, conversationID string) (*entities.Conversation, error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inFlight[conversationID] {
		return nil, ErrStreamInFlight
	}
	conversation.Clear()
	return conversation, nil
}

// Export renders the transcript as a plain-text report plus its download
// filename.
func (s *ConversationService) Export(ctx context.Context, conversationID string) (filename, report string, err error) {
	conversation, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return "", "", err
	}

	return entities.ExportFilename(time.Now()), conversation.ExportText(), nil
}
