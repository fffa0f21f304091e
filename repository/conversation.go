package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/haniipp/cybersentient/domain/entities"
)

var ErrConversationNotFound = errors.New("conversation not found")

// ConversationRepository defines access to conversation transcripts. State is
// in-memory only; nothing outlives the process.
type ConversationRepository interface {
	Create(ctx context.Context, operatorID string) (*entities.Conversation, error)
	GetByID(ctx context.Context, id string) (*entities.Conversation, error)
	GetLastByOperatorID(ctx context.Context, operatorID string) (*entities.Conversation, error)
	Delete(ctx context.Context, id string) error
	// DeleteIdle removes conversations inactive since the cutoff and returns
	// how many were removed.
	DeleteIdle(ctx context.Context, cutoff time.Time) (int, error)
}

// MemoryConversationRepository keeps conversations in a process-local map.
type MemoryConversationRepository struct {
	mu            sync.RWMutex
	conversations map[string]*entities.Conversation
}

// NewMemoryConversationRepository creates an empty in-memory store.
func NewMemoryConversationRepository() *MemoryConversationRepository {
	return &MemoryConversationRepository{
		conversations: make(map[string]*entities.Conversation),
	}
}

func (r *MemoryConversationRepository) Create(ctx context.Context, operatorID string) (*entities.Conversation, error) {
	conversation := entities.NewConversation(operatorID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conversation.ID] = conversation
	return conversation, nil
}

func (r *MemoryConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversation, ok := r.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return conversation, nil
}

func (r *MemoryConversationRepository) GetLastByOperatorID(ctx context.Context, operatorID string) (*entities.Conversation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var last *entities.Conversation
	for _, c := range r.conversations {
		if c.OperatorID != operatorID {
			continue
		}
		if last == nil || c.CreatedAt.After(last.CreatedAt) {
			last = c
		}
	}
	if last == nil {
		return nil, ErrConversationNotFound
	}
	return last, nil
}

func (r *MemoryConversationRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.conversations[id]; !ok {
		return ErrConversationNotFound
	}
	delete(r.conversations, id)
	return nil
}

func (r *MemoryConversationRepository) DeleteIdle(ctx context.Context, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, c := range r.conversations {
		if c.IdleSince(cutoff) {
			delete(r.conversations, id)
			removed++
		}
	}
	return removed, nil
}
