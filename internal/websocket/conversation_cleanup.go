package websocket

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/haniipp/cybersentient/repository"
)

// ConversationCleanupService drops conversations whose owners disconnected
// and never came back.
type ConversationCleanupService struct {
	conversations repository.ConversationRepository
	idleTTL       time.Duration
	logger        *zap.Logger
	stopChan      chan struct{}
}

// NewConversationCleanupService creates a new conversation cleanup service
func NewConversationCleanupService(conversations repository.ConversationRepository, idleTTL time.Duration, logger *zap.Logger) *ConversationCleanupService {
	return &ConversationCleanupService{
		conversations: conversations,
		idleTTL:       idleTTL,
		logger:        logger,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the background cleanup process
func (s *ConversationCleanupService) Start() {
	go s.cleanupLoop()
	s.logger.Info("Conversation cleanup service started", zap.Duration("idleTTL", s.idleTTL))
}

// Stop gracefully stops the cleanup service
func (s *ConversationCleanupService) Stop() {
	close(s.stopChan)
	s.logger.Info("Conversation cleanup service stopped")
}

// cleanupLoop runs the cleanup process periodically
func (s *ConversationCleanupService) cleanupLoop() {
	// Run cleanup every 30 minutes
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	// Run initial cleanup after 1 minute
	initialTimer := time.NewTimer(1 * time.Minute)
	defer initialTimer.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-initialTimer.C:
			s.runCleanup()
			// Initial timer only runs once
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup drops conversations idle past the TTL.
func (s *ConversationCleanupService) runCleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.idleTTL)
	dropped, err := s.conversations.DeleteIdle(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to drop idle conversations", zap.Error(err))
		return
	}

	if dropped > 0 {
		s.logger.Info("Dropped idle conversations", zap.Int("count", dropped))
	}
}
