package entities

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// GreetingContent is the banner shown when a conversation starts.
const GreetingContent = "# SYSTEM READY\n\nCyberSentient Interface v3.0 initialized. Secure channel established.\nAwaiting operational directives."

// ClearedContent replaces the transcript when the operator purges history.
const ClearedContent = "Memory buffer flushed. Ready."

// ExportSeparator joins transcript blocks in an exported report.
const ExportSeparator = "\n---\n"

var ErrMessageNotFound = errors.New("message not found")

// Conversation is an ordered transcript. Messages are append-only; the only
// in-place mutation allowed is replacing the content of the assistant message
// currently being streamed. The embedded mutex is the single synchronization
// point for transcript state: the streaming goroutine, the hub, and the idle
// reaper all go through it.
type Conversation struct {
	ID         string `json:"id"`
	OperatorID string `json:"operator_id"`

	mu           sync.Mutex
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// NewConversation creates a conversation seeded with the greeting message.
func NewConversation(operatorID string) *Conversation {
	now := time.Now()
	return &Conversation{
		ID:           uuid.New().String(),
		OperatorID:   operatorID,
		Messages:     []Message{NewAssistantMessage(GreetingContent)},
		CreatedAt:    now,
		LastActiveAt: now,
	}
}

// Append pushes a message to the end of the transcript.
func (c *Conversation) Append(msg Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, msg)
	c.LastActiveAt = time.Now()
}

// BeginExchange appends the user message and the assistant placeholder in one
// step and returns a copy of the transcript up to the placeholder, for use as
// prompt history.
func (c *Conversation) BeginExchange(user, placeholder Message) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = append(c.Messages, user, placeholder)
	c.LastActiveAt = time.Now()
	history := make([]Message, len(c.Messages)-1)
	copy(history, c.Messages[:len(c.Messages)-1])
	return history
}

// UpdateContent replaces the content of the message with the given id. Used
// for the in-flight assistant message as streamed fragments accumulate.
func (c *Conversation) UpdateContent(id, content string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].Content = content
			c.LastActiveAt = time.Now()
			return nil
		}
	}
	return ErrMessageNotFound
}

// MarkError flags the message with the given id as an error message.
func (c *Conversation) MarkError(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			c.Messages[i].IsError = true
			return nil
		}
	}
	return ErrMessageNotFound
}

// Clear resets the transcript to a single fresh "ready" system message.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Messages = []Message{NewSystemMessage(ClearedContent)}
	c.LastActiveAt = time.Now()
}

// Snapshot returns a copy of the transcript safe to read while a response
// streams into it.
func (c *Conversation) Snapshot() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages := make([]Message, len(c.Messages))
	copy(messages, c.Messages)
	return messages
}

// IdleSince reports whether the conversation has seen no activity since the
// cutoff.
func (c *Conversation) IdleSince(cutoff time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.LastActiveAt.Before(cutoff)
}

// LastMessage returns the newest message, if any.
func (c *Conversation) LastMessage() (Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// ExportText renders the transcript as plain text, one block per message in
// display order.
func (c *Conversation) ExportText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	blocks := make([]string, 0, len(c.Messages))
	for _, m := range c.Messages {
		blocks = append(blocks, fmt.Sprintf("[%s] %s:\n%s\n", m.Timestamp.UTC().Format(time.RFC3339), m.Role, m.Content))
	}
	return strings.Join(blocks, ExportSeparator)
}

// ExportFilename names the downloaded transcript after the current time.
func ExportFilename(now time.Time) string {
	return fmt.Sprintf("LOG_%d.txt", now.UnixMilli())
}
