package entities

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role identifies the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is a single entry in a conversation transcript. The Image field, if
// set, holds the attachment as a data URL (base64-encoded PNG or JPEG).
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Image     string    `json:"image,omitempty"`
	IsError   bool      `json:"is_error,omitempty"`
}

// NewUserMessage creates a user message with a fresh id and timestamp.
func NewUserMessage(content, image string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: time.Now(),
		Image:     image,
	}
}

// NewAssistantMessage creates an assistant message. An empty content is the
// placeholder for a response still being streamed.
func NewAssistantMessage(content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{
		ID:        uuid.New().String(),
		Role:      RoleSystem,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// IsEmpty reports whether the message carries neither text nor an attachment.
func (m Message) IsEmpty() bool {
	return strings.TrimSpace(m.Content) == "" && m.Image == ""
}
