package entities

import (
	"strings"
	"testing"
	"time"
)

func TestNewConversationSeedsGreeting(t *testing.T) {
	c := NewConversation("operator-1")

	if c.ID == "" {
		t.Error("expected generated id")
	}
	if c.OperatorID != "operator-1" {
		t.Errorf("OperatorID = %q, want operator-1", c.OperatorID)
	}
	if len(c.Messages) != 1 {
		t.Fatalf("got %d messages, want the greeting only", len(c.Messages))
	}
	if c.Messages[0].Role != RoleAssistant {
		t.Errorf("greeting role = %q, want assistant", c.Messages[0].Role)
	}
	if c.Messages[0].Content != GreetingContent {
		t.Errorf("greeting content = %q, want the ready banner", c.Messages[0].Content)
	}
}

func TestUpdateContentAndMarkError(t *testing.T) {
	c := NewConversation("operator-1")
	msg := NewAssistantMessage("")
	c.Append(msg)

	if err := c.UpdateContent(msg.ID, "partial response"); err != nil {
		t.Fatalf("UpdateContent() error = %v", err)
	}
	if got := c.Messages[1].Content; got != "partial response" {
		t.Errorf("content = %q, want partial response", got)
	}

	if err := c.MarkError(msg.ID); err != nil {
		t.Fatalf("MarkError() error = %v", err)
	}
	if !c.Messages[1].IsError {
		t.Error("message should be flagged as error")
	}

	if err := c.UpdateContent("missing-id", "x"); err != ErrMessageNotFound {
		t.Errorf("UpdateContent() error = %v, want ErrMessageNotFound", err)
	}
	if err := c.MarkError("missing-id"); err != ErrMessageNotFound {
		t.Errorf("MarkError() error = %v, want ErrMessageNotFound", err)
	}
}

func TestClear(t *testing.T) {
	c := NewConversation("operator-1")
	c.Append(NewUserMessage("hello", ""))
	c.Append(NewAssistantMessage("hi"))

	c.Clear()

	if len(c.Messages) != 1 {
		t.Fatalf("got %d messages after clear, want 1", len(c.Messages))
	}
	if c.Messages[0].Role != RoleSystem {
		t.Errorf("role = %q, want system", c.Messages[0].Role)
	}
	if c.Messages[0].Content != ClearedContent {
		t.Errorf("content = %q, want flush notice", c.Messages[0].Content)
	}
}

func TestBeginExchange(t *testing.T) {
	c := NewConversation("operator-1")
	user := NewUserMessage("scan the perimeter", "")
	placeholder := NewAssistantMessage("")

	history := c.BeginExchange(user, placeholder)

	if len(c.Messages) != 3 {
		t.Fatalf("got %d messages, want greeting + user + placeholder", len(c.Messages))
	}
	if len(history) != 2 {
		t.Fatalf("history has %d messages, want everything before the placeholder", len(history))
	}
	if history[1].ID != user.ID {
		t.Errorf("history tail = %q, want the user message", history[1].ID)
	}
	for _, m := range history {
		if m.ID == placeholder.ID {
			t.Error("history must not include the placeholder")
		}
	}
}

func TestSnapshotConcurrentWithUpdates(t *testing.T) {
	c := NewConversation("operator-1")
	msg := NewAssistantMessage("")
	c.Append(msg)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			_ = c.UpdateContent(msg.ID, "streamed content")
			c.Append(NewUserMessage("follow-up", ""))
		}
	}()

	for i := 0; i < 200; i++ {
		snapshot := c.Snapshot()
		if len(snapshot) < 2 {
			t.Fatalf("snapshot has %d messages, want at least 2", len(snapshot))
		}
		_ = c.IdleSince(time.Now().Add(-time.Minute))
	}
	<-done
}

func TestExportText(t *testing.T) {
	c := NewConversation("operator-1")
	c.Append(NewUserMessage("enumerate open ports", ""))

	report := c.ExportText()

	blocks := strings.Split(report, ExportSeparator)
	if len(blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(blocks))
	}
	if !strings.Contains(blocks[0], "assistant:") {
		t.Errorf("first block missing role tag: %q", blocks[0])
	}
	if !strings.Contains(blocks[1], "user:\nenumerate open ports") {
		t.Errorf("second block = %q, want role header then content", blocks[1])
	}
	if !strings.Contains(blocks[0], "Z] ") {
		t.Errorf("timestamp should be RFC3339 UTC: %q", blocks[0])
	}
}

func TestExportFilename(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	if got := ExportFilename(now); got != "LOG_1700000000123.txt" {
		t.Errorf("ExportFilename() = %q, want LOG_1700000000123.txt", got)
	}
}

func TestMessageIsEmpty(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"blank text no image", NewUserMessage("   \t", ""), true},
		{"text only", NewUserMessage("hi", ""), false},
		{"image only", NewUserMessage("", "data:image/png;base64,AAAA"), false},
		{"both", NewUserMessage("hi", "data:image/png;base64,AAAA"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.IsEmpty(); got != tt.want {
				t.Errorf("IsEmpty() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLastMessage(t *testing.T) {
	c := &Conversation{}
	if _, ok := c.LastMessage(); ok {
		t.Error("empty transcript should report no last message")
	}

	c.Append(NewUserMessage("first", ""))
	c.Append(NewUserMessage("second", ""))
	last, ok := c.LastMessage()
	if !ok || last.Content != "second" {
		t.Errorf("LastMessage() = %+v, want the newest message", last)
	}
}
