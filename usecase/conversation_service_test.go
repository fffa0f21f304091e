package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/haniipp/cybersentient/domain/entities"
	"github.com/haniipp/cybersentient/domain/repositories"
	"github.com/haniipp/cybersentient/repository"
)

// gateLLM hands the test direct control over each opened stream.
type gateLLM struct {
	opened chan *gateStream
}

func newGateLLM() *gateLLM {
	return &gateLLM{opened: make(chan *gateStream, 4)}
}

func (g *gateLLM) StreamGenerate(ctx context.Context, req repositories.GenerationRequest) (repositories.GenerationStream, error) {
	stream := &gateStream{ch: make(chan string)}
	g.opened <- stream
	return stream, nil
}

type gateStream struct{ ch chan string }

func (s *gateStream) Fragments() <-chan string { return s.ch }
func (s *gateStream) Err() error               { return nil }

func newTestService(t *testing.T, llm repositories.LargeLanguageModel) (*ConversationService, *entities.Conversation) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	service := NewConversationService(repository.NewMemoryConversationRepository(), NewStreamOrchestrator(llm, logger), logger)

	conversation, err := service.Open(context.Background(), "operator-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return service, conversation
}

func TestOpenSeedsGreeting(t *testing.T) {
	_, conversation := newTestService(t, newGateLLM())

	if len(conversation.Messages) != 1 {
		t.Fatalf("got %d messages, want the greeting only", len(conversation.Messages))
	}
	greeting := conversation.Messages[0]
	if greeting.Role != entities.RoleAssistant {
		t.Errorf("greeting role = %q, want assistant", greeting.Role)
	}
	if !strings.Contains(greeting.Content, "SYSTEM READY") {
		t.Errorf("greeting = %q, want the ready banner", greeting.Content)
	}
}

func TestOpenResumesLastConversation(t *testing.T) {
	logger := zaptest.NewLogger(t)
	repo := repository.NewMemoryConversationRepository()
	service := NewConversationService(repo, NewStreamOrchestrator(newGateLLM(), logger), logger)
	ctx := context.Background()

	first, err := service.Open(ctx, "operator-1")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	again, err := service.Open(ctx, "operator-1")
	if err != nil {
		t.Fatalf("second Open() error = %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("reconnect opened %q, want the existing conversation %q", again.ID, first.ID)
	}

	other, err := service.Open(ctx, "operator-2")
	if err != nil {
		t.Fatalf("Open() for second operator error = %v", err)
	}
	if other.ID == first.ID {
		t.Error("operators must not share conversations")
	}

	// Once the reaper collects the transcript, reconnect starts fresh.
	first.LastActiveAt = time.Now().Add(-3 * time.Hour)
	if _, err := repo.DeleteIdle(ctx, time.Now().Add(-2*time.Hour)); err != nil {
		t.Fatalf("DeleteIdle() error = %v", err)
	}
	fresh, err := service.Open(ctx, "operator-1")
	if err != nil {
		t.Fatalf("Open() after reap error = %v", err)
	}
	if fresh.ID == first.ID {
		t.Error("reaped conversation should not be resumed")
	}
}

func TestSubmitRejectsEmpty(t *testing.T) {
	service, conversation := newTestService(t, newGateLLM())

	_, err := service.Submit(context.Background(), conversation.ID, SubmitInput{Text: "   "})
	if !errors.Is(err, ErrEmptySubmission) {
		t.Errorf("Submit() error = %v, want ErrEmptySubmission", err)
	}
	if len(conversation.Messages) != 1 {
		t.Errorf("empty submission should not touch the transcript, got %d messages", len(conversation.Messages))
	}
}

func TestSubmitUnknownConversation(t *testing.T) {
	service, _ := newTestService(t, newGateLLM())

	_, err := service.Submit(context.Background(), "no-such-id", SubmitInput{Text: "hello"})
	if err == nil {
		t.Error("Submit() expected error for unknown conversation")
	}
}

func TestSubmitStreamsAndFinalizes(t *testing.T) {
	llm := newGateLLM()
	service, conversation := newTestService(t, llm)

	updates, err := service.Submit(context.Background(), conversation.ID, SubmitInput{
		Text:     "run a port scan",
		Provider: entities.ProviderGeminiFlash,
		Tool:     entities.ToolGeneralChat,
	})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	stream := <-llm.opened
	stream.ch <- "Scanning "
	first := <-updates
	if first.Fragment != "Scanning " || first.Content != "Scanning " {
		t.Errorf("first update = %+v, want the opening fragment", first)
	}

	stream.ch <- "complete."
	second := <-updates
	if second.Content != "Scanning complete." {
		t.Errorf("accumulated content = %q, want %q", second.Content, "Scanning complete.")
	}

	close(stream.ch)
	final := <-updates
	if !final.Done {
		t.Error("final update should be marked done")
	}
	if final.IsError {
		t.Error("clean stream should not finalize as error")
	}
	if _, open := <-updates; open {
		t.Error("updates channel should close after the final update")
	}

	// Transcript holds greeting, user message and the finished response.
	if len(conversation.Messages) != 3 {
		t.Fatalf("got %d messages, want 3", len(conversation.Messages))
	}
	response := conversation.Messages[2]
	if response.Content != "Scanning complete." {
		t.Errorf("response content = %q, want accumulated text", response.Content)
	}
	if response.IsError {
		t.Error("response should not be flagged as error")
	}
}

func TestSubmitSingleFlight(t *testing.T) {
	llm := newGateLLM()
	service, conversation := newTestService(t, llm)

	updates, err := service.Submit(context.Background(), conversation.ID, SubmitInput{Text: "first"})
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	stream := <-llm.opened

	if _, err := service.Submit(context.Background(), conversation.ID, SubmitInput{Text: "second"}); !errors.Is(err, ErrStreamInFlight) {
		t.Errorf("concurrent Submit() error = %v, want ErrStreamInFlight", err)
	}
	if _, err := service.Clear(context.Background(), conversation.ID); !errors.Is(err, ErrStreamInFlight) {
		t.Errorf("Clear() during stream error = %v, want ErrStreamInFlight", err)
	}

	close(stream.ch)
	for range updates {
	}

	// The slot frees up once the stream finalizes.
	updates, err = service.Submit(context.Background(), conversation.ID, SubmitInput{Text: "third"})
	if err != nil {
		t.Fatalf("Submit() after finalize error = %v", err)
	}
	stream = <-llm.opened
	close(stream.ch)
	for range updates {
	}
}

func TestClearResetsTranscript(t *testing.T) {
	service, conversation := newTestService(t, newGateLLM())

	cleared, err := service.Clear(context.Background(), conversation.ID)
	if err != nil {
		t.Fatalf("Clear() error = %v", err)
	}
	if len(cleared.Messages) != 1 {
		t.Fatalf("got %d messages after clear, want 1", len(cleared.Messages))
	}
	msg := cleared.Messages[0]
	if msg.Role != entities.RoleSystem {
		t.Errorf("role = %q, want system", msg.Role)
	}
	if msg.Content != entities.ClearedContent {
		t.Errorf("content = %q, want the flush notice", msg.Content)
	}
}

func TestExport(t *testing.T) {
	service, conversation := newTestService(t, newGateLLM())

	filename, report, err := service.Export(context.Background(), conversation.ID)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	if !strings.HasPrefix(filename, "LOG_") || !strings.HasSuffix(filename, ".txt") {
		t.Errorf("filename = %q, want LOG_<ms>.txt", filename)
	}
	if !strings.Contains(report, "assistant:") {
		t.Errorf("report = %q, want role-tagged blocks", report)
	}
	if !strings.Contains(report, "SYSTEM READY") {
		t.Errorf("report = %q, want the greeting content", report)
	}
}
