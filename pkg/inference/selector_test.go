package inference

import (
	"context"
	"errors"
	"testing"
)

func TestSelectorFallbackOnChatFailure(t *testing.T) {
	ctx := context.Background()

	// Primary is healthy but fails at request time
	primary := NewMock()
	primary.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return nil, errors.New("primary exploded")
	}

	secondary := NewMock()
	secondary.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{
			Message:      NewAssistantMessage("From secondary"),
			FinishReason: "stop",
		}, nil
	}

	sel, err := NewSelector(primary, secondary)
	if err != nil {
		t.Fatalf("Failed to create selector: %v", err)
	}
	defer sel.Close()
	sel.SetLabels("gemini", "ollama")

	resp, choice, err := sel.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Selector chat failed: %v", err)
	}

	if resp.Message.Content != "From secondary" {
		t.Errorf("Unexpected response: %s", resp.Message.Content)
	}
	if !choice.Fallback {
		t.Error("Expected choice to be marked as fallback")
	}
	if choice.Label != "ollama" {
		t.Errorf("Expected label ollama, got %s", choice.Label)
	}
	if got := primary.CallCount("Chat"); got != 1 {
		t.Errorf("Primary Chat should be invoked exactly once, got %d", got)
	}
	if got := secondary.CallCount("Chat"); got != 1 {
		t.Errorf("Secondary Chat should be invoked exactly once, got %d", got)
	}
}

func TestSelectorStreamFallbackBeforeFirstFragment(t *testing.T) {
	ctx := context.Background()

	primary := NewMock()
	primary.StreamFunc = func(ctx context.Context, req *ChatRequest) (Stream, error) {
		return nil, errors.New("stream open failed")
	}

	secondary := NewMock()
	secondary.StreamFunc = func(ctx context.Context, req *ChatRequest) (Stream, error) {
		return NewMockStream("Hello."), nil
	}

	sel, _ := NewSelector(primary, secondary)
	defer sel.Close()

	stream, choice, err := sel.Stream(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Selector stream failed: %v", err)
	}
	defer stream.Close()

	if !choice.Fallback {
		t.Error("Expected fallback choice")
	}
	if got := primary.CallCount("Stream"); got != 1 {
		t.Errorf("Primary Stream should be invoked exactly once, got %d", got)
	}
	if got := secondary.CallCount("Stream"); got != 1 {
		t.Errorf("Secondary Stream should be invoked exactly once, got %d", got)
	}

	chunk, err := stream.Recv()
	if err != nil {
		t.Fatalf("Recv failed: %v", err)
	}
	if chunk.Delta != "Hello." {
		t.Errorf("Unexpected delta: %q", chunk.Delta)
	}
}

func TestSelectorSkipsUnhealthyPrimary(t *testing.T) {
	ctx := context.Background()

	primary := NewMock()
	primary.HealthFunc = func(ctx context.Context) error {
		return errors.New("unreachable")
	}

	secondary := NewMock()
	secondary.ChatFunc = func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		return &ChatResponse{Message: NewAssistantMessage("ok")}, nil
	}

	sel, _ := NewSelector(primary, secondary)
	defer sel.Close()

	_, choice, err := sel.Chat(ctx, &ChatRequest{
		Messages: []Message{NewUserMessage("test")},
	})
	if err != nil {
		t.Fatalf("Selector chat failed: %v", err)
	}

	if choice.Slot != SlotSecondary {
		t.Errorf("Expected secondary slot, got %v", choice.Slot)
	}
	if choice.Fallback {
		t.Error("Pre-stream selection is not a fallback")
	}
	if got := primary.CallCount("Chat"); got != 0 {
		t.Errorf("Unhealthy primary Chat should never be invoked, got %d calls", got)
	}
	if got := primary.CallCount("Stream"); got != 0 {
		t.Errorf("Unhealthy primary Stream should never be invoked, got %d calls", got)
	}
}

func TestSelectorHealthHintCached(t *testing.T) {
	ctx := context.Background()

	primary := NewMock()
	secondary := NewMock()

	sel, _ := NewSelector(primary, secondary)
	defer sel.Close()

	for i := 0; i < 3; i++ {
		if _, _, err := sel.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("hi")}}); err != nil {
			t.Fatalf("Chat %d failed: %v", i, err)
		}
	}

	// First selection probes; the next two hit the hint cache
	if got := primary.CallCount("Health"); got != 1 {
		t.Errorf("Expected 1 health probe, got %d", got)
	}
}

func TestSelectorBothFail(t *testing.T) {
	ctx := context.Background()

	primary := WithError(errors.New("primary down"))
	// Keep primary selectable so the request-time path is exercised
	primary.HealthFunc = func(ctx context.Context) error { return nil }
	secondary := WithError(errors.New("secondary down"))

	sel, _ := NewSelector(primary, secondary)
	defer sel.Close()

	_, _, err := sel.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if err == nil {
		t.Fatal("Expected error when both providers fail")
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Expected ChainError, got %T", err)
	}
	if len(chainErr.Errors) != 2 {
		t.Errorf("Expected 2 errors, got %d", len(chainErr.Errors))
	}
}

func TestSelectorSingleSlot(t *testing.T) {
	ctx := context.Background()

	secondary := NewMock()
	sel, err := NewSelector(nil, secondary)
	if err != nil {
		t.Fatalf("Selector with one slot should work: %v", err)
	}
	defer sel.Close()

	_, choice, err := sel.Chat(ctx, &ChatRequest{Messages: []Message{NewUserMessage("hi")}})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if choice.Slot != SlotSecondary {
		t.Errorf("Expected secondary slot, got %v", choice.Slot)
	}
}

func TestSelectorEmpty(t *testing.T) {
	_, err := NewSelector(nil, nil)
	if !errors.Is(err, ErrProviderUnavailable) {
		t.Errorf("Expected ErrProviderUnavailable, got %v", err)
	}
}

func TestSelectorParseIntentDegrades(t *testing.T) {
	ctx := context.Background()

	primary := NewMock()
	primary.ParseIntentFunc = func(ctx context.Context, message string) (*Intent, error) {
		return nil, errors.New("model returned garbage")
	}

	sel, _ := NewSelector(primary, nil)
	defer sel.Close()

	intent, _ := sel.ParseIntent(ctx, "open chrome")
	if intent == nil {
		t.Fatal("ParseIntent must never return nil")
	}
	if intent.Action != ActionOpenApp || intent.Target != "chrome" {
		t.Errorf("Expected open_app/chrome, got %s/%s", intent.Action, intent.Target)
	}
}

func TestSelectorStatus(t *testing.T) {
	ctx := context.Background()

	primary := NewMock()
	primary.HealthFunc = func(ctx context.Context) error { return errors.New("down") }
	secondary := NewMock()

	sel, _ := NewSelector(primary, secondary)
	defer sel.Close()
	sel.SetLabels("gemini", "ollama")

	p, s, active := sel.Status(ctx)
	if p.Healthy {
		t.Error("Primary should report unhealthy")
	}
	if !s.Healthy {
		t.Error("Secondary should report healthy")
	}
	if active != "ollama" {
		t.Errorf("Expected active ollama, got %s", active)
	}
}
