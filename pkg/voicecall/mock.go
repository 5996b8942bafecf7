package voicecall

import (
	"context"
	"sync"
)

// MockRecognizer implements Recognizer for testing. Tests push
// transcripts with Emit.
type MockRecognizer struct {
	mu        sync.Mutex
	capturing bool
	starts    int
	stops     int

	out    chan string
	closed bool
}

// NewMockRecognizer creates a recognizer with a buffered transcript
// channel.
func NewMockRecognizer() *MockRecognizer {
	return &MockRecognizer{out: make(chan string, 16)}
}

// Start marks the recognizer as capturing.
func (m *MockRecognizer) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturing = true
	m.starts++
	return nil
}

// Stop marks the recognizer as paused.
func (m *MockRecognizer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capturing = false
	m.stops++
	return nil
}

// Transcripts returns the transcript channel.
func (m *MockRecognizer) Transcripts() <-chan string {
	return m.out
}

// Close closes the transcript channel.
func (m *MockRecognizer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.out)
	}
	return nil
}

// Emit delivers a transcript as if the user had spoken.
func (m *MockRecognizer) Emit(text string) {
	m.out <- text
}

// Capturing reports whether the microphone is on.
func (m *MockRecognizer) Capturing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.capturing
}

// Starts returns how many times Start was called.
func (m *MockRecognizer) Starts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.starts
}

// MockSpeaker implements Speaker for testing. It records spoken texts
// and completes playback immediately unless Block is set.
type MockSpeaker struct {
	// SpeakErr, when set, is returned from every Speak call.
	SpeakErr error

	// Block, when non-nil, makes each Speak wait for one token on the
	// channel (or its close, or context cancellation) before completing.
	Block chan struct{}

	mu       sync.Mutex
	spoken   []string
	attempts int
	canceled int
}

// NewMockSpeaker creates a speaker that plays back instantly.
func NewMockSpeaker() *MockSpeaker {
	return &MockSpeaker{}
}

// Speak records the text, honoring Block and ctx.
func (m *MockSpeaker) Speak(ctx context.Context, text string) error {
	m.mu.Lock()
	m.attempts++
	m.mu.Unlock()

	if m.SpeakErr != nil {
		return m.SpeakErr
	}
	if m.Block != nil {
		select {
		case <-m.Block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	m.mu.Lock()
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()
	return nil
}

// Cancel counts cancellations.
func (m *MockSpeaker) Cancel() {
	m.mu.Lock()
	m.canceled++
	m.mu.Unlock()
}

// Close is a no-op.
func (m *MockSpeaker) Close() error {
	return nil
}

// Spoken returns everything spoken so far, in order.
func (m *MockSpeaker) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

// Attempts returns how many times Speak was entered, including calls
// still blocked or aborted by cancellation.
func (m *MockSpeaker) Attempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// CancelCount returns how many times Cancel was called.
func (m *MockSpeaker) CancelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}

var (
	_ Recognizer = (*MockRecognizer)(nil)
	_ Speaker    = (*MockSpeaker)(nil)
)
