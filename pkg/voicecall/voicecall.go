// Package voicecall orchestrates hands-free conversation with the
// assistant backend: capture a transcript, stream the reply sentence by
// sentence, speak each sentence as it arrives, then listen again.
//
// The session is a small state machine:
//
//	Idle → Listening → Processing → Speaking → Listening → ...
//
// Ending the call cancels everything immediately; nothing is spoken
// after End returns.
package voicecall

import "context"

// State is the session's current phase.
type State int

const (
	// StateIdle means no call is active.
	StateIdle State = iota

	// StateListening means the recognizer is capturing speech.
	StateListening

	// StateProcessing means a transcript was sent and the first
	// sentence has not arrived yet.
	StateProcessing

	// StateSpeaking means reply sentences are being played.
	StateSpeaking
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	default:
		return "unknown"
	}
}

// Recognizer captures user speech and delivers transcripts.
type Recognizer interface {
	// Start begins capturing. Transcripts arrive on Transcripts.
	Start() error

	// Stop pauses capturing. The channel stays open.
	Stop() error

	// Transcripts is the stream of recognized utterances. Closed only
	// when the recognizer itself shuts down.
	Transcripts() <-chan string

	// Close releases the recognizer and closes Transcripts.
	Close() error
}

// Speaker plays synthesized speech. Speak blocks until playback
// finishes, which is what lets the session know when to resume
// listening without guessing at audio duration.
type Speaker interface {
	// Speak plays the text and returns when playback completes or ctx
	// is canceled.
	Speak(ctx context.Context, text string) error

	// Cancel stops any in-flight playback immediately.
	Cancel()

	// Close releases the speaker.
	Close() error
}

// Snapshot is a point-in-time view of the session for display.
type Snapshot struct {
	State      State
	Transcript string
	Response   string
	Muted      bool
}
