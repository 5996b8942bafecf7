package voicecall

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// ackPhrase is spoken as soon as a transcript is accepted, so the
	// user hears something before the model produces its first sentence.
	ackPhrase = "One moment"

	// apologyPhrase is spoken when both the stream and the retry fail.
	apologyPhrase = "Sorry, I encountered an error"

	// defaultGraceDelay separates the end of playback from re-listening,
	// so the microphone does not pick up the tail of the reply.
	defaultGraceDelay = 1500 * time.Millisecond

	// defaultErrorDelay is the pause before re-listening after a failure.
	defaultErrorDelay = 2 * time.Second

	// sentenceBuffer is the playback queue depth. Synthesis of short
	// sentences outpaces playback, so a shallow queue suffices.
	sentenceBuffer = 16
)

// Config carries session parameters. Zero-value delays select defaults.
type Config struct {
	GraceDelay time.Duration
	ErrorDelay time.Duration
	Logger     *slog.Logger
}

// Session runs one voice call. Create with NewSession, drive with
// Start/End; state is observable through Snapshot.
type Session struct {
	client *Client
	rec    Recognizer
	spk    Speaker
	logger *slog.Logger

	graceDelay time.Duration
	errorDelay time.Duration

	mu            sync.Mutex
	state         State
	muted         bool
	micPaused     bool
	transcript    string
	response      string
	lastProcessed string

	cancel context.CancelFunc
	done   chan struct{}
}

// NewSession wires a session from its collaborators.
func NewSession(client *Client, rec Recognizer, spk Speaker, cfg Config) *Session {
	if cfg.GraceDelay == 0 {
		cfg.GraceDelay = defaultGraceDelay
	}
	if cfg.ErrorDelay == 0 {
		cfg.ErrorDelay = defaultErrorDelay
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client:     client,
		rec:        rec,
		spk:        spk,
		logger:     logger.With("component", "voicecall"),
		graceDelay: cfg.GraceDelay,
		errorDelay: cfg.ErrorDelay,
		state:      StateIdle,
	}
}

// Start begins the call: the recognizer starts capturing and the
// session goroutine processes transcripts until End.
func (s *Session) Start() error {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = StateListening
	s.micPaused = false
	s.transcript = ""
	s.response = ""
	s.lastProcessed = ""
	s.mu.Unlock()

	if err := s.rec.Start(); err != nil {
		cancel()
		s.setState(StateIdle)
		return err
	}

	go s.run(ctx)
	return nil
}

// End terminates the call. Playback is cancelled immediately; nothing
// is spoken after End returns.
func (s *Session) End() {
	s.mu.Lock()
	if s.state == StateIdle {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	cancel()
	s.spk.Cancel()
	s.rec.Stop()
	<-done

	s.mu.Lock()
	s.state = StateIdle
	s.transcript = ""
	s.response = ""
	s.lastProcessed = ""
	s.mu.Unlock()
}

// ToggleMute flips mute. Muting cancels in-flight playback; the reply
// text still accumulates for display.
func (s *Session) ToggleMute() bool {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	s.mu.Unlock()

	if muted {
		s.spk.Cancel()
	}
	return muted
}

// ToggleListen pauses or resumes the microphone while in the listening
// phase. Ignored while a reply is being produced.
func (s *Session) ToggleListen() error {
	s.mu.Lock()
	if s.state != StateListening {
		s.mu.Unlock()
		return nil
	}
	s.micPaused = !s.micPaused
	paused := s.micPaused
	s.mu.Unlock()

	if paused {
		return s.rec.Stop()
	}
	return s.rec.Start()
}

// Snapshot returns the current display state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		State:      s.state,
		Transcript: s.transcript,
		Response:   s.response,
		Muted:      s.muted,
	}
}

// run consumes transcripts until the call ends.
func (s *Session) run(ctx context.Context) {
	defer close(s.done)

	for {
		select {
		case <-ctx.Done():
			return
		case text, ok := <-s.rec.Transcripts():
			if !ok {
				return
			}
			text = strings.TrimSpace(text)
			if text == "" || !s.accept(text) {
				continue
			}
			s.handleTranscript(ctx, text)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// accept applies the duplicate guard and the listening-phase gate, and
// records the transcript for display.
func (s *Session) accept(text string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateListening {
		return false
	}
	if text == s.lastProcessed {
		return false
	}
	s.lastProcessed = text
	s.transcript = text
	s.response = ""
	s.state = StateProcessing
	return true
}

// handleTranscript runs one full turn: stream the reply, speak each
// sentence in arrival order, then resume listening after a grace delay.
func (s *Session) handleTranscript(ctx context.Context, text string) {
	s.rec.Stop()
	s.logger.Info("processing transcript", "text", text)

	s.say(ctx, ackPhrase)

	sentences := make(chan string, sentenceBuffer)
	playbackDone := make(chan struct{})

	// Single consumer keeps sentences strictly FIFO.
	go func() {
		defer close(playbackDone)
		for sentence := range sentences {
			if ctx.Err() != nil {
				continue
			}
			s.setState(StateSpeaking)
			s.say(ctx, sentence)
		}
	}()

	full, err := s.client.StreamChat(ctx, text, func(sentence string) error {
		s.appendResponse(sentence)
		// Sentences arriving while muted update the display only; they
		// must not play later if the user unmutes mid-reply.
		if s.isMuted() {
			return nil
		}
		select {
		case sentences <- sentence:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	close(sentences)
	<-playbackDone

	if ctx.Err() != nil {
		return
	}

	if err != nil {
		s.logger.Warn("streaming failed, retrying non-streaming", "error", err)
		s.recover(ctx, text)
		s.resume(ctx, s.errorDelay)
		return
	}

	s.setResponse(full)
	s.resume(ctx, s.graceDelay)
}

// recover retries the turn once without streaming; if that also fails,
// the session apologizes out loud so the user is not left in silence.
func (s *Session) recover(ctx context.Context, text string) {
	full, err := s.client.Chat(ctx, text)
	if err == nil {
		s.setResponse(full)
		s.setState(StateSpeaking)
		s.say(ctx, full)
		return
	}
	if ctx.Err() != nil {
		return
	}

	s.logger.Error("fallback request failed", "error", err)
	s.setResponse("Sorry, I encountered an error.")
	s.say(ctx, apologyPhrase)
}

// resume waits out the delay and restarts listening. The duplicate
// guard is cleared so the user may repeat themselves.
func (s *Session) resume(ctx context.Context, delay time.Duration) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(delay):
	}

	// Discard anything recognized while the reply was playing; it is
	// usually the microphone hearing the assistant itself.
drain:
	for {
		select {
		case _, ok := <-s.rec.Transcripts():
			if !ok {
				break drain
			}
		default:
			break drain
		}
	}

	s.mu.Lock()
	s.lastProcessed = ""
	s.micPaused = false
	s.state = StateListening
	s.mu.Unlock()

	if err := s.rec.Start(); err != nil {
		s.logger.Error("failed to restart recognizer", "error", err)
	}
}

// say speaks the text unless muted or the call has ended. Blocks until
// playback completes.
func (s *Session) say(ctx context.Context, text string) {
	if s.isMuted() || ctx.Err() != nil {
		return
	}
	if err := s.spk.Speak(ctx, text); err != nil && ctx.Err() == nil {
		s.logger.Warn("playback failed", "error", err)
	}
}

func (s *Session) isMuted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) setResponse(text string) {
	s.mu.Lock()
	s.response = strings.TrimSpace(text)
	s.mu.Unlock()
}

func (s *Session) appendResponse(sentence string) {
	s.mu.Lock()
	if s.response != "" {
		s.response += " "
	}
	s.response += sentence
	s.mu.Unlock()
}
