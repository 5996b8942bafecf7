// vezora-call is a terminal client for the assistant's voice call mode.
// Typed lines stand in for speech recognition; replies are printed
// sentence by sentence as they stream in, pacing each line like spoken
// playback. Commands: /mute, /end.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/SaiPranay04/Vezora-AI/internal/log"
	"github.com/SaiPranay04/Vezora-AI/pkg/tts"
	"github.com/SaiPranay04/Vezora-AI/pkg/voicecall"
)

func main() {
	backend := flag.String("backend", "http://localhost:5000", "Vezora backend URL")
	user := flag.String("user", "default", "User ID for settings and memory")
	debug := flag.Bool("debug", false, "Enable verbose debug logging")
	flag.Parse()

	level := "warn"
	if *debug {
		level = "debug"
	}
	log.Init(level)

	rec := newLineRecognizer(os.Stdin)
	spk := newConsoleSpeaker(os.Stdout)

	session := voicecall.NewSession(
		voicecall.NewClient(*backend, *user, &http.Client{}),
		rec, spk,
		voicecall.Config{Logger: log.L()},
	)

	fmt.Println("Voice call started. Type to talk, /mute to toggle mute, /end to hang up.")
	if err := session.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start call: %v\n", err)
		os.Exit(1)
	}

	rec.run(session)
	session.End()
	fmt.Println("Call ended.")
}

// lineRecognizer adapts stdin lines to the Recognizer interface.
type lineRecognizer struct {
	in  *bufio.Scanner
	out chan string

	capturing atomic.Bool
}

func newLineRecognizer(r *os.File) *lineRecognizer {
	return &lineRecognizer{
		in:  bufio.NewScanner(r),
		out: make(chan string, 4),
	}
}

func (l *lineRecognizer) Start() error {
	l.capturing.Store(true)
	return nil
}

func (l *lineRecognizer) Stop() error {
	l.capturing.Store(false)
	return nil
}

func (l *lineRecognizer) Transcripts() <-chan string {
	return l.out
}

func (l *lineRecognizer) Close() error {
	close(l.out)
	return nil
}

// run reads lines until EOF or /end, handling local commands itself.
// Lines typed while the assistant is replying are dropped, the same
// way speech is ignored while the microphone is off.
func (l *lineRecognizer) run(session *voicecall.Session) {
	for l.in.Scan() {
		line := strings.TrimSpace(l.in.Text())
		switch line {
		case "":
			continue
		case "/end":
			return
		case "/mute":
			if session.ToggleMute() {
				fmt.Println("[muted]")
			} else {
				fmt.Println("[unmuted]")
			}
			continue
		}

		if !l.capturing.Load() {
			fmt.Println("[still replying, ignored]")
			continue
		}
		l.out <- line
	}
}

// consoleSpeaker prints each sentence and pauses for roughly as long
// as speaking it would take, so the cadence matches a real call.
type consoleSpeaker struct {
	w *os.File
}

func newConsoleSpeaker(w *os.File) *consoleSpeaker {
	return &consoleSpeaker{w: w}
}

func (c *consoleSpeaker) Speak(ctx context.Context, text string) error {
	fmt.Fprintf(c.w, "vezora: %s\n", text)
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(tts.EstimateDuration(text, 1.0)):
		return nil
	}
}

func (c *consoleSpeaker) Cancel() {}

func (c *consoleSpeaker) Close() error {
	return nil
}
