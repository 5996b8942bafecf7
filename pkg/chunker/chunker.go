// Package chunker splits a token stream into sentence-sized fragments.
//
// Model streams arrive as arbitrary byte-aligned deltas; speech synthesis
// and incremental display both want complete sentences. The chunker
// accumulates deltas and emits a fragment whenever the buffer contains a
// sentence terminator, keeping the unterminated remainder buffered.
package chunker

import (
	"regexp"
	"strings"
)

// sentenceRe matches the shortest prefix ending in a sentence terminator,
// plus any whitespace that follows it.
var sentenceRe = regexp.MustCompile(`(?s)^(.*?[.!?])\s*`)

// Fragment is one sentence-sized unit of assistant output.
type Fragment struct {
	// Text is the fragment content, without boundary whitespace.
	Text string

	// Final marks the flushed remainder after the stream ends.
	Final bool
}

// Chunker accumulates stream deltas and yields sentence fragments.
// Not safe for concurrent use; each stream owns its own Chunker.
type Chunker struct {
	buf strings.Builder
}

// New creates an empty Chunker.
func New() *Chunker {
	return &Chunker{}
}

// Write appends a delta to the buffer and returns every complete
// sentence it now contains, in order. A single delta may complete
// zero, one, or several sentences.
func (c *Chunker) Write(delta string) []Fragment {
	if delta == "" {
		return nil
	}
	c.buf.WriteString(delta)

	var fragments []Fragment
	rest := c.buf.String()
	for {
		m := sentenceRe.FindStringSubmatch(rest)
		if m == nil {
			break
		}
		// A terminator at the very end of the buffer may not close the
		// sentence yet; the next delta can still extend it. Hold it until
		// following text or Flush settles the boundary.
		if len(m[0]) == len(rest) && len(m[0]) == len(m[1]) {
			break
		}
		text := strings.TrimSpace(m[1])
		if text != "" {
			fragments = append(fragments, Fragment{Text: text})
		}
		rest = rest[len(m[0]):]
	}

	c.buf.Reset()
	c.buf.WriteString(rest)
	return fragments
}

// Flush drains the buffer after the stream ends. The remainder, if any,
// becomes the final fragment even without a sentence terminator.
// Returns false when the buffer holds nothing but whitespace.
func (c *Chunker) Flush() (Fragment, bool) {
	text := strings.TrimSpace(c.buf.String())
	c.buf.Reset()
	if text == "" {
		return Fragment{}, false
	}
	return Fragment{Text: text, Final: true}, true
}

// Pending reports whether undelivered text remains in the buffer.
func (c *Chunker) Pending() bool {
	return strings.TrimSpace(c.buf.String()) != ""
}

// Split runs a complete text through a fresh chunker in one call.
// Convenience for non-streaming callers that still want sentence units.
func Split(text string) []Fragment {
	c := New()
	fragments := c.Write(text)
	if final, ok := c.Flush(); ok {
		fragments = append(fragments, final)
	}
	return fragments
}
