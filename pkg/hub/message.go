// Package hub fans out server events to connected websocket clients
// using the channel-based broadcast pattern.
package hub

// Kind indicates the websocket frame format.
type Kind int

const (
	// KindJSON is a JSON-encoded event.
	KindJSON Kind = iota
	// KindAudio is raw synthesized audio.
	KindAudio
)

// Message is one frame queued for broadcast.
type Message struct {
	Kind Kind
	Data []byte
}

// NewJSON wraps pre-encoded JSON bytes.
func NewJSON(data []byte) Message {
	return Message{Kind: KindJSON, Data: data}
}

// NewAudio wraps an audio payload.
func NewAudio(data []byte) Message {
	return Message{Kind: KindAudio, Data: data}
}
