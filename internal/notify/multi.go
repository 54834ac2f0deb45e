package notify

import "github.com/ytget/stream-downloader/internal/model"

// Sink receives named events
type Sink interface {
	Emit(name string, payload any)
}

// Message is the wire form of one event
type Message struct {
	Event   string `json:"event"`
	Payload any    `json:"payload"`
}

// Multi delivers every event to each sink in order
type Multi []Sink

func (m Multi) Emit(name string, payload any) {
	for _, s := range m {
		s.Emit(name, payload)
	}
}

// Nop drops every event
type Nop struct{}

func (Nop) Emit(string, any) {}

// isTerminal reports whether name announces a finished download
func isTerminal(name string) bool {
	return name == model.EventSuccess || name == model.EventFailed
}
