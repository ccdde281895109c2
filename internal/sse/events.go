package sse

// Push event names
const (
	EventSession = "session"
	EventError   = "error-message"
)

// Message is one push event
type Message struct {
	Event string
	Data  []byte
}
