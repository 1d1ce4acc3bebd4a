package publisher

import "time"

// Notice kinds.
const (
	KindPublished = "published"
	KindSkipped   = "skipped"
)

// Notice describes a finished publish.
type Notice struct {
	Kind      string    `json:"kind"`
	Blob      string    `json:"blob"`
	ID        string    `json:"id,omitempty"`
	Version   string    `json:"version,omitempty"`
	Icon      bool      `json:"icon,omitempty"`
	Entries   int       `json:"entries"`
	Recovered bool      `json:"recovered,omitempty"`
	At        time.Time `json:"at"`
}

// Listener is told about every finished publish. Notify runs on the
// publishing goroutine and must not block.
type Listener interface {
	Notify(Notice)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Notice)

func (f ListenerFunc) Notify(n Notice) { f(n) }
