// Package messaging carries publish requests over NSQ so uploads can be
// accepted immediately and merged by a worker.
package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidEvent is returned when a message body is not a usable event.
var ErrInvalidEvent = errors.New("invalid publish event")

// PublishEvent asks a worker to merge a stored package into the feed.
type PublishEvent struct {
	ID          uuid.UUID `json:"id"`
	Blob        string    `json:"blob"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewPublishEvent returns an event for blob with a fresh id.
func NewPublishEvent(blob string, now time.Time) PublishEvent {
	return PublishEvent{
		ID:          uuid.New(),
		Blob:        blob,
		RequestedAt: now.UTC(),
	}
}

func (e PublishEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePublishEvent parses a message body.
func DecodePublishEvent(body []byte) (PublishEvent, error) {
	var e PublishEvent
	if err := json.Unmarshal(body, &e); err != nil {
		return e, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if e.Blob == "" {
		return e, fmt.Errorf("%w: blob is empty", ErrInvalidEvent)
	}
	if e.ID == uuid.Nil {
		return e, fmt.Errorf("%w: id is missing", ErrInvalidEvent)
	}
	return e, nil
}
