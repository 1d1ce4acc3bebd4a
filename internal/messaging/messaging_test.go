package messaging

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/nsqio/go-nsq"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

func TestPublishEventRoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	ev := NewPublishEvent("Sample.1.0.0", now)
	if ev.ID == uuid.Nil {
		t.Fatal("NewPublishEvent() left the id empty")
	}

	body, err := ev.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	got, err := DecodePublishEvent(body)
	if err != nil {
		t.Fatalf("DecodePublishEvent() error = %v", err)
	}
	if got.ID != ev.ID || got.Blob != ev.Blob || !got.RequestedAt.Equal(now) {
		t.Errorf("decoded = %+v, want %+v", got, ev)
	}
	if got.RequestedAt.Location() != time.UTC {
		t.Errorf("RequestedAt not UTC: %v", got.RequestedAt)
	}
}

func TestDecodePublishEventErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: "nope"},
		{name: "no blob", body: `{"id":"4f2a1b8e-9d7c-4e3b-8a6f-1c2d3e4f5a6b"}`},
		{name: "no id", body: `{"blob":"x"}`},
		{name: "bad id", body: `{"id":"nope","blob":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodePublishEvent([]byte(tt.body)); !errors.Is(err, ErrInvalidEvent) {
				t.Errorf("DecodePublishEvent(%s) error = %v, want ErrInvalidEvent", tt.body, err)
			}
		})
	}
}

type stubProcessor struct {
	blobs []string
	err   error
}

func (p *stubProcessor) PublishStored(_ context.Context, blob string) (*gallery.Result, error) {
	p.blobs = append(p.blobs, blob)
	if p.err != nil {
		return nil, p.err
	}
	return &gallery.Result{}, nil
}

func message(t *testing.T, body []byte) *nsq.Message {
	t.Helper()
	var id nsq.MessageID
	copy(id[:], "0123456789abcdef")
	return nsq.NewMessage(id, body)
}

func TestHandleMessage(t *testing.T) {
	valid, _ := NewPublishEvent("Sample.1.0.0", time.Now()).Marshal()

	tests := []struct {
		name      string
		body      []byte
		procErr   error
		wantErr   bool
		wantCalls int
	}{
		{name: "empty body is acknowledged", body: nil},
		{name: "garbage is dropped", body: []byte("{"), wantCalls: 0},
		{name: "published", body: valid, wantCalls: 1},
		{name: "missing package is dropped", body: valid, procErr: fmt.Errorf("load: %w", store.ErrNotFound), wantCalls: 1},
		{name: "invalid manifest is dropped", body: valid, procErr: gallery.ErrInvalidManifest, wantCalls: 1},
		{name: "transient failure is requeued", body: valid, procErr: errors.New("redis down"), wantErr: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{err: tt.procErr}
			h := &messageHandler{processor: proc, timeout: time.Second, log: logger.Nop()}

			err := h.HandleMessage(message(t, tt.body))
			if (err != nil) != tt.wantErr {
				t.Errorf("HandleMessage() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(proc.blobs) != tt.wantCalls {
				t.Errorf("processor calls = %d, want %d", len(proc.blobs), tt.wantCalls)
			}
		})
	}
}

func TestNSQLoggerLevels(t *testing.T) {
	l := newNSQLogger(logger.Nop())
	for _, line := range []string{"ERR    1 [gallery/publish] boom", "WRN    1 slow", "INF    1 connected"} {
		if err := l.Output(2, line); err != nil {
			t.Errorf("Output(%q) error = %v", line, err)
		}
	}
}
