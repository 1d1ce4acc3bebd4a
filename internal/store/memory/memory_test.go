package memory

import (
	"context"
	"testing"

	"github.com/MrSnakeDoc/gallery/internal/store"
	"github.com/MrSnakeDoc/gallery/internal/store/storetest"
)

func TestStore(t *testing.T) {
	storetest.Run(t, New())
}

func TestGetReturnsCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	if err := s.Put(ctx, "atom.xml", []byte("feed"), store.ContentTypeFeed); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	obj, err := s.Get(ctx, "atom.xml")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	obj.Data[0] = 'X'

	again, _ := s.Get(ctx, "atom.xml")
	if string(again.Data) != "feed" {
		t.Errorf("stored data mutated through Get result: %q", again.Data)
	}
}
