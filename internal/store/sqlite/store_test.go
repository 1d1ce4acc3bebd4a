package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/MrSnakeDoc/gallery/internal/store"
	"github.com/MrSnakeDoc/gallery/internal/store/storetest"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "gallery.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore(t *testing.T) {
	storetest.Run(t, openTestStore(t))
}

func TestStoreInMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()

	storetest.Run(t, s)
}

func TestReopenKeepsBlobs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gallery.db")
	ctx := context.Background()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := s.Put(ctx, "atom.xml", []byte("<feed/>"), store.ContentTypeFeed); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer func() { _ = s.Close() }()

	obj, err := s.Get(ctx, "atom.xml")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(obj.Data) != "<feed/>" {
		t.Errorf("Data = %q, want <feed/>", obj.Data)
	}
}

func TestEmptyBlob(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.Put(ctx, "empty", nil, ""); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	obj, err := s.Get(ctx, "empty")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(obj.Data) != 0 || obj.Revision != store.RevisionOf(nil) {
		t.Errorf("empty blob = %q rev %s", obj.Data, obj.Revision)
	}
}
