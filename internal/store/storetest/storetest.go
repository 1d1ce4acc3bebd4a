// Package storetest runs the behaviour every store.Store must share.
package storetest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/gallery/internal/store"
)

// Run exercises s. The store must start empty.
func Run(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := s.Get(ctx, "missing.vsix")
		if !errors.Is(err, store.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("put then get", func(t *testing.T) {
		data := []byte("package bytes")
		if err := s.Put(ctx, "A.1.0.0.vsix", data, store.ContentTypePackage); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		obj, err := s.Get(ctx, "A.1.0.0.vsix")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(obj.Data, data) {
			t.Errorf("Data = %q, want %q", obj.Data, data)
		}
		if obj.ContentType != store.ContentTypePackage {
			t.Errorf("ContentType = %q, want %q", obj.ContentType, store.ContentTypePackage)
		}
		if obj.Revision != store.RevisionOf(data) {
			t.Errorf("Revision = %q, want %q", obj.Revision, store.RevisionOf(data))
		}
	})

	t.Run("put default content type", func(t *testing.T) {
		if err := s.Put(ctx, "untyped", []byte("x"), ""); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		obj, err := s.Get(ctx, "untyped")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if obj.ContentType != store.ContentTypeDefault {
			t.Errorf("ContentType = %q, want %q", obj.ContentType, store.ContentTypeDefault)
		}
	})

	t.Run("invalid names", func(t *testing.T) {
		for _, name := range []string{"", "../atom.xml", `a\b`, ".."} {
			if err := s.Put(ctx, name, []byte("x"), ""); !errors.Is(err, store.ErrInvalidName) {
				t.Errorf("Put(%q) error = %v, want ErrInvalidName", name, err)
			}
		}
	})

	t.Run("compare and swap", func(t *testing.T) {
		const name = "atom.xml"
		v1, v2, v3 := []byte("<feed>1</feed>"), []byte("<feed>2</feed>"), []byte("<feed>3</feed>")

		if err := s.CompareAndSwap(ctx, name, "", v1, store.ContentTypeFeed); err != nil {
			t.Fatalf("create error = %v", err)
		}
		if err := s.CompareAndSwap(ctx, name, "", v2, store.ContentTypeFeed); !errors.Is(err, store.ErrConflict) {
			t.Errorf("create over existing error = %v, want ErrConflict", err)
		}
		if err := s.CompareAndSwap(ctx, name, store.RevisionOf(v2), v3, store.ContentTypeFeed); !errors.Is(err, store.ErrConflict) {
			t.Errorf("stale revision error = %v, want ErrConflict", err)
		}
		if err := s.CompareAndSwap(ctx, name, store.RevisionOf(v1), v2, store.ContentTypeFeed); err != nil {
			t.Fatalf("swap error = %v", err)
		}

		obj, err := s.Get(ctx, name)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(obj.Data, v2) || obj.Revision != store.RevisionOf(v2) {
			t.Errorf("after swap = %q (%s), want %q", obj.Data, obj.Revision, v2)
		}
	})

	t.Run("concurrent swaps have one winner per revision", func(t *testing.T) {
		const name = "race.xml"
		if err := s.Put(ctx, name, []byte("base"), store.ContentTypeFeed); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		base := store.RevisionOf([]byte("base"))

		const writers = 8
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.CompareAndSwap(ctx, name, base, []byte{byte('a' + i)}, store.ContentTypeFeed)
				switch {
				case err == nil:
					mu.Lock()
					wins++
					mu.Unlock()
				case !errors.Is(err, store.ErrConflict):
					t.Errorf("CompareAndSwap() error = %v", err)
				}
			}(i)
		}
		wg.Wait()

		if wins != 1 {
			t.Errorf("winners = %d, want 1", wins)
		}
	})

	t.Run("list", func(t *testing.T) {
		names, err := s.List(ctx)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		want := []string{"A.1.0.0.vsix", "atom.xml", "race.xml", "untyped"}
		if len(names) != len(want) {
			t.Fatalf("List() = %v, want %v", names, want)
		}
		for i := range want {
			if names[i] != want[i] {
				t.Errorf("List()[%d] = %q, want %q", i, names[i], want[i])
			}
		}
	})

	t.Run("ping", func(t *testing.T) {
		if err := s.Ping(ctx); err != nil {
			t.Errorf("Ping() error = %v", err)
		}
	})
}
