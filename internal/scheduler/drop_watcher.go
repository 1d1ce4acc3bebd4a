package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/logger"
)

// DefaultDebounce is how long a dropped file must stay quiet before it is
// uploaded.
const DefaultDebounce = 500 * time.Millisecond

// Uploader stores and publishes a package. *publisher.Publisher implements it.
type Uploader interface {
	Upload(ctx context.Context, blob string, pkg []byte) (*gallery.Result, error)
}

// DropWatcher publishes every .vsix file written into a directory.
type DropWatcher struct {
	dir      string
	uploader Uploader
	logger   logger.Logger
	debounce time.Duration

	watcher *fsnotify.Watcher
	wg      sync.WaitGroup

	mu     sync.Mutex
	timers map[string]*time.Timer
}

func NewDropWatcher(dir string, uploader Uploader, log logger.Logger, debounce time.Duration) *DropWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &DropWatcher{
		dir:      dir,
		uploader: uploader,
		logger:   log,
		debounce: debounce,
		timers:   make(map[string]*time.Timer),
	}
}

// Start begins watching the directory. It returns once the watch is in place.
func (dw *DropWatcher) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(dw.dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", dw.dir, err)
	}
	dw.watcher = w

	dw.logger.Info("watching drop folder", logger.String("dir", dw.dir))

	dw.wg.Add(1)
	go func() {
		defer dw.wg.Done()
		for {
			select {
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
					continue
				}
				if !strings.EqualFold(filepath.Ext(event.Name), gallery.PackageExt) {
					continue
				}
				dw.schedule(ctx, event.Name)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				dw.logger.Warn("drop folder watch error", logger.Error(err))
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop closes the watcher and cancels pending uploads.
func (dw *DropWatcher) Stop() {
	if dw.watcher != nil {
		_ = dw.watcher.Close()
	}
	dw.wg.Wait()

	dw.mu.Lock()
	defer dw.mu.Unlock()
	for path, t := range dw.timers {
		t.Stop()
		delete(dw.timers, path)
	}
}

// schedule (re)starts the quiet period for path.
func (dw *DropWatcher) schedule(ctx context.Context, path string) {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if t, ok := dw.timers[path]; ok {
		t.Stop()
	}
	dw.timers[path] = time.AfterFunc(dw.debounce, func() {
		dw.mu.Lock()
		delete(dw.timers, path)
		dw.mu.Unlock()

		if err := dw.upload(ctx, path); err != nil {
			dw.logger.Error("failed to publish dropped package",
				logger.String("file", path),
				logger.Error(err))
		}
	})
}

func (dw *DropWatcher) upload(ctx context.Context, path string) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	blob := BlobName(path)
	res, err := dw.uploader.Upload(ctx, blob, data)
	if err != nil {
		return err
	}

	dw.logger.Info("published dropped package",
		logger.String("file", path),
		logger.String("blob", blob),
		logger.Bool("skipped", res.Skipped))
	return nil
}

// BlobName is the file name without directory and .vsix extension.
func BlobName(path string) string {
	base := filepath.Base(path)
	return base[:len(base)-len(filepath.Ext(base))]
}
