package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/catalog"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/publisher"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

// FeedSource returns the stored feed. *publisher.Publisher implements it.
type FeedSource interface {
	Feed(ctx context.Context) (*store.Object, error)
}

// ReloadRecorder receives reload outcomes. *metrics.Metrics implements it.
type ReloadRecorder interface {
	ObserveReload(ok bool)
	SetFeedEntries(n int)
}

// CatalogReloader keeps the catalog in sync with the stored feed
type CatalogReloader struct {
	source        FeedSource
	index         *catalog.Index
	recorder      ReloadRecorder
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewCatalogReloader creates a new catalog reloader. manualTrigger may be
// shared with the HTTP reload endpoint; a nil channel gets a private one.
func NewCatalogReloader(
	source FeedSource,
	idx *catalog.Index,
	recorder ReloadRecorder,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	if manualTrigger == nil {
		manualTrigger = make(chan struct{}, 1)
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &CatalogReloader{
		source:        source,
		index:         idx,
		recorder:      recorder,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalog once and then reloads it on every tick or trigger.
func (cr *CatalogReloader) Start(ctx context.Context) error {
	if err := cr.Reload(ctx); err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}

	go func() {
		var tick <-chan time.Time
		if cr.interval > 0 {
			ticker := time.NewTicker(cr.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload catalog", logger.Error(err))
				}
			case <-cr.manualTrigger:
				cr.logger.Debug("catalog reload triggered")
				if err := cr.Reload(ctx); err != nil {
					cr.logger.Error("failed to reload catalog", logger.Error(err))
				}
			case <-cr.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the reloader
func (cr *CatalogReloader) Stop() {
	close(cr.stopCh)
}

// Trigger asks for a reload without blocking. It reports false when one is
// already pending.
func (cr *CatalogReloader) Trigger() bool {
	select {
	case cr.manualTrigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// Notify implements publisher.Listener: every published entry reloads the
// catalog.
func (cr *CatalogReloader) Notify(n publisher.Notice) {
	if n.Kind == publisher.KindPublished {
		cr.Trigger()
	}
}

// Reload reads the stored feed and rebuilds the catalog when it changed.
// A missing feed empties the catalog.
func (cr *CatalogReloader) Reload(ctx context.Context) error {
	var data []byte
	revision := ""

	obj, err := cr.source.Feed(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		cr.recorder.ObserveReload(false)
		return fmt.Errorf("failed to load feed: %w", err)
	default:
		data, revision = obj.Data, obj.Revision
	}

	if revision != "" && revision == cr.index.Revision() {
		return nil
	}

	if err := cr.index.Load(data, revision); err != nil {
		cr.recorder.ObserveReload(false)
		return fmt.Errorf("failed to index feed: %w", err)
	}
	cr.recorder.ObserveReload(true)
	cr.recorder.SetFeedEntries(cr.index.Count())

	cr.logger.Info("catalog reloaded",
		logger.Int("packages", cr.index.Count()),
		logger.String("revision", revision))
	return nil
}

type nopRecorder struct{}

func (nopRecorder) ObserveReload(bool) {}
func (nopRecorder) SetFeedEntries(int) {}
