// Package publisher runs the gallery merge against a blob store.
//
// Each publish is a load-merge-store cycle on the feed blob. The store write is
// a compare-and-swap on the revision that was loaded, so two publishes racing
// on the same feed never lose an entry: the loser sees store.ErrConflict,
// reloads the feed and merges again.
package publisher

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/logger"
	"github.com/MrSnakeDoc/gallery/internal/metrics"
	"github.com/MrSnakeDoc/gallery/internal/store"
)

const (
	DefaultFeedName    = "atom.xml"
	DefaultMaxAttempts = 5
	DefaultBackoff     = 50 * time.Millisecond

	// CorruptSuffix names the copy kept of a feed that had to be replaced.
	CorruptSuffix = ".corrupt"
)

// ErrTooManyConflicts is returned when every attempt lost the feed race.
var ErrTooManyConflicts = errors.New("feed kept changing during publish")

// Recorder receives publish metrics. *metrics.Metrics implements it.
type Recorder interface {
	ObservePublish(result string, d time.Duration)
	IncConflict()
	IncRecovery()
	SetFeedEntries(n int)
	AddUploadBytes(n int)
}

type Options struct {
	FeedName    string
	MaxAttempts int
	Backoff     time.Duration
	Recorder    Recorder
}

type Publisher struct {
	gallery   *gallery.Gallery
	store     store.Store
	log       logger.Logger
	opts      Options
	listeners []Listener
}

func New(g *gallery.Gallery, s store.Store, log logger.Logger, opts Options) *Publisher {
	if opts.FeedName == "" {
		opts.FeedName = DefaultFeedName
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if opts.Backoff <= 0 {
		opts.Backoff = DefaultBackoff
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Publisher{
		gallery: g,
		store:   s,
		log:     log,
		opts:    opts,
	}
}

// Subscribe registers l for every publish notice. Not safe to call once
// publishing has started.
func (p *Publisher) Subscribe(l Listener) {
	p.listeners = append(p.listeners, l)
}

// FeedName is the blob name of the feed.
func (p *Publisher) FeedName() string { return p.opts.FeedName }

// Gallery returns the merge settings in use.
func (p *Publisher) Gallery() *gallery.Gallery { return p.gallery }

// Feed returns the stored feed blob.
func (p *Publisher) Feed(ctx context.Context) (*store.Object, error) {
	return p.store.Get(ctx, p.opts.FeedName)
}

// StorePackage checks that pkg is a readable package and stores it as
// "<blob>.vsix". Packages without a manifest are stored; merging them is a
// no-op.
func (p *Publisher) StorePackage(ctx context.Context, blob string, pkg []byte) error {
	name := blob + gallery.PackageExt
	if err := store.ValidateName(blob); err != nil {
		return fmt.Errorf("%w: %q", err, blob)
	}
	if _, err := gallery.ReadManifest(pkg); errors.Is(err, gallery.ErrInvalidPackage) || errors.Is(err, gallery.ErrInvalidManifest) {
		return err
	}
	if err := p.store.Put(ctx, name, pkg, store.ContentTypePackage); err != nil {
		return fmt.Errorf("store package %s: %w", name, err)
	}
	p.opts.Recorder.AddUploadBytes(len(pkg))
	return nil
}

// Upload stores the package then merges it into the feed.
func (p *Publisher) Upload(ctx context.Context, blob string, pkg []byte) (*gallery.Result, error) {
	if err := p.StorePackage(ctx, blob, pkg); err != nil {
		return nil, err
	}
	return p.Publish(ctx, blob, pkg)
}

// PublishStored merges a package that is already in the store.
func (p *Publisher) PublishStored(ctx context.Context, blob string) (*gallery.Result, error) {
	obj, err := p.store.Get(ctx, blob+gallery.PackageExt)
	if err != nil {
		return nil, fmt.Errorf("load package %s: %w", blob, err)
	}
	return p.Publish(ctx, blob, obj.Data)
}

// Publish merges pkg into the stored feed, retrying when another publish
// changed the feed in between.
func (p *Publisher) Publish(ctx context.Context, blob string, pkg []byte) (*gallery.Result, error) {
	start := time.Now()

	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		res, err := p.publishOnce(ctx, blob, pkg)
		if err == nil {
			p.finish(blob, res, attempt, time.Since(start))
			return res, nil
		}
		if !errors.Is(err, store.ErrConflict) {
			p.opts.Recorder.ObservePublish(metrics.ResultFailed, time.Since(start))
			p.log.Error("publish failed",
				logger.String("blob", blob),
				logger.Int("attempt", attempt),
				logger.Error(err))
			return nil, err
		}

		p.opts.Recorder.IncConflict()
		p.log.Warn("feed changed during publish, retrying",
			logger.String("blob", blob),
			logger.Int("attempt", attempt))

		if attempt < p.opts.MaxAttempts {
			if err := p.wait(ctx, attempt); err != nil {
				return nil, err
			}
		}
	}

	p.opts.Recorder.ObservePublish(metrics.ResultFailed, time.Since(start))
	return nil, fmt.Errorf("%w: %s after %d attempts", ErrTooManyConflicts, blob, p.opts.MaxAttempts)
}

func (p *Publisher) publishOnce(ctx context.Context, blob string, pkg []byte) (*gallery.Result, error) {
	var (
		current  io.Reader
		expected string
		old      *store.Object
	)
	obj, err := p.store.Get(ctx, p.opts.FeedName)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return nil, fmt.Errorf("load feed: %w", err)
	default:
		old = obj
		current = bytes.NewReader(obj.Data)
		expected = obj.Revision
	}

	var feed, icon bytes.Buffer
	res, err := p.gallery.UpdateFeed(bytes.NewReader(pkg), blob, current, &feed, &icon)
	if err != nil {
		return nil, err
	}
	if res.Skipped {
		return res, nil
	}

	if res.Icon {
		name := blob + gallery.IconExt
		if err := p.store.Put(ctx, name, icon.Bytes(), store.ContentTypeIcon); err != nil {
			return nil, fmt.Errorf("store icon %s: %w", name, err)
		}
	}

	if err := p.store.CompareAndSwap(ctx, p.opts.FeedName, expected, feed.Bytes(), store.ContentTypeFeed); err != nil {
		return nil, err
	}
	// Only the feed that was actually replaced is kept.
	if res.FeedRecovered && old != nil {
		p.keepCorrupt(ctx, old, res.RecoveryErr)
	}
	return res, nil
}

// keepCorrupt saves the unreadable feed next to the new one so it can be
// inspected; the publish goes on whatever happens here.
func (p *Publisher) keepCorrupt(ctx context.Context, old *store.Object, cause error) {
	name := CorruptName(p.opts.FeedName, old.Revision)
	p.opts.Recorder.IncRecovery()
	p.log.Warn("stored feed is unreadable, starting a new one",
		logger.String("feed", p.opts.FeedName),
		logger.String("kept_as", name),
		logger.Error(cause))

	if err := p.store.Put(ctx, name, old.Data, old.ContentType); err != nil {
		p.log.Error("failed to keep unreadable feed", logger.String("name", name), logger.Error(err))
	}
}

// CorruptName is the blob name under which a replaced feed with the given
// revision is kept, so later recoveries never overwrite an earlier copy.
func CorruptName(feedName, revision string) string {
	if len(revision) > 12 {
		revision = revision[:12]
	}
	return feedName + "." + revision + CorruptSuffix
}

func (p *Publisher) finish(blob string, res *gallery.Result, attempts int, elapsed time.Duration) {
	n := Notice{
		Blob:      blob,
		Entries:   res.Entries,
		Recovered: res.FeedRecovered,
		At:        time.Now().UTC(),
	}

	if res.Skipped {
		n.Kind = KindSkipped
		p.opts.Recorder.ObservePublish(metrics.ResultSkipped, elapsed)
		p.log.Warn("package has no manifest, feed left unchanged", logger.String("blob", blob))
	} else {
		n.Kind = KindPublished
		n.ID = res.Entry.ID
		n.Version = res.Entry.Version()
		n.Icon = res.Icon
		p.opts.Recorder.ObservePublish(metrics.ResultPublished, elapsed)
		p.opts.Recorder.SetFeedEntries(res.Entries)
		p.log.Info("package published",
			logger.String("blob", blob),
			logger.String("id", n.ID),
			logger.String("version", n.Version),
			logger.Bool("icon", res.Icon),
			logger.Int("entries", res.Entries),
			logger.Int("attempts", attempts),
			logger.Duration("elapsed", elapsed))
	}

	for _, l := range p.listeners {
		l.Notify(n)
	}
}

// wait backs off linearly with jitter so racing publishers spread out.
func (p *Publisher) wait(ctx context.Context, attempt int) error {
	d := p.opts.Backoff * time.Duration(attempt)
	d += rand.N(p.opts.Backoff)

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) ObservePublish(string, time.Duration) {}
func (nopRecorder) IncConflict()                         {}
func (nopRecorder) IncRecovery()                         {}
func (nopRecorder) SetFeedEntries(int)                   {}
func (nopRecorder) AddUploadBytes(int)                   {}
