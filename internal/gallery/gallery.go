// Package gallery merges VSIX packages into an Atom gallery feed.
//
// The package is pure: it reads the streams it is handed and writes the
// results to the writers it is handed. Persisting the feed is the caller's
// job, and so is serializing concurrent updates of the same feed: UpdateFeed
// is a read-modify-write, two calls racing on the same stored feed lose one
// of the updates unless the caller stores the result with a compare-and-swap
// (see internal/publisher).
package gallery

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	// DefaultFeedID is the feed id used when none is configured.
	DefaultFeedID = "Gallery"
	// DefaultFeedTitle is the feed title used when none is configured.
	DefaultFeedTitle = "Gallery"

	// PackageExt is appended to a blob name to form the package URL.
	PackageExt = ".vsix"
	// IconExt is appended to a blob name to form the icon URL.
	IconExt = ".png"
)

// Gallery holds the feed settings shared by every merge.
type Gallery struct {
	baseURL   string
	feedID    string
	feedTitle string
	now       func() time.Time
}

// Option configures a Gallery.
type Option func(*Gallery)

// WithFeedID sets the Atom id written on every merge.
func WithFeedID(id string) Option {
	return func(g *Gallery) { g.feedID = id }
}

// WithFeedTitle sets the Atom title written on every merge.
func WithFeedTitle(title string) Option {
	return func(g *Gallery) { g.feedTitle = title }
}

// WithClock replaces time.Now as the source of feed timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gallery) { g.now = now }
}

// New returns a Gallery publishing download links under storageBaseURL.
// The base URL always ends with a slash afterwards.
func New(storageBaseURL string, opts ...Option) (*Gallery, error) {
	if err := validation.Validate(strings.TrimSpace(storageBaseURL), validation.Required); err != nil {
		return nil, fmt.Errorf("%w: storage base url %v", ErrInvalidConfig, err)
	}

	g := &Gallery{
		baseURL:   storageBaseURL,
		feedID:    DefaultFeedID,
		feedTitle: DefaultFeedTitle,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}

	if !strings.HasSuffix(g.baseURL, "/") {
		g.baseURL += "/"
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// BaseURL returns the normalized storage base URL.
func (g *Gallery) BaseURL() string { return g.baseURL }

// FeedID returns the configured feed id.
func (g *Gallery) FeedID() string { return g.feedID }

// FeedTitle returns the configured feed title.
func (g *Gallery) FeedTitle() string { return g.feedTitle }

// Result describes what an UpdateFeed call did.
type Result struct {
	// Skipped is set when the package carried no manifest; the feed was
	// written back without a new entry.
	Skipped bool

	// FeedRecovered is set when the existing feed could not be parsed and a
	// fresh one was started. RecoveryErr holds the parse failure.
	FeedRecovered bool
	RecoveryErr   error

	// Icon is set when an icon was written to the icon writer.
	Icon bool

	// Manifest and Entry are nil when Skipped.
	Manifest *PackageManifest
	Entry    *Entry

	// Entries is the number of entries in the written feed.
	Entries int
}

// UpdateFeed merges the package read from pkg into the feed read from current
// and writes the result to feedOut. A nil current means there is no feed yet.
// When the package declares an icon it is written to iconOut; a nil iconOut
// disables icon extraction.
//
// Only an invalid request, a package that is not a zip, an unusable manifest,
// or a failure to write feedOut produce an error. Everything else degrades:
// see Result.
func (g *Gallery) UpdateFeed(pkg io.Reader, blobName string, current io.Reader, feedOut, iconOut io.Writer) (*Result, error) {
	if pkg == nil {
		return nil, fmt.Errorf("%w: package stream is nil", ErrInvalidRequest)
	}
	if blobName == "" {
		return nil, fmt.Errorf("%w: blob name is empty", ErrInvalidRequest)
	}
	if feedOut == nil {
		return nil, fmt.Errorf("%w: feed writer is nil", ErrInvalidRequest)
	}

	now := g.now()
	feed, recoverErr := g.loadFeed(current, now)
	res := &Result{
		FeedRecovered: recoverErr != nil,
		RecoveryErr:   recoverErr,
	}

	data, err := io.ReadAll(pkg)
	if err != nil {
		return nil, fmt.Errorf("%w: read package: %v", ErrInvalidPackage, err)
	}
	zr, err := openArchive(data)
	if err != nil {
		return nil, err
	}

	manifest, err := readManifest(zr)
	switch {
	case errors.Is(err, errNoManifest):
		res.Skipped = true
	case err != nil:
		return nil, err
	default:
		res.Manifest = manifest
		res.Icon = extractIcon(zr, manifest.Icon, iconOut)
		res.Entry = g.buildEntry(manifest, blobName, res.Icon, now)
		feed.Upsert(res.Entry, now)
	}

	if _, err := feed.WriteTo(feedOut); err != nil {
		return nil, err
	}
	res.Entries = len(feed.Entries)
	return res, nil
}
