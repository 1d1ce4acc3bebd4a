// Package catalog keeps a searchable, in-memory view of the stored feed.
package catalog

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/MrSnakeDoc/gallery/internal/domain"
	"github.com/MrSnakeDoc/gallery/internal/gallery"
)

// ErrInvalidQuery is returned by Search for query strings that do not parse.
var ErrInvalidQuery = errors.New("invalid search query")

// DefaultSearchLimit caps search results when the caller gives no limit.
const DefaultSearchLimit = 20

// Index provides in-memory lookup and search over the published packages.
// It is replaced wholesale on every reload.
type Index struct {
	mu         sync.RWMutex
	packages   map[string]*domain.Package // ID -> Package
	order      []*domain.Package          // feed order, newest first
	search     bleve.Index
	revision   string    // store revision of the loaded feed
	lastReload time.Time // Timestamp of last reload
}

// NewIndex creates an empty catalog.
func NewIndex() *Index {
	return &Index{
		packages: make(map[string]*domain.Package),
	}
}

// Load replaces the catalog with the packages of a serialized feed.
// Empty data means there is no feed yet and empties the catalog.
func (idx *Index) Load(data []byte, revision string) error {
	var packages []*domain.Package
	if len(data) > 0 {
		feed, err := gallery.ParseFeed(data)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		packages = MapFeed(feed)
	}
	return idx.Update(packages, revision)
}

// Update replaces all packages in the index
func (idx *Index) Update(packages []*domain.Package, revision string) error {
	search, err := buildSearchIndex(packages)
	if err != nil {
		return err
	}

	byID := make(map[string]*domain.Package, len(packages))
	for _, p := range packages {
		byID[p.ID] = p
	}

	idx.mu.Lock()
	old := idx.search
	idx.packages = byID
	idx.order = packages
	idx.search = search
	idx.revision = revision
	idx.lastReload = time.Now()
	idx.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	return nil
}

// Get retrieves a package by ID
func (idx *Index) Get(id string) (*domain.Package, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	p, ok := idx.packages[id]
	return p, ok
}

// All returns every package in feed order
func (idx *Index) All() []*domain.Package {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]*domain.Package, len(idx.order))
	copy(out, idx.order)
	return out
}

// Count returns the number of packages in the index
func (idx *Index) Count() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return len(idx.order)
}

// Revision returns the store revision of the loaded feed
func (idx *Index) Revision() string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.revision
}

// GetLastReload returns the timestamp of the last reload
func (idx *Index) GetLastReload() time.Time {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	return idx.lastReload
}

// Search runs a full-text query. An empty query lists packages in feed order.
func (idx *Index) Search(query string, limit int) ([]*domain.Package, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if strings.TrimSpace(query) == "" {
		n := min(limit, len(idx.order))
		out := make([]*domain.Package, n)
		copy(out, idx.order[:n])
		return out, nil
	}
	if idx.search == nil {
		return []*domain.Package{}, nil
	}

	ids, err := searchIDs(idx.search, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Package, 0, len(ids))
	for _, id := range ids {
		if p, ok := idx.packages[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Suggest returns the packages whose id or title look like query, best first.
// Used for "did you mean" answers when an exact lookup fails.
func (idx *Index) Suggest(query string, limit int) []*domain.Package {
	idx.mu.RLock()
	candidates := domain.RankPackages(query, idx.order)
	idx.mu.RUnlock()

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]*domain.Package, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.Package)
	}
	return out
}

// Close releases the search index.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.search == nil {
		return nil
	}
	err := idx.search.Close()
	idx.search = nil
	return err
}
