package catalog

import (
	"time"

	"github.com/MrSnakeDoc/gallery/internal/domain"
	"github.com/MrSnakeDoc/gallery/internal/gallery"
)

// MapFeed converts feed entries into catalog packages, keeping feed order.
// Entries without an id are skipped.
func MapFeed(feed *gallery.Feed) []*domain.Package {
	packages := make([]*domain.Package, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if e.ID == "" {
			continue
		}
		packages = append(packages, mapEntry(e, len(packages)))
	}
	return packages
}

func mapEntry(e *gallery.Entry, position int) *domain.Package {
	return &domain.Package{
		ID:          e.ID,
		Version:     e.Version(),
		Title:       e.Title.Value,
		Summary:     e.SummaryText(),
		Publisher:   e.AuthorName(),
		DownloadURL: e.DownloadLink(),
		IconURL:     e.IconLink(),
		Position:    position,
		Published:   parseTime(e.Published),
		Updated:     parseTime(e.Updated),
	}
}

// parseTime accepts the RFC 3339 stamps the gallery writes; anything else
// becomes the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
