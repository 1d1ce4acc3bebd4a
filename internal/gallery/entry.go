package gallery

import "time"

// buildEntry creates the feed entry for a freshly published package.
//
// Published and Updated are both the merge time: republishing an id resets
// its publish date.
func (g *Gallery) buildEntry(m *PackageManifest, blobName string, hasIcon bool, now time.Time) *Entry {
	download := g.DownloadURL(blobName)
	stamp := formatTime(now)

	e := &Entry{
		ID:        m.ID,
		Title:     Text{Type: "text", Value: m.DisplayName},
		Links:     []Link{{Rel: RelAlternate, Href: download}},
		Summary:   &Text{Type: "text", Value: m.Description},
		Published: stamp,
		Updated:   stamp,
		Author:    &Person{Name: m.Publisher},
		Content:   &Content{Type: "application/octet-stream", Src: download},
		Vsix: &Vsix{
			ID:      m.ID,
			Version: m.Version,
		},
	}

	if hasIcon {
		e.Links = append(e.Links, Link{Rel: RelIcon, Href: g.IconURL(blobName)})
	}
	return e
}

// DownloadURL is the public location of the package blob.
func (g *Gallery) DownloadURL(blobName string) string {
	return g.baseURL + blobName + PackageExt
}

// IconURL is the public location of the icon blob extracted from the package.
func (g *Gallery) IconURL(blobName string) string {
	return g.baseURL + blobName + IconExt
}
