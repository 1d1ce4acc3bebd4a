package domain

import "time"

// Package is the catalog view of one feed entry.
//
// It is rebuilt from the stored feed on every catalog reload; the feed stays
// the single source of truth.
type Package struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	// ID is the package identity from the manifest, unique in the feed.
	ID string `json:"id"`

	// Version of the latest published package for this ID.
	Version string `json:"version"`

	// ─────────────────────────────
	// Presentation
	// ─────────────────────────────

	Title     string `json:"title"`
	Summary   string `json:"summary"`
	Publisher string `json:"publisher"`

	// ─────────────────────────────
	// Links
	// ─────────────────────────────

	DownloadURL string `json:"download_url"`
	IconURL     string `json:"icon_url,omitempty"`

	// ─────────────────────────────
	// Feed bookkeeping
	// ─────────────────────────────

	// Position is the entry's index in the feed, 0 being the newest.
	Position int `json:"position"`

	Published time.Time `json:"published"`
	Updated   time.Time `json:"updated"`
}
