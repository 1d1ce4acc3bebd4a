package gallery

import "errors"

var (
	// ErrInvalidConfig is returned by New when a required setting is missing.
	ErrInvalidConfig = errors.New("invalid gallery configuration")

	// ErrInvalidRequest is returned by UpdateFeed for missing arguments.
	ErrInvalidRequest = errors.New("invalid update request")

	// ErrInvalidPackage means the package is not a readable zip archive.
	ErrInvalidPackage = errors.New("invalid package archive")

	// ErrInvalidManifest means the manifest is present but unusable.
	ErrInvalidManifest = errors.New("invalid package manifest")

	// ErrMalformedFeed is reported (never returned by UpdateFeed) when an
	// existing feed could not be parsed and was replaced.
	ErrMalformedFeed = errors.New("malformed feed")
)
