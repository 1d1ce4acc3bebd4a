package gallery

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// ManifestEntryName is the fixed archive path of the package manifest.
const ManifestEntryName = "extension.vsixmanifest"

// errNoManifest is internal: a package without a manifest is skipped, not rejected.
var errNoManifest = errors.New("package has no manifest")

// PackageManifest is the identity and presentation metadata of a package.
type PackageManifest struct {
	ID          string
	Version     string
	Publisher   string
	DisplayName string
	Description string
	Icon        string // archive path, empty when the package declares no icon
}

type manifestDocument struct {
	Metadata *manifestMetadata `xml:"http://schemas.microsoft.com/developer/vsx-schema/2011 Metadata"`
}

type manifestMetadata struct {
	Identity    *manifestIdentity `xml:"http://schemas.microsoft.com/developer/vsx-schema/2011 Identity"`
	DisplayName *string           `xml:"http://schemas.microsoft.com/developer/vsx-schema/2011 DisplayName"`
	Description *string           `xml:"http://schemas.microsoft.com/developer/vsx-schema/2011 Description"`
	Icon        *string           `xml:"http://schemas.microsoft.com/developer/vsx-schema/2011 Icon"`
}

type manifestIdentity struct {
	ID        string `xml:"Id,attr"`
	Version   string `xml:"Version,attr"`
	Publisher string `xml:"Publisher,attr"`
}

func (m manifestMetadata) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Identity, validation.NotNil),
		validation.Field(&m.DisplayName, validation.NotNil),
		validation.Field(&m.Description, validation.NotNil),
	)
}

func (i manifestIdentity) Validate() error {
	return validation.ValidateStruct(&i,
		validation.Field(&i.ID, validation.Required),
		validation.Field(&i.Version, validation.Required),
		validation.Field(&i.Publisher, validation.Required),
	)
}

// ReadManifest extracts the manifest from a package archive held in memory.
func ReadManifest(pkg []byte) (*PackageManifest, error) {
	zr, err := openArchive(pkg)
	if err != nil {
		return nil, err
	}
	return readManifest(zr)
}

func openArchive(pkg []byte) (*zip.Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(pkg), int64(len(pkg)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPackage, err)
	}
	return zr, nil
}

func readManifest(zr *zip.Reader) (*PackageManifest, error) {
	f := findFile(zr, ManifestEntryName)
	if f == nil {
		return nil, errNoManifest
	}

	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrInvalidManifest, ManifestEntryName, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrInvalidManifest, ManifestEntryName, err)
	}

	var doc manifestDocument
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}
	if doc.Metadata == nil {
		return nil, fmt.Errorf("%w: Metadata element is missing", ErrInvalidManifest)
	}
	// Validate recurses into Identity through its own Validate method.
	if err := doc.Metadata.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidManifest, err)
	}

	md := doc.Metadata
	m := &PackageManifest{
		ID:          md.Identity.ID,
		Version:     md.Identity.Version,
		Publisher:   md.Identity.Publisher,
		DisplayName: *md.DisplayName,
		Description: *md.Description,
	}
	if md.Icon != nil {
		m.Icon = *md.Icon
	}
	return m, nil
}

// findFile looks an archive entry up by its exact name.
func findFile(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}
