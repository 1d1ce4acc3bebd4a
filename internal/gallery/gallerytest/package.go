// Package gallerytest builds VSIX archives in memory for tests.
package gallerytest

import (
	"archive/zip"
	"bytes"
	"fmt"
	"html"
	"sort"
)

// Manifest describes the package written by Package.
type Manifest struct {
	ID          string
	Version     string
	Publisher   string
	DisplayName string
	Description string
	Icon        string
}

// Sample returns the manifest of the reference test package at the given version.
func Sample(version string) Manifest {
	return Manifest{
		ID:          "Sample",
		Version:     version,
		Publisher:   "kzu",
		DisplayName: "Sample",
		Description: "desc",
		Icon:        "Icon.png",
	}
}

// XML renders the manifest as an extension.vsixmanifest document.
func (m Manifest) XML() string {
	icon := ""
	if m.Icon != "" {
		icon = fmt.Sprintf("\n    <Icon>%s</Icon>", html.EscapeString(m.Icon))
	}
	return fmt.Sprintf(`<?xml version="1.0" encoding="utf-8"?>
<PackageManifest Version="2.0.0" xmlns="http://schemas.microsoft.com/developer/vsx-schema/2011">
  <Metadata>
    <Identity Id=%q Version=%q Language="en-US" Publisher=%q />
    <DisplayName>%s</DisplayName>
    <Description xml:space="preserve">%s</Description>%s
  </Metadata>
  <Installation>
    <InstallationTarget Id="Microsoft.VisualStudio.Pro" Version="[11.0,)" />
  </Installation>
</PackageManifest>
`, m.ID, m.Version, m.Publisher, html.EscapeString(m.DisplayName), html.EscapeString(m.Description), icon)
}

// Package builds a zip archive holding the given files. Keys are archive paths.
func Package(files map[string][]byte) []byte {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range sortedKeys(files) {
		w, err := zw.Create(name)
		if err != nil {
			panic(err)
		}
		if _, err := w.Write(files[name]); err != nil {
			panic(err)
		}
	}
	if err := zw.Close(); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// VSIX builds a package holding the manifest and, when the manifest declares
// one, an icon with the given bytes.
func VSIX(m Manifest, icon []byte) []byte {
	files := map[string][]byte{
		"extension.vsixmanifest": []byte(m.XML()),
		"[Content_Types].xml":    []byte(`<?xml version="1.0" encoding="utf-8"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types" />`),
	}
	if m.Icon != "" && icon != nil {
		files[m.Icon] = icon
	}
	return Package(files)
}

// IconBytes is a stand-in PNG payload.
var IconBytes = []byte("\x89PNG\r\n\x1a\nicon")

func sortedKeys(m map[string][]byte) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
