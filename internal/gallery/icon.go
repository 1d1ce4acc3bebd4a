package gallery

import (
	"archive/zip"
	"io"
	"strings"
)

// extractIcon copies the icon declared by the manifest into w and reports
// whether it did. Every failure means "no icon": the icon is cosmetic and must
// never fail a publish. The entry is read fully before anything reaches w so a
// corrupt stream cannot leave a truncated icon behind.
func extractIcon(zr *zip.Reader, iconPath string, w io.Writer) bool {
	if iconPath == "" || w == nil {
		return false
	}

	f := findFile(zr, iconPath)
	if f == nil {
		f = findFile(zr, normalizeEntryPath(iconPath))
	}
	if f == nil {
		return false
	}

	rc, err := f.Open()
	if err != nil {
		return false
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return false
	}

	if _, err := w.Write(data); err != nil {
		return false
	}
	return true
}

// normalizeEntryPath maps a manifest path written with Windows separators to
// the form zip entries use.
func normalizeEntryPath(p string) string {
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.TrimPrefix(p, "/")
}
