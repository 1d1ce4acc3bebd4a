package gallery

import "encoding/xml"

const (
	// AtomNamespace is the Atom 1.0 namespace used for the feed root.
	AtomNamespace = "http://www.w3.org/2005/Atom"

	// GalleryNamespace holds the gallery-specific elements of an entry (the Vsix block).
	GalleryNamespace = "http://schemas.microsoft.com/developer/vsx-syndication-schema/2010"

	// ManifestNamespace is the namespace of an extension.vsixmanifest document.
	ManifestNamespace = "http://schemas.microsoft.com/developer/vsx-schema/2011"
)

// Link relations used on gallery entries.
const (
	RelAlternate = "alternate"
	RelIcon      = "icon"
)

// Feed is the gallery Atom document.
//
// Entries are ordered newest first and carry at most one entry per package id.
// Feed-level elements the gallery does not know about are kept in Extra and
// written back untouched.
type Feed struct {
	XMLName xml.Name  `xml:"http://www.w3.org/2005/Atom feed"`
	Title   Text      `xml:"title"`
	ID      string    `xml:"id"`
	Updated string    `xml:"updated"`
	Extra   []Element `xml:",any"`
	Entries []*Entry  `xml:"entry"`
}

// Entry is one published package in the feed.
//
// Optional constructs are pointers so entries read from an existing feed are
// written back without elements they never had.
type Entry struct {
	ID        string    `xml:"id"`
	Title     Text      `xml:"title"`
	Links     []Link    `xml:"link"`
	Summary   *Text     `xml:"summary"`
	Published string    `xml:"published,omitempty"`
	Updated   string    `xml:"updated,omitempty"`
	Author    *Person   `xml:"author"`
	Content   *Content  `xml:"content"`
	Vsix      *Vsix     `xml:"http://schemas.microsoft.com/developer/vsx-syndication-schema/2010 Vsix"`
	Extra     []Element `xml:",any"`
}

// Text is an Atom text construct.
type Text struct {
	Type  string     `xml:"type,attr,omitempty"`
	Attrs []xml.Attr `xml:",any,attr"`
	Value string     `xml:",chardata"`
}

// Link is an Atom link.
type Link struct {
	Rel   string     `xml:"rel,attr,omitempty"`
	Href  string     `xml:"href,attr"`
	Attrs []xml.Attr `xml:",any,attr"`
}

// Person is an Atom person construct; only the name is used by the gallery.
type Person struct {
	Name  string    `xml:"name"`
	Extra []Element `xml:",any"`
}

// Content references the package payload. Entries read from a feed may
// carry inline content instead.
type Content struct {
	Type     string     `xml:"type,attr,omitempty"`
	Src      string     `xml:"src,attr,omitempty"`
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Element  `xml:",any"`
}

// Vsix is the gallery block describing the package for gallery tooling.
type Vsix struct {
	ID         string     `xml:"Id"`
	Version    string     `xml:"Version"`
	References References `xml:"References"`
	Extra      []Element  `xml:",any"`
}

// References is opaque to the gallery: new entries get an empty block and
// existing ones keep whatever they had.
type References struct {
	Attrs    []xml.Attr `xml:",any,attr"`
	Children []Element  `xml:",any"`
}

// Element is an unrecognized element kept with its attributes, text and
// children so the encoder can declare every namespace it uses.
type Element struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",any,attr"`
	Text     string     `xml:",chardata"`
	Children []Element  `xml:",any"`
}

// SummaryText returns the entry summary, or "" when it has none.
func (e *Entry) SummaryText() string {
	if e.Summary == nil {
		return ""
	}
	return e.Summary.Value
}

// AuthorName returns the entry author, or "" when it has none.
func (e *Entry) AuthorName() string {
	if e.Author == nil {
		return ""
	}
	return e.Author.Name
}

// DownloadLink returns the href of the alternate link, if any.
func (e *Entry) DownloadLink() string {
	return e.link(RelAlternate)
}

// IconLink returns the href of the icon link, if any.
func (e *Entry) IconLink() string {
	return e.link(RelIcon)
}

// Version returns the package version recorded in the Vsix block.
func (e *Entry) Version() string {
	if e.Vsix == nil {
		return ""
	}
	return e.Vsix.Version
}

func (e *Entry) link(rel string) string {
	for _, l := range e.Links {
		if l.Rel == rel {
			return l.Href
		}
	}
	return ""
}
