package gallery

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// ParseFeed decodes a gallery feed document.
func ParseFeed(data []byte) (*Feed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrMalformedFeed)
	}

	var feed Feed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFeed, err)
	}

	feed.normalize()
	return &feed, nil
}

// newFeed returns an empty feed skeleton.
func (g *Gallery) newFeed() *Feed {
	return &Feed{
		Title: Text{Type: "text", Value: g.feedTitle},
		ID:    g.feedID,
	}
}

// loadFeed returns the working feed for a merge. A nil reader means no feed
// exists yet; an unreadable or malformed one is replaced by a fresh skeleton
// and the cause is returned alongside it so callers can report it.
func (g *Gallery) loadFeed(current io.Reader, now time.Time) (feed *Feed, recoverErr error) {
	if current == nil {
		feed = g.newFeed()
	} else {
		data, err := io.ReadAll(current)
		if err == nil {
			feed, err = ParseFeed(data)
		}
		if err != nil {
			feed = g.newFeed()
			recoverErr = err
		}
	}

	feed.Title = Text{Type: "text", Value: g.feedTitle}
	feed.ID = g.feedID
	if feed.Updated == "" {
		feed.Updated = formatTime(now)
	}
	return feed, recoverErr
}

// WriteTo serializes the feed as indented XML.
func (f *Feed) WriteTo(w io.Writer) (int64, error) {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)

	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(f); err != nil {
		return 0, fmt.Errorf("encode feed: %w", err)
	}
	if err := enc.Close(); err != nil {
		return 0, fmt.Errorf("encode feed: %w", err)
	}
	buf.WriteByte('\n')

	n, err := w.Write(buf.Bytes())
	if err != nil {
		return int64(n), fmt.Errorf("write feed: %w", err)
	}
	return int64(n), nil
}

// Entry returns the entry with the given package id.
func (f *Feed) Entry(id string) (*Entry, bool) {
	for _, e := range f.Entries {
		if e.ID == id {
			return e, true
		}
	}
	return nil, false
}

// normalize prepares a decoded feed for encoding. Namespace declarations
// read from the input are dropped and element names are made relative to
// their parent, leaving encoding/xml to declare every namespace in use.
func (f *Feed) normalize() {
	f.Title.Attrs = dropNamespaceDecls(f.Title.Attrs)
	f.Extra = normalizeElements(f.Extra, AtomNamespace)
	for _, e := range f.Entries {
		e.normalize()
	}
}

func (e *Entry) normalize() {
	e.Title.Attrs = dropNamespaceDecls(e.Title.Attrs)
	if e.Summary != nil {
		e.Summary.Attrs = dropNamespaceDecls(e.Summary.Attrs)
	}
	for i := range e.Links {
		e.Links[i].Attrs = dropNamespaceDecls(e.Links[i].Attrs)
	}
	if e.Author != nil {
		e.Author.Extra = normalizeElements(e.Author.Extra, AtomNamespace)
	}
	if c := e.Content; c != nil {
		c.Attrs = dropNamespaceDecls(c.Attrs)
		c.Children = normalizeElements(c.Children, AtomNamespace)
		if len(c.Children) > 0 {
			c.Text = trimLayout(c.Text)
		}
	}
	if v := e.Vsix; v != nil {
		v.References.Attrs = dropNamespaceDecls(v.References.Attrs)
		v.References.Children = normalizeElements(v.References.Children, GalleryNamespace)
		v.Extra = normalizeElements(v.Extra, GalleryNamespace)
	}
	e.Extra = normalizeElements(e.Extra, AtomNamespace)
}

// normalizeElements rewrites elems for encoding under a parent element in
// the parent namespace. An element in the parent namespace loses its
// namespace and inherits it; an element in no namespace under a namespaced
// parent gets an explicit empty default.
func normalizeElements(elems []Element, parent string) []Element {
	for i := range elems {
		el := &elems[i]
		space := el.XMLName.Space
		el.Attrs = dropNamespaceDecls(el.Attrs)
		switch {
		case space == parent:
			el.XMLName.Space = ""
		case space == "":
			el.Attrs = append(el.Attrs, xml.Attr{Name: xml.Name{Local: "xmlns"}})
		}
		el.Children = normalizeElements(el.Children, space)
		if len(el.Children) > 0 {
			el.Text = trimLayout(el.Text)
		}
	}
	return elems
}

// dropNamespaceDecls removes xmlns attributes. The encoder would otherwise
// write them back as attributes in a made-up namespace.
func dropNamespaceDecls(attrs []xml.Attr) []xml.Attr {
	kept := attrs[:0]
	for _, a := range attrs {
		if a.Name.Space == "xmlns" || (a.Name.Space == "" && a.Name.Local == "xmlns") {
			continue
		}
		kept = append(kept, a)
	}
	if len(kept) == 0 {
		return nil
	}
	return kept
}

// trimLayout drops whitespace-only text between child elements; the encoder
// indents children itself and the whitespace would grow on every write.
func trimLayout(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	return text
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
