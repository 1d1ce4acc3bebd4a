package catalog

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
)

// ErrNotAtom is returned by Lint when the document is not an Atom feed at all.
var ErrNotAtom = errors.New("document is not an Atom feed")

// Severity of a lint problem.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

type Problem struct {
	Entry    string `json:"entry,omitempty"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func (p Problem) String() string {
	if p.Entry == "" {
		return fmt.Sprintf("%s: %s", p.Severity, p.Message)
	}
	return fmt.Sprintf("%s: entry %q: %s", p.Severity, p.Entry, p.Message)
}

// Report is the outcome of Lint.
type Report struct {
	Title    string    `json:"title"`
	Entries  int       `json:"entries"`
	Problems []Problem `json:"problems"`
}

// Errors counts problems of error severity.
func (r *Report) Errors() int {
	n := 0
	for _, p := range r.Problems {
		if p.Severity == SeverityError {
			n++
		}
	}
	return n
}

func (r *Report) add(entry, severity, format string, args ...interface{}) {
	r.Problems = append(r.Problems, Problem{Entry: entry, Severity: severity, Message: fmt.Sprintf(format, args...)})
}

// Lint checks a stored feed twice: once as generic Atom, the way feed readers
// see it, and once as a gallery feed.
func Lint(data []byte) (*Report, error) {
	if gofeed.DetectFeedType(bytes.NewReader(data)) != gofeed.FeedTypeAtom {
		return nil, ErrNotAtom
	}
	generic, err := gofeed.NewParser().Parse(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotAtom, err)
	}
	feed, err := gallery.ParseFeed(data)
	if err != nil {
		return nil, err
	}

	r := &Report{Title: generic.Title, Entries: len(feed.Entries), Problems: []Problem{}}
	if generic.Title == "" {
		r.add("", SeverityError, "feed has no title")
	}
	if feed.ID == "" {
		r.add("", SeverityError, "feed has no id")
	}
	if generic.UpdatedParsed == nil {
		r.add("", SeverityError, "feed updated %q is not a timestamp", generic.Updated)
	}

	seen := make(map[string]bool, len(generic.Items))
	for _, item := range generic.Items {
		id := item.GUID
		switch {
		case id == "":
			r.add(item.Title, SeverityError, "entry has no id")
		case seen[id]:
			r.add(id, SeverityError, "duplicate entry id")
		}
		seen[id] = true

		if item.Title == "" {
			r.add(id, SeverityWarning, "entry has no title")
		}
		if !strings.HasSuffix(item.Link, gallery.PackageExt) {
			r.add(id, SeverityWarning, "download link %q does not point at a %s", item.Link, gallery.PackageExt)
		}
		if item.UpdatedParsed == nil {
			r.add(id, SeverityError, "entry updated %q is not a timestamp", item.Updated)
		}
	}

	for i, e := range feed.Entries {
		switch {
		case e.Vsix == nil:
			r.add(e.ID, SeverityError, "entry has no Vsix block")
		case e.Vsix.ID != e.ID:
			r.add(e.ID, SeverityError, "Vsix id %q differs from the entry id", e.Vsix.ID)
		case e.Vsix.Version == "":
			r.add(e.ID, SeverityError, "Vsix block has no version")
		}
		if icon := e.IconLink(); icon != "" && !strings.HasSuffix(icon, gallery.IconExt) {
			r.add(e.ID, SeverityWarning, "icon link %q does not point at a %s", icon, gallery.IconExt)
		}
		if i > 0 {
			prev, cur := parseTime(feed.Entries[i-1].Updated), parseTime(e.Updated)
			if !prev.IsZero() && !cur.IsZero() && cur.After(prev) {
				r.add(e.ID, SeverityWarning, "entry is newer than the one before it; feed is not newest first")
			}
		}
	}
	return r, nil
}
