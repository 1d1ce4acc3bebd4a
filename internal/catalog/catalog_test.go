package catalog

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/gallery/internal/gallery"
	"github.com/MrSnakeDoc/gallery/internal/gallery/gallerytest"
)

// buildFeed publishes the manifests in order and returns the resulting feed.
func buildFeed(t *testing.T, manifests ...gallerytest.Manifest) []byte {
	t.Helper()
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	g, err := gallery.New("https://example/", gallery.WithClock(func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}))
	if err != nil {
		t.Fatalf("gallery.New() error = %v", err)
	}

	var current []byte
	for _, m := range manifests {
		var in io.Reader
		if current != nil {
			in = bytes.NewReader(current)
		}
		var out bytes.Buffer
		pkg := gallerytest.VSIX(m, gallerytest.IconBytes)
		if _, err := g.UpdateFeed(bytes.NewReader(pkg), m.ID+"."+m.Version, in, &out, io.Discard); err != nil {
			t.Fatalf("UpdateFeed() error = %v", err)
		}
		current = out.Bytes()
	}
	return current
}

func manifest(id, title, description string) gallerytest.Manifest {
	m := gallerytest.Sample("1.0.0")
	m.ID, m.DisplayName, m.Description = id, title, description
	return m
}

func sampleFeed(t *testing.T) []byte {
	return buildFeed(t,
		manifest("Acme.Formatter", "Acme Formatter", "Formats source files on save"),
		manifest("Sample", "Sample", "desc"),
		manifest("Contoso.Themes", "Contoso Themes", "Dark and light color themes"),
	)
}

func TestIndexLoad(t *testing.T) {
	idx := NewIndex()
	defer func() { _ = idx.Close() }()

	if err := idx.Load(sampleFeed(t), "rev1"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if idx.Count() != 3 || idx.Revision() != "rev1" {
		t.Fatalf("Count() = %d, Revision() = %q", idx.Count(), idx.Revision())
	}
	if idx.GetLastReload().IsZero() {
		t.Errorf("GetLastReload() not set")
	}

	all := idx.All()
	wantOrder := []string{"Contoso.Themes", "Sample", "Acme.Formatter"}
	for i, id := range wantOrder {
		if all[i].ID != id || all[i].Position != i {
			t.Errorf("All()[%d] = %s@%d, want %s@%d", i, all[i].ID, all[i].Position, id, i)
		}
	}

	p, ok := idx.Get("Sample")
	if !ok {
		t.Fatal("Get(Sample) not found")
	}
	if p.Version != "1.0.0" || p.Publisher != "kzu" || p.DownloadURL != "https://example/Sample.1.0.0.vsix" || p.IconURL != "https://example/Sample.1.0.0.png" {
		t.Errorf("Get(Sample) = %+v", p)
	}
	if p.Published.IsZero() || p.Updated.IsZero() {
		t.Errorf("timestamps not parsed: %+v", p)
	}
}

func TestIndexLoadEmptyAndInvalid(t *testing.T) {
	idx := NewIndex()
	defer func() { _ = idx.Close() }()

	if err := idx.Load(sampleFeed(t), "rev1"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := idx.Load([]byte("<nope"), "rev2"); !errors.Is(err, gallery.ErrMalformedFeed) {
		t.Errorf("Load(invalid) error = %v, want ErrMalformedFeed", err)
	}
	if idx.Count() != 3 || idx.Revision() != "rev1" {
		t.Errorf("failed load replaced the catalog")
	}

	if err := idx.Load(nil, ""); err != nil {
		t.Fatalf("Load(nil) error = %v", err)
	}
	if idx.Count() != 0 {
		t.Errorf("Count() after empty load = %d", idx.Count())
	}
	res, err := idx.Search("sample", 10)
	if err != nil || len(res) != 0 {
		t.Errorf("Search() on empty catalog = %v, %v", res, err)
	}
}

func TestIndexSearch(t *testing.T) {
	idx := NewIndex()
	defer func() { _ = idx.Close() }()
	if err := idx.Load(sampleFeed(t), "rev"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name  string
		query string
		limit int
		want  []string
	}{
		{name: "empty query lists feed order", query: "", want: []string{"Contoso.Themes", "Sample", "Acme.Formatter"}},
		{name: "empty query honours limit", query: " ", limit: 1, want: []string{"Contoso.Themes"}},
		{name: "title word", query: "formatter", want: []string{"Acme.Formatter"}},
		{name: "stemmed summary", query: "theme", want: []string{"Contoso.Themes"}},
		{name: "id", query: "sample", want: []string{"Sample"}},
		{name: "no hit", query: "kubernetes", want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := idx.Search(tt.query, tt.limit)
			if err != nil {
				t.Fatalf("Search(%q) error = %v", tt.query, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Search(%q) = %d results, want %v", tt.query, len(got), tt.want)
			}
			for i := range tt.want {
				if got[i].ID != tt.want[i] {
					t.Errorf("Search(%q)[%d] = %s, want %s", tt.query, i, got[i].ID, tt.want[i])
				}
			}
		})
	}
}

func TestIndexSuggest(t *testing.T) {
	idx := NewIndex()
	defer func() { _ = idx.Close() }()
	if err := idx.Load(sampleFeed(t), "rev"); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := idx.Suggest("acme", 5)
	if len(got) == 0 || got[0].ID != "Acme.Formatter" {
		t.Errorf("Suggest(acme) = %v", got)
	}
	if got := idx.Suggest("zzzz", 5); len(got) != 0 {
		t.Errorf("Suggest(zzzz) = %v, want none", got)
	}
}

func TestLintCleanFeed(t *testing.T) {
	report, err := Lint(sampleFeed(t))
	if err != nil {
		t.Fatalf("Lint() error = %v", err)
	}
	if report.Entries != 3 {
		t.Errorf("Entries = %d, want 3", report.Entries)
	}
	if len(report.Problems) != 0 {
		t.Errorf("Problems = %v, want none", report.Problems)
	}
}

func TestLintProblems(t *testing.T) {
	feed := `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title type="text">Gallery</title>
  <id>Gallery</id>
  <updated>2024-01-01T00:00:00Z</updated>
  <entry>
    <id>A</id>
    <title type="text">A</title>
    <link rel="alternate" href="https://example/A.zip"></link>
    <updated>2024-01-01T00:00:00Z</updated>
  </entry>
  <entry>
    <id>A</id>
    <title type="text">A again</title>
    <link rel="alternate" href="https://example/A.vsix"></link>
    <updated>2024-02-01T00:00:00Z</updated>
    <Vsix xmlns="http://schemas.microsoft.com/developer/vsx-syndication-schema/2010"><Id>B</Id><Version>1</Version><References></References></Vsix>
  </entry>
</feed>`

	report, err := Lint([]byte(feed))
	if err != nil {
		t.Fatalf("Lint() error = %v", err)
	}

	wantMessages := []string{
		"duplicate entry id",
		"does not point at a .vsix",
		"entry has no Vsix block",
		"differs from the entry id",
		"not newest first",
	}
	for _, want := range wantMessages {
		found := false
		for _, p := range report.Problems {
			if strings.Contains(p.Message, want) {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("missing problem %q in %v", want, report.Problems)
		}
	}
	if report.Errors() < 3 {
		t.Errorf("Errors() = %d, want >= 3", report.Errors())
	}
}

func TestLintRejectsNonAtom(t *testing.T) {
	rss := `<?xml version="1.0"?><rss version="2.0"><channel><title>x</title></channel></rss>`
	if _, err := Lint([]byte(rss)); !errors.Is(err, ErrNotAtom) {
		t.Errorf("Lint(rss) error = %v, want ErrNotAtom", err)
	}
}
