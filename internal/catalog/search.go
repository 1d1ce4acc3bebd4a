package catalog

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/MrSnakeDoc/gallery/internal/domain"
)

// searchDocument is what gets indexed for each package.
type searchDocument struct {
	ID        string
	Title     string
	Summary   string
	Publisher string
	Version   string
}

// buildIndexMapping creates the index mapping. Every field and the query
// side share the English analyzer so stemmed terms line up.
func buildIndexMapping() mapping.IndexMapping {
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	docMapping := bleve.NewDocumentMapping()
	for _, field := range []string{"ID", "Title", "Summary", "Publisher", "Version"} {
		docMapping.AddFieldMappingsAt(field, textFieldMapping)
	}

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = "en"
	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}

// buildSearchIndex indexes packages into a fresh in-memory index.
func buildSearchIndex(packages []*domain.Package) (bleve.Index, error) {
	idx, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create search index: %w", err)
	}

	batch := idx.NewBatch()
	for _, p := range packages {
		doc := searchDocument{
			ID:        p.ID,
			Title:     p.Title,
			Summary:   p.Summary,
			Publisher: p.Publisher,
			Version:   p.Version,
		}
		if err := batch.Index(p.ID, doc); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("batch index %s: %w", p.ID, err)
		}
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("commit batch: %w", err)
	}
	return idx, nil
}

// searchIDs runs a query string query (quotes, +/-, field:value, fuzzy ~)
// and returns matching package ids, best first.
func searchIDs(idx bleve.Index, queryStr string, limit int) ([]string, error) {
	query := bleve.NewQueryStringQuery(queryStr)
	if _, err := query.Parse(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	req := bleve.NewSearchRequestOptions(query, limit, 0, false)

	res, err := idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	ids := make([]string, 0, len(res.Hits))
	for _, hit := range res.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}
