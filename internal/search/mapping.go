package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the Bleve mapping for story documents.
//
// Stories are written in many languages, so text fields use the standard
// analyzer rather than a stemming one. Names use the simple analyzer.
// State, country code and languages are keyword fields for filtering.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = standard.Name

	docMapping := bleve.NewDocumentMapping()

	text := func(field, analyzer string, store, vectors bool) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = analyzer
		fm.Store = store
		fm.IncludeTermVectors = vectors
		docMapping.AddFieldMappingsAt(field, fm)
	}

	text("title", standard.Name, true, true)
	text("description", standard.Name, false, false)
	text("asylum_seeker_name", simple.Name, true, true)
	text("country", simple.Name, true, false)

	text("id", keyword.Name, false, false)
	text("state", keyword.Name, true, false)
	text("country_code", keyword.Name, true, false)
	text("tags", simple.Name, true, true)
	text("languages", keyword.Name, true, false)

	for _, field := range []string{"created_at", "updated_at"} {
		fm := bleve.NewNumericFieldMapping()
		fm.Store = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	indexMapping.AddDocumentMapping("_default", docMapping)
	return indexMapping
}
