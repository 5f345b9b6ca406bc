package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// Params configures a story search.
type Params struct {
	Query       string
	State       string   // e.g. PUBLISHED; empty matches every state
	Languages   []string // any of
	CountryCode string

	Limit  int
	Offset int

	SortBy    string // "relevance", "title", "recent"
	SortOrder string // "asc", "desc"
	Highlight bool
}

// DefaultParams returns relevance-ordered params with 20 results.
func DefaultParams() Params {
	return Params{Limit: 20, SortBy: "relevance", SortOrder: "desc"}
}

// Result is one page of matches.
type Result struct {
	Query  string `json:"query"`
	Total  uint64 `json:"total"`
	TookMs int64  `json:"took_ms"`
	Hits   []Hit  `json:"hits"`
}

// Hit is a single matched story.
type Hit struct {
	StoryID          int64             `json:"story_id"`
	Score            float64           `json:"score"`
	Title            string            `json:"title"`
	AsylumSeekerName string            `json:"asylum_seeker_name,omitempty"`
	Country          string            `json:"country,omitempty"`
	Tags             []string          `json:"tags,omitempty"`
	Highlights       map[string]string `json:"highlights,omitempty"`
}

// Search executes a query.
func (s *Index) Search(ctx context.Context, params Params) (*Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if params.Limit <= 0 {
		params.Limit = 20
	}

	req := bleve.NewSearchRequestOptions(buildQuery(params), params.Limit, params.Offset, false)
	addSorting(req, params)

	if params.Highlight {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("title")
		req.Highlight.AddField("asylum_seeker_name")
		req.Highlight.AddField("tags")
	}
	req.Fields = []string{"title", "asylum_seeker_name", "country", "tags"}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	out := &Result{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]Hit, 0, len(res.Hits)),
	}
	for _, h := range res.Hits {
		id, err := strconv.ParseInt(h.ID, 10, 64)
		if err != nil {
			continue
		}
		hit := Hit{StoryID: id, Score: h.Score}
		if v, ok := h.Fields["title"].(string); ok {
			hit.Title = v
		}
		if v, ok := h.Fields["asylum_seeker_name"].(string); ok {
			hit.AsylumSeekerName = v
		}
		if v, ok := h.Fields["country"].(string); ok {
			hit.Country = v
		}
		// A single-valued array field comes back as a plain string.
		switch v := h.Fields["tags"].(type) {
		case string:
			hit.Tags = []string{v}
		case []any:
			for _, t := range v {
				if s, ok := t.(string); ok {
					hit.Tags = append(hit.Tags, s)
				}
			}
		}
		if len(h.Fragments) > 0 {
			hit.Highlights = make(map[string]string)
			for field, frags := range h.Fragments {
				if len(frags) > 0 {
					hit.Highlights[field] = frags[0]
				}
			}
		}
		out.Hits = append(out.Hits, hit)
	}
	return out, nil
}

// buildQuery ANDs the text query with the keyword filters.
func buildQuery(params Params) query.Query {
	var queries []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		fields := []struct {
			name  string
			boost float64
		}{
			{"title", 3.0},
			{"asylum_seeker_name", 2.0},
			{"tags", 2.0},
			{"country", 1.5},
			{"description", 1.0},
		}
		text := make([]query.Query, 0, len(fields)+2)
		for _, f := range fields {
			m := bleve.NewMatchQuery(q)
			m.SetField(f.name)
			m.SetBoost(f.boost)
			text = append(text, m)
		}

		fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
		fuzzy.SetFuzziness(1)
		fuzzy.SetField("title")
		fuzzy.SetBoost(0.8)
		text = append(text, fuzzy)

		if len(q) >= 2 {
			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("title")
			prefix.SetBoost(0.5)
			text = append(text, prefix)
		}
		queries = append(queries, bleve.NewDisjunctionQuery(text...))
	}

	if params.State != "" {
		tq := bleve.NewTermQuery(params.State)
		tq.SetField("state")
		queries = append(queries, tq)
	}

	if len(params.Languages) > 0 {
		langs := make([]query.Query, len(params.Languages))
		for i, code := range params.Languages {
			tq := bleve.NewTermQuery(code)
			tq.SetField("languages")
			langs[i] = tq
		}
		queries = append(queries, bleve.NewDisjunctionQuery(langs...))
	}

	if params.CountryCode != "" {
		tq := bleve.NewTermQuery(params.CountryCode)
		tq.SetField("country_code")
		queries = append(queries, tq)
	}

	switch len(queries) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return queries[0]
	default:
		return bleve.NewConjunctionQuery(queries...)
	}
}

func addSorting(req *bleve.SearchRequest, params Params) {
	desc := params.SortOrder == "desc"
	switch params.SortBy {
	case "title":
		if desc {
			req.SortBy([]string{"-title"})
		} else {
			req.SortBy([]string{"title"})
		}
	case "recent":
		if params.SortOrder == "asc" {
			req.SortBy([]string{"created_at"})
		} else {
			req.SortBy([]string{"-created_at"})
		}
	default:
		req.SortBy([]string{"-_score"})
	}
}
