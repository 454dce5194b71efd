// Package hints implements the SemanticHintsProvider: it gathers the three
// optional hint streams (ontology resolution, knowledge-graph insights,
// similar-query retrieval), merges them into a single model.Hints, and
// records which streams actually contributed. The merge rule ("ontology
// hints take precedence on confidence ties") is the one piece of
// cross-stream logic this package owns; each stream's own logic lives in
// its own package (ontology, knowledgegraph, ragstore).
package hints

import (
	"context"

	"sqlnexus/core/model"
	"sqlnexus/knowledgegraph"
	"sqlnexus/ontology"
	"sqlnexus/ragstore"
)

// OntologyResolver is the narrow slice of *ontology.Registry the provider
// needs, so tests can stub it without building a full registry.
type OntologyResolver interface {
	ResolveQuery(query string, availableTables []string) ontology.Resolution
}

// Provider gathers and merges the three hint streams. Each dependency is
// optional (nil-able); a nil dependency simply means that stream never
// contributes and is absent from the resulting Hints.Sources.
type Provider struct {
	Ontology      OntologyResolver
	Graph         knowledgegraph.Client
	SimilarQuery  ragstore.Store
}

// NewProvider builds a Provider from already-constructed stream
// dependencies. Any argument may be nil to disable that stream.
func NewProvider(ont OntologyResolver, graph knowledgegraph.Client, rag ragstore.Store) *Provider {
	return &Provider{Ontology: ont, Graph: graph, SimilarQuery: rag}
}

// Gather runs all configured streams and merges their contributions into a
// single Hints value. A stream error never fails the whole call — a failing
// or unconfigured stream is simply absent from the result, matching the
// "all three are optional" rule.
func (p *Provider) Gather(ctx context.Context, question string, snap *model.SchemaSnapshot, dialect model.DatabaseType, schemaName string) *model.Hints {
	merged := &model.Hints{SuggestedColumns: make(map[string][]model.ColumnSuggestion)}
	var sources []string

	var ontColumns map[string][]model.ColumnSuggestion
	if p.Ontology != nil {
		res := p.Ontology.ResolveQuery(question, tableNamesOf(snap))
		ontHints := res.ToHints()
		merged.DetectedConcepts = ontHints.DetectedConcepts
		ontColumns = ontHints.SuggestedColumns
		sources = append(sources, "ontology")
	}

	var graphColumns map[string][]model.ColumnSuggestion
	if p.Graph != nil {
		ins, err := knowledgegraph.GetGraphInsights(ctx, p.Graph, question, snap)
		if err == nil {
			merged.RelatedTables = ins.RelatedTables
			merged.SuggestedJoins = joinsToStrings(ins.SuggestedJoins)
			if len(ins.RelatedTables) > 0 || len(ins.SuggestedJoins) > 0 {
				sources = append(sources, "knowledge_graph")
			}
		}
	}

	merged.SuggestedColumns = mergeColumnSuggestions(ontColumns, graphColumns)

	if p.SimilarQuery != nil {
		pairs, err := p.SimilarQuery.SearchSimilar(ctx, question, dialect, schemaName)
		if err == nil && len(pairs) > 0 {
			merged.SimilarPastPairs = pairs
			sources = append(sources, "rag")
		}
	}

	merged.Sources = sources
	if len(merged.SuggestedColumns) == 0 {
		merged.SuggestedColumns = nil
	}
	return merged
}

func tableNamesOf(snap *model.SchemaSnapshot) []string {
	if snap == nil {
		return nil
	}
	return snap.TableNames()
}

func joinsToStrings(joins []knowledgegraph.Join) []string {
	var out []string
	for _, j := range joins {
		out = append(out, j.Describe())
	}
	return out
}

// mergeColumnSuggestions combines the ontology and graph streams' per-table
// column suggestions. A column suggested by both streams keeps the
// higher-confidence entry; on an exact confidence tie, the ontology's entry
// wins.
func mergeColumnSuggestions(ontology, graph map[string][]model.ColumnSuggestion) map[string][]model.ColumnSuggestion {
	merged := make(map[string][]model.ColumnSuggestion)

	for table, cols := range ontology {
		merged[table] = append(merged[table], cols...)
	}

	for table, cols := range graph {
		existing := merged[table]
		for _, gc := range cols {
			idx := indexOfColumn(existing, gc.Column)
			if idx < 0 {
				existing = append(existing, gc)
				continue
			}
			if gc.Confidence > existing[idx].Confidence {
				existing[idx] = gc
			}
			// equal or lower confidence: keep the existing (ontology-sourced) entry.
		}
		merged[table] = existing
	}

	return merged
}

func indexOfColumn(cols []model.ColumnSuggestion, name string) int {
	for i, c := range cols {
		if c.Column == name {
			return i
		}
	}
	return -1
}
