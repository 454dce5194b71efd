package hints

import (
	"context"
	"testing"
	"time"

	"sqlnexus/core/model"
	"sqlnexus/knowledgegraph"
	"sqlnexus/ontology"
	"sqlnexus/ragstore"
)

type stubResolver struct {
	resolution ontology.Resolution
}

func (s stubResolver) ResolveQuery(query string, availableTables []string) ontology.Resolution {
	return s.resolution
}

func sampleSnap() *model.SchemaSnapshot {
	snap := &model.SchemaSnapshot{Tables: []model.TableDescriptor{
		{TableName: "vendors", FullName: "public.vendors", Columns: []model.ColumnDescriptor{{Name: "vendor_name"}}},
		{TableName: "products", FullName: "public.products", Columns: []model.ColumnDescriptor{{Name: "id"}},
			ForeignKeys: []model.ForeignKey{{Column: "vendor_id", ReferencesTable: "vendors", ReferencesColumn: "id"}}},
	}}
	snap.Normalize()
	return snap
}

func TestGather_NoStreamsConfigured(t *testing.T) {
	p := NewProvider(nil, nil, nil)
	result := p.Gather(context.Background(), "show vendors", sampleSnap(), model.Postgres, "")
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %v, want empty when nothing is configured", result.Sources)
	}
}

func TestGather_OntologyOnlyContributesSource(t *testing.T) {
	resolver := stubResolver{resolution: ontology.Resolution{
		Concepts:         []string{"Vendor"},
		SuggestedColumns: map[string][]string{"vendors": {"vendor_name"}},
		Confidence:       0.8,
	}}
	p := NewProvider(resolver, nil, nil)
	result := p.Gather(context.Background(), "show vendors", sampleSnap(), model.Postgres, "")

	if len(result.Sources) != 1 || result.Sources[0] != "ontology" {
		t.Errorf("Sources = %v, want [ontology]", result.Sources)
	}
	if len(result.DetectedConcepts) != 1 || result.DetectedConcepts[0] != "Vendor" {
		t.Errorf("DetectedConcepts = %v", result.DetectedConcepts)
	}
	cols := result.SuggestedColumns["vendors"]
	if len(cols) != 1 || cols[0].Column != "vendor_name" {
		t.Errorf("SuggestedColumns[vendors] = %+v", cols)
	}
}

func TestGather_GraphOnlyContributesRelatedTablesAndJoins(t *testing.T) {
	snap := &model.SchemaSnapshot{Tables: []model.TableDescriptor{
		{TableName: "products", FullName: "public.products", Columns: []model.ColumnDescriptor{{Name: "id"}},
			ForeignKeys: []model.ForeignKey{{Column: "vendor_id", ReferencesTable: "vendors", ReferencesColumn: "id"}}},
		{TableName: "vendors", FullName: "public.vendors", Columns: []model.ColumnDescriptor{{Name: "id"}}},
		{TableName: "customers", FullName: "public.customers", Columns: []model.ColumnDescriptor{{Name: "id"}},
			ForeignKeys: []model.ForeignKey{{Column: "vendor_id", ReferencesTable: "vendors", ReferencesColumn: "id"}}},
	}}
	snap.Normalize()
	g := knowledgegraph.NewLocalGraph()
	g.BuildFromSchema(context.Background(), snap)

	p := NewProvider(nil, g, nil)
	result := p.Gather(context.Background(), "join products and customers", snap, model.Postgres, "")

	if len(result.Sources) != 1 || result.Sources[0] != "knowledge_graph" {
		t.Errorf("Sources = %v, want [knowledge_graph]", result.Sources)
	}
	if len(result.SuggestedJoins) != 1 {
		t.Errorf("SuggestedJoins = %v, want 1 join through vendors", result.SuggestedJoins)
	}
}

func TestGather_RagOnlyContributesSimilarPairs(t *testing.T) {
	store := ragstore.NewInMemoryStore(3, 0.3)
	store.Add(context.Background(), ragstore.Entry{
		Question: "show vendors in california", SQL: "SELECT * FROM vendors", Dialect: "postgresql",
		Success: true, RecordedAt: time.Now(),
	})

	p := NewProvider(nil, nil, store)
	result := p.Gather(context.Background(), "list vendors located in california", sampleSnap(), model.Postgres, "")

	if len(result.Sources) != 1 || result.Sources[0] != "rag" {
		t.Errorf("Sources = %v, want [rag]", result.Sources)
	}
	if len(result.SimilarPastPairs) != 1 {
		t.Errorf("SimilarPastPairs = %+v, want 1", result.SimilarPastPairs)
	}
}

func TestMergeColumnSuggestions_OntologyWinsConfidenceTie(t *testing.T) {
	ont := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_name", Confidence: 0.8}}}
	graph := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_name", Confidence: 0.8}}}

	merged := mergeColumnSuggestions(ont, graph)
	cols := merged["vendors"]
	if len(cols) != 1 {
		t.Fatalf("merged columns = %+v, want deduplicated to 1", cols)
	}
	if cols[0].Confidence != 0.8 {
		t.Errorf("Confidence = %v, want 0.8 (ontology's value preserved)", cols[0].Confidence)
	}
}

func TestMergeColumnSuggestions_HigherConfidenceWins(t *testing.T) {
	ont := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_name", Confidence: 0.5}}}
	graph := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_name", Confidence: 0.9}}}

	merged := mergeColumnSuggestions(ont, graph)
	cols := merged["vendors"]
	if len(cols) != 1 || cols[0].Confidence != 0.9 {
		t.Errorf("merged columns = %+v, want graph's higher 0.9 to win", cols)
	}
}

func TestMergeColumnSuggestions_UnionsDistinctColumns(t *testing.T) {
	ont := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_name", Confidence: 0.8}}}
	graph := map[string][]model.ColumnSuggestion{"vendors": {{Column: "vendor_id", Confidence: 0.6}}}

	merged := mergeColumnSuggestions(ont, graph)
	if len(merged["vendors"]) != 2 {
		t.Errorf("merged columns = %+v, want both columns present", merged["vendors"])
	}
}
