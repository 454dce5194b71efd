package knowledgegraph

import (
	"context"
	"testing"

	"sqlnexus/core/model"
)

func sampleSchema() *model.SchemaSnapshot {
	snap := &model.SchemaSnapshot{
		DatabaseName: "testdb",
		Tables: []model.TableDescriptor{
			{
				TableName: "orders", FullName: "public.orders",
				Columns: []model.ColumnDescriptor{{Name: "id"}, {Name: "vendor_id"}, {Name: "customer_id"}},
				ForeignKeys: []model.ForeignKey{
					{Column: "vendor_id", ReferencesTable: "vendors", ReferencesColumn: "id"},
					{Column: "customer_id", ReferencesTable: "customers", ReferencesColumn: "id"},
				},
			},
			{TableName: "vendors", FullName: "public.vendors", Columns: []model.ColumnDescriptor{{Name: "id"}, {Name: "vendor_name"}}},
			{TableName: "customers", FullName: "public.customers", Columns: []model.ColumnDescriptor{{Name: "id"}, {Name: "customer_name"}}},
			{TableName: "products", FullName: "public.products", Columns: []model.ColumnDescriptor{{Name: "id"}},
				ForeignKeys: []model.ForeignKey{{Column: "vendor_id", ReferencesTable: "vendors", ReferencesColumn: "id"}}},
			{TableName: "unrelated", FullName: "public.unrelated", Columns: []model.ColumnDescriptor{{Name: "id"}}},
		},
	}
	snap.Normalize()
	return snap
}

func TestLocalGraph_BuildFromSchema(t *testing.T) {
	g := NewLocalGraph()
	if err := g.BuildFromSchema(context.Background(), sampleSchema()); err != nil {
		t.Fatalf("BuildFromSchema() error = %v", err)
	}
	if !g.nodes["orders"] || !g.nodes["vendors"] || !g.nodes["unrelated"] {
		t.Fatalf("expected all tables registered as nodes, got %v", g.nodes)
	}
}

func TestLocalGraph_TableRelationships_DirectNeighbor(t *testing.T) {
	g := NewLocalGraph()
	g.BuildFromSchema(context.Background(), sampleSchema())

	rel, err := g.TableRelationships(context.Background(), "orders", 1)
	if err != nil {
		t.Fatalf("TableRelationships() error = %v", err)
	}
	if !contains(rel.RelatedTables, "vendors") || !contains(rel.RelatedTables, "customers") {
		t.Errorf("RelatedTables = %v, want vendors and customers within 1 hop", rel.RelatedTables)
	}
	if contains(rel.RelatedTables, "unrelated") {
		t.Errorf("RelatedTables = %v, should not include unrelated", rel.RelatedTables)
	}
}

func TestLocalGraph_TableRelationships_TwoHops(t *testing.T) {
	g := NewLocalGraph()
	g.BuildFromSchema(context.Background(), sampleSchema())

	rel, err := g.TableRelationships(context.Background(), "orders", 2)
	if err != nil {
		t.Fatalf("TableRelationships() error = %v", err)
	}
	if !contains(rel.RelatedTables, "products") {
		t.Errorf("RelatedTables = %v, want products reachable via vendors at 2 hops", rel.RelatedTables)
	}
}

func TestLocalGraph_FindJoinPath(t *testing.T) {
	g := NewLocalGraph()
	g.BuildFromSchema(context.Background(), sampleSchema())

	path, err := g.FindJoinPath(context.Background(), "orders", "products")
	if err != nil {
		t.Fatalf("FindJoinPath() error = %v", err)
	}
	want := []string{"orders", "vendors", "products"}
	if len(path) != len(want) {
		t.Fatalf("FindJoinPath() = %v, want length %d", path, len(want))
	}
	for i, w := range want {
		if path[i] != w {
			t.Errorf("FindJoinPath()[%d] = %q, want %q (full path %v)", i, path[i], w, path)
		}
	}
}

func TestLocalGraph_FindJoinPath_NoPath(t *testing.T) {
	g := NewLocalGraph()
	g.BuildFromSchema(context.Background(), sampleSchema())

	path, err := g.FindJoinPath(context.Background(), "orders", "unrelated")
	if err != nil {
		t.Fatalf("FindJoinPath() error = %v", err)
	}
	if path != nil {
		t.Errorf("FindJoinPath() = %v, want nil for disconnected tables", path)
	}
}

func TestRelatedTablesForQuery_SuggestsJoinThroughIntermediate(t *testing.T) {
	g := NewLocalGraph()
	g.BuildFromSchema(context.Background(), sampleSchema())

	insights, err := RelatedTablesForQuery(context.Background(), g, []string{"orders", "products"})
	if err != nil {
		t.Fatalf("RelatedTablesForQuery() error = %v", err)
	}
	if len(insights.SuggestedJoins) != 1 {
		t.Fatalf("SuggestedJoins = %+v, want 1 join via vendors", insights.SuggestedJoins)
	}
	if len(insights.Recommendations) == 0 {
		t.Errorf("expected at least one recommendation")
	}
}

func TestGetGraphInsights_NoMentionedTables(t *testing.T) {
	g := NewLocalGraph()
	snap := sampleSchema()
	g.BuildFromSchema(context.Background(), snap)

	insights, err := GetGraphInsights(context.Background(), g, "tell me something unrelated", snap)
	if err != nil {
		t.Fatalf("GetGraphInsights() error = %v", err)
	}
	if len(insights.RelatedTables) != 0 {
		t.Errorf("RelatedTables = %v, want empty when no table is mentioned", insights.RelatedTables)
	}
}

func TestGetGraphInsights_DetectsMentionedTable(t *testing.T) {
	g := NewLocalGraph()
	snap := sampleSchema()
	g.BuildFromSchema(context.Background(), snap)

	insights, err := GetGraphInsights(context.Background(), g, "show me all orders and products", snap)
	if err != nil {
		t.Fatalf("GetGraphInsights() error = %v", err)
	}
	if len(insights.SuggestedJoins) != 1 {
		t.Errorf("SuggestedJoins = %+v, want 1", insights.SuggestedJoins)
	}
}

func TestScoreGraphInsights_ScoresByDistance(t *testing.T) {
	g := NewLocalGraph()
	snap := sampleSchema()
	g.BuildFromSchema(context.Background(), snap)

	rel, err := g.TableRelationships(context.Background(), "orders", 2)
	if err != nil {
		t.Fatalf("TableRelationships() error = %v", err)
	}
	scored := ScoreGraphInsights("conn-1", rel, snap)
	if len(scored) == 0 {
		t.Fatal("expected at least one scored insight")
	}
	for _, s := range scored {
		if s.ConnectionID != "conn-1" {
			t.Errorf("ConnectionID = %q, want conn-1", s.ConnectionID)
		}
		if s.RelevanceScore <= 0 || s.RelevanceScore > 1 {
			t.Errorf("RelevanceScore = %v, want in (0, 1]", s.RelevanceScore)
		}
	}
}
