package ontology

import (
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func sampleGenerated() Generated {
	return Generated{
		ConnectionID: "conn-1",
		Concepts: []Concept{
			{Name: "Vendor", Description: "A supplier", Tables: []string{"vendors"}, Confidence: 0.9},
		},
		Properties: []ColumnMapping{
			{Table: "vendors", Column: "vendor_name", Concept: "Vendor", Property: "name", Confidence: 0.9},
		},
		Relationships: []Relationship{
			{Name: "supplies", SourceConcept: "Vendor", TargetConcept: "Product", Cardinality: "one-to-many"},
		},
		Metadata: Metadata{
			TableCount: 1, ConceptCount: 1, PropertyCount: 1, RelationshipCount: 1,
			GeneratedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestExportYAML_RoundTrips(t *testing.T) {
	g := sampleGenerated()
	out, err := ExportYAML(g)
	if err != nil {
		t.Fatalf("ExportYAML() error = %v", err)
	}

	var back Generated
	if err := yaml.Unmarshal(out, &back); err != nil {
		t.Fatalf("yaml.Unmarshal() error = %v", err)
	}
	if back.ConnectionID != g.ConnectionID {
		t.Errorf("ConnectionID = %q, want %q", back.ConnectionID, g.ConnectionID)
	}
	if len(back.Concepts) != 1 || back.Concepts[0].Name != "Vendor" {
		t.Errorf("Concepts = %+v", back.Concepts)
	}
}

func TestExportOWL_ContainsClassesAndProperties(t *testing.T) {
	g := sampleGenerated()
	out, err := ExportOWL(g)
	if err != nil {
		t.Fatalf("ExportOWL() error = %v", err)
	}
	doc := string(out)

	for _, want := range []string{
		`<?xml`,
		`owl:Class`,
		`Vendor`,
		`owl:DatatypeProperty`,
		`owl:ObjectProperty`,
		`supplies`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("ExportOWL() missing %q in:\n%s", want, doc)
		}
	}
}

func TestSanitizeURI_ReplacesSpaces(t *testing.T) {
	if got := sanitizeURI("Purchase Order"); got != "Purchase_Order" {
		t.Errorf("sanitizeURI() = %q, want Purchase_Order", got)
	}
}
