package ontology

import (
	"encoding/xml"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Generated is the exportable, serializable bundle produced by one dynamic
// generation run — the Go rendering of dynamic_ontology.py's ontology dict
// (concepts/properties/relationships/rules/metadata), the shape fed to both
// ExportYAML and ExportOWL.
type Generated struct {
	ConnectionID  string         `json:"connection_id" yaml:"connection_id"`
	Concepts      []Concept      `json:"concepts" yaml:"concepts"`
	Properties    []ColumnMapping `json:"properties" yaml:"properties"`
	Relationships []Relationship `json:"relationships" yaml:"relationships"`
	Metadata      Metadata       `json:"metadata" yaml:"metadata"`
}

// Metadata summarizes a generation run for the export header.
type Metadata struct {
	TableCount        int       `json:"table_count" yaml:"table_count"`
	ConceptCount      int       `json:"concept_count" yaml:"concept_count"`
	PropertyCount     int       `json:"property_count" yaml:"property_count"`
	RelationshipCount int       `json:"relationship_count" yaml:"relationship_count"`
	GeneratedAt       time.Time `json:"generated_at" yaml:"generated_at"`
}

// ExportYAML renders g as YAML. The exported file is a human/tooling-facing
// artifact, not an internal wire format, so it uses gopkg.in/yaml.v3 rather
// than a hand-rolled emitter.
func ExportYAML(g Generated) ([]byte, error) {
	out, err := yaml.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("ontology: marshal yaml: %w", err)
	}
	return out, nil
}

// owlNamespaces are the fixed W3C namespace URIs every export carries.
const (
	nsRDF  = "http://www.w3.org/1999/02/22-rdf-syntax-ns#"
	nsRDFS = "http://www.w3.org/2000/01/rdf-schema#"
	nsOWL  = "http://www.w3.org/2002/07/owl#"
	nsXSD  = "http://www.w3.org/2001/XMLSchema#"
)

type owlRDF struct {
	XMLName  xml.Name `xml:"rdf:RDF"`
	XMLNSRdf string   `xml:"xmlns:rdf,attr"`
	XMLNSRdfs string  `xml:"xmlns:rdfs,attr"`
	XMLNSOwl string   `xml:"xmlns:owl,attr"`
	XMLNSXsd string   `xml:"xmlns:xsd,attr"`
	XMLBase  string   `xml:"xml:base,attr"`

	Ontology owlOntology `xml:"owl:Ontology"`
	Classes  []owlClass  `xml:"owl:Class"`
	DataProps []owlDatatypeProperty `xml:"owl:DatatypeProperty"`
	ObjProps  []owlObjectProperty   `xml:"owl:ObjectProperty"`
}

type owlOntology struct {
	About   string `xml:"rdf:about,attr"`
	Label   string `xml:"rdfs:label"`
	Comment string `xml:"rdfs:comment"`
	Created string `xml:"dcterms:created"`
	Creator string `xml:"dcterms:creator"`
}

type owlClass struct {
	About      string `xml:"rdf:about,attr"`
	Label      string `xml:"rdfs:label"`
	Comment    string `xml:"rdfs:comment,omitempty"`
	SeeAlso    string `xml:"rdfs:seeAlso,omitempty"`
	Confidence string `xml:"sqlnexus:confidence,omitempty"`
}

type owlDatatypeProperty struct {
	About  string `xml:"rdf:about,attr"`
	Label  string `xml:"rdfs:label"`
	Domain owlRef `xml:"rdfs:domain"`
}

type owlObjectProperty struct {
	About       string `xml:"rdf:about,attr"`
	Label       string `xml:"rdfs:label"`
	Comment     string `xml:"rdfs:comment,omitempty"`
	Domain      owlRef `xml:"rdfs:domain"`
	Range       owlRef `xml:"rdfs:range"`
	Cardinality string `xml:"sqlnexus:cardinality,omitempty"`
}

type owlRef struct {
	Resource string `xml:"rdf:resource,attr"`
}

// ExportOWL renders g as a W3C OWL/RDF-XML document: concepts become
// owl:Class, column mappings become owl:DatatypeProperty, relationships
// become owl:ObjectProperty. encoding/xml is appropriate here: OWL/RDF-XML
// is a bespoke nested-element format with no lightweight OWL-authoring
// library to reach for, so struct-tag-driven encoding/xml covers it well.
func ExportOWL(g Generated) ([]byte, error) {
	baseURI := fmt.Sprintf("http://sqlnexus.local/ontology/%s#", orDefault(g.ConnectionID, "default"))

	doc := owlRDF{
		XMLNSRdf:  nsRDF,
		XMLNSRdfs: nsRDFS,
		XMLNSOwl:  nsOWL,
		XMLNSXsd:  nsXSD,
		XMLBase:   baseURI,
		Ontology: owlOntology{
			About: "",
			Label: fmt.Sprintf("SQLNexus Dynamic Ontology - %s", orDefault(g.ConnectionID, "Unknown")),
			Comment: fmt.Sprintf("Auto-generated ontology for database schema. Generated: %s. Tables: %d, Concepts: %d, Properties: %d",
				g.Metadata.GeneratedAt.Format(time.RFC3339), g.Metadata.TableCount, g.Metadata.ConceptCount, g.Metadata.PropertyCount),
			Created: g.Metadata.GeneratedAt.Format(time.RFC3339),
			Creator: "SQLNexus Dynamic Ontology Generator",
		},
	}

	for _, c := range g.Concepts {
		class := owlClass{
			About: baseURI + sanitizeURI(c.Name),
			Label: c.Name,
		}
		if c.Description != "" {
			class.Comment = c.Description
		}
		if len(c.Tables) > 0 {
			class.SeeAlso = "Database tables: " + joinComma(c.Tables)
		}
		if c.Confidence > 0 {
			class.Confidence = fmt.Sprintf("%v", c.Confidence)
		}
		doc.Classes = append(doc.Classes, class)
	}

	for _, p := range g.Properties {
		doc.DataProps = append(doc.DataProps, owlDatatypeProperty{
			About:  baseURI + sanitizeURI(p.Concept+"_"+p.Property),
			Label:  p.Concept + "." + p.Property,
			Domain: owlRef{Resource: "#" + sanitizeURI(p.Concept)},
		})
	}

	for _, rel := range g.Relationships {
		doc.ObjProps = append(doc.ObjProps, owlObjectProperty{
			About:       baseURI + sanitizeURI(rel.Name),
			Label:       rel.Name,
			Comment:     rel.Description,
			Domain:      owlRef{Resource: "#" + sanitizeURI(rel.SourceConcept)},
			Range:       owlRef{Resource: "#" + sanitizeURI(rel.TargetConcept)},
			Cardinality: rel.Cardinality,
		})
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("ontology: marshal owl: %w", err)
	}
	return append([]byte(xml.Header), out...), nil
}

func sanitizeURI(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r == ' ' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

func joinComma(items []string) string {
	out := ""
	for i, item := range items {
		if i > 0 {
			out += ", "
		}
		out += item
	}
	return out
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
