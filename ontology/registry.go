package ontology

import (
	"strings"

	"sqlnexus/core/model"
)

// Registry holds the concepts, relationships, and column mappings known to
// one ontology instance, plus the synonym/keyword indexes built over them.
// It is the Go rendering of OntologyService, generalized so the same type
// serves both the static default registry and a dynamically-generated one.
type Registry struct {
	Concepts      map[string]Concept
	Relationships map[string]Relationship
	ColumnMappings map[string][]ColumnMapping // table -> mappings

	synonymToConcept map[string]string
	keywordToColumns map[string][]ColumnMapping
}

// NewRegistry builds an empty registry ready for RegisterConcept/
// RegisterRelationship/RegisterColumnMapping calls.
func NewRegistry() *Registry {
	return &Registry{
		Concepts:         make(map[string]Concept),
		Relationships:    make(map[string]Relationship),
		ColumnMappings:   make(map[string][]ColumnMapping),
		synonymToConcept: make(map[string]string),
		keywordToColumns: make(map[string][]ColumnMapping),
	}
}

// Default returns the built-in procurement-domain registry (Vendor,
// Product, Order, Customer and their relationships), the Go transcription
// of ontology.py's _load_default_ontology.
func Default() *Registry {
	r := NewRegistry()

	r.RegisterConcept(Concept{
		Name:        "Vendor",
		Description: "A supplier or seller of products/services",
		Synonyms:    []string{"supplier", "seller", "merchant", "provider", "supplyer", "vender"},
		Properties: map[string]Property{
			"name": {Name: "name", DataType: "string", Required: true,
				Description: "Vendor identifier or name",
				Keywords:    []string{"name", "identifier", "title", "vendor name", "supplier name"},
				SemanticType: "identifier"},
			"category": {Name: "category", DataType: "string",
				Description: "Type or classification of vendor",
				Keywords:    []string{"category", "type", "classification", "class"},
				SemanticType: "classification"},
			"location": {Name: "location", DataType: "geography",
				Description: "Geographical location of vendor",
				Keywords:    []string{"location", "country", "region", "from", "based in", "located in"},
				SemanticType: "geography"},
			"contact": {Name: "contact", DataType: "string",
				Description: "Contact information",
				Keywords:    []string{"contact", "email", "phone", "address"},
				SemanticType: "contact_info"},
		},
	})

	r.RegisterConcept(Concept{
		Name:        "Product",
		Description: "An item that can be purchased or sold",
		Synonyms:    []string{"item", "goods", "merchandise", "stock", "sku", "article"},
		Properties: map[string]Property{
			"name": {Name: "name", DataType: "string", Required: true,
				Description: "Product name or identifier",
				Keywords:    []string{"product", "item name", "sku", "article"},
				SemanticType: "identifier"},
			"category": {Name: "category", DataType: "string",
				Description: "Product classification",
				Keywords:    []string{"category", "type", "class", "department"},
				SemanticType: "classification"},
			"price": {Name: "price", DataType: "currency",
				Description: "Monetary value of product",
				Keywords:    []string{"price", "cost", "rate", "value", "amount"},
				SemanticType: "currency"},
		},
	})

	r.RegisterConcept(Concept{
		Name:        "Order",
		Description: "A purchase request or transaction",
		Synonyms:    []string{"purchase", "transaction", "requisition", "po", "purchase order"},
		Properties: map[string]Property{
			"id": {Name: "id", DataType: "identifier", Required: true,
				Description: "Order identifier",
				Keywords:    []string{"order id", "po number", "reference", "order number"},
				SemanticType: "identifier"},
			"date": {Name: "date", DataType: "timestamp",
				Description: "Order date/time",
				Keywords:    []string{"date", "when", "created", "placed", "time", "timestamp"},
				SemanticType: "temporal"},
			"total": {Name: "total", DataType: "currency",
				Description: "Total order amount",
				Keywords:    []string{"total", "amount", "value", "sum", "cost", "price"},
				SemanticType: "currency"},
			"status": {Name: "status", DataType: "enum",
				Description: "Order status",
				Keywords:    []string{"status", "state", "condition"},
				SemanticType: "status"},
		},
	})

	r.RegisterConcept(Concept{
		Name:        "Customer",
		Description: "A buyer or purchaser",
		Synonyms:    []string{"buyer", "client", "purchaser", "consumer", "customer"},
		Properties: map[string]Property{
			"name": {Name: "name", DataType: "string", Required: true,
				Description: "Customer name",
				Keywords:    []string{"customer", "client name", "buyer name"},
				SemanticType: "identifier"},
		},
	})

	r.RegisterRelationship(Relationship{
		Name: "supplies", SourceConcept: "Vendor", TargetConcept: "Product",
		Description: "Vendor provides/sells Product",
		Synonyms:    []string{"provides", "sells", "offers", "distributes"},
		Cardinality: "one-to-many",
	})
	r.RegisterRelationship(Relationship{
		Name: "contains", SourceConcept: "Order", TargetConcept: "Product",
		Description: "Order includes Product",
		Synonyms:    []string{"includes", "has", "comprises", "with"},
		Cardinality: "many-to-many",
	})
	r.RegisterRelationship(Relationship{
		Name: "placed_by", SourceConcept: "Order", TargetConcept: "Customer",
		Description: "Order was made by Customer",
		Synonyms:    []string{"made by", "from", "ordered by", "by"},
		Cardinality: "many-to-one",
	})
	r.RegisterRelationship(Relationship{
		Name: "purchased_from", SourceConcept: "Order", TargetConcept: "Vendor",
		Description: "Order was bought from Vendor",
		Synonyms:    []string{"bought from", "from vendor", "supplied by"},
		Cardinality: "many-to-one",
	})

	return r
}

// RegisterConcept adds or replaces a concept and indexes its synonyms.
func (r *Registry) RegisterConcept(c Concept) {
	r.Concepts[c.Name] = c
	r.synonymToConcept[strings.ToLower(c.Name)] = c.Name
	for _, syn := range c.Synonyms {
		r.synonymToConcept[strings.ToLower(syn)] = c.Name
	}
}

// RegisterRelationship adds or replaces a relationship.
func (r *Registry) RegisterRelationship(rel Relationship) {
	r.Relationships[rel.Name] = rel
}

// RegisterColumnMapping records one column-to-concept mapping and indexes
// it by each of its keywords, mirroring register_column_mapping.
func (r *Registry) RegisterColumnMapping(m ColumnMapping) {
	r.ColumnMappings[m.Table] = append(r.ColumnMappings[m.Table], m)
	for _, kw := range m.Keywords {
		kwLower := strings.ToLower(kw)
		r.keywordToColumns[kwLower] = append(r.keywordToColumns[kwLower], m)
	}
}

// RegisterSchemaMappings walks every column of every table in snap and
// registers any mapping InferColumnMapping can infer from its name, the Go
// rendering of register_schema_mappings.
func (r *Registry) RegisterSchemaMappings(snap *model.SchemaSnapshot) {
	if snap == nil {
		return
	}
	if len(snap.TablesByName) == 0 {
		snap.Normalize()
	}
	for _, t := range snap.TablesByName {
		for _, c := range t.Columns {
			if mapping, ok := InferColumnMapping(t.TableName, c.Name, c.DataType); ok {
				r.RegisterColumnMapping(mapping)
			}
		}
	}
}

// ConceptInfo returns the concept by name, if registered.
func (r *Registry) ConceptInfo(name string) (Concept, bool) {
	c, ok := r.Concepts[name]
	return c, ok
}

// ColumnSemantics returns the registered mapping for one table.column, if any.
func (r *Registry) ColumnSemantics(table, column string) (ColumnMapping, bool) {
	for _, m := range r.ColumnMappings[table] {
		if m.Column == column {
			return m, true
		}
	}
	return ColumnMapping{}, false
}

// SearchColumnsByKeyword returns every mapping indexed under keyword.
func (r *Registry) SearchColumnsByKeyword(keyword string) []ColumnMapping {
	return r.keywordToColumns[strings.ToLower(keyword)]
}
