// Package ontology implements the semantic layer that maps natural-language
// terms onto database columns: a static procurement-domain concept registry
// (concepts, synonyms, column-mapping heuristics, query resolution) plus an
// LLM-driven dynamic generator for schemas the static registry doesn't
// cover (batch-of-10 LLM generation, concept merging).
package ontology

import (
	"regexp"
	"sort"
	"strings"
)

// Property is one attribute of a domain Concept — e.g. Vendor.name.
type Property struct {
	Name         string   `json:"name" yaml:"name"`
	DataType     string   `json:"data_type" yaml:"data_type"`
	Required     bool     `json:"required" yaml:"required"`
	Description  string   `json:"description" yaml:"description"`
	Keywords     []string `json:"keywords" yaml:"keywords"`
	SemanticType string   `json:"semantic_type" yaml:"semantic_type"`
}

// Concept is a business entity the ontology understands (Vendor, Order, ...).
type Concept struct {
	Name          string              `json:"name" yaml:"name"`
	Description   string              `json:"description" yaml:"description"`
	Synonyms      []string            `json:"synonyms" yaml:"synonyms"`
	Properties    map[string]Property `json:"properties" yaml:"properties"`
	ParentConcept string              `json:"parent_concept,omitempty" yaml:"parent_concept,omitempty"`

	// Tables/Confidence are populated for dynamically-generated concepts;
	// zero for static concepts.
	Tables     []string `json:"tables,omitempty" yaml:"tables,omitempty"`
	Confidence float64  `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// MatchesTerm reports whether term names this concept, by exact name or synonym.
func (c Concept) MatchesTerm(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == strings.ToLower(c.Name) {
		return true
	}
	for _, syn := range c.Synonyms {
		if strings.ToLower(syn) == term {
			return true
		}
	}
	return false
}

// ColumnMapping binds one database column to a concept property.
type ColumnMapping struct {
	Table        string   `json:"table" yaml:"table"`
	Column       string   `json:"column" yaml:"column"`
	Concept      string   `json:"concept" yaml:"concept"`
	Property     string   `json:"property" yaml:"property"`
	SemanticType string   `json:"semantic_type" yaml:"semantic_type"`
	Keywords     []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Confidence   float64  `json:"confidence" yaml:"confidence"`
	Description  string   `json:"description,omitempty" yaml:"description,omitempty"`
	DataType     string   `json:"data_type,omitempty" yaml:"data_type,omitempty"`
}

// Relationship describes how two concepts relate (Vendor supplies Product).
type Relationship struct {
	Name          string   `json:"name" yaml:"name"`
	SourceConcept string   `json:"source_concept" yaml:"source_concept"`
	TargetConcept string   `json:"target_concept" yaml:"target_concept"`
	Description   string   `json:"description" yaml:"description"`
	Synonyms      []string `json:"synonyms,omitempty" yaml:"synonyms,omitempty"`
	Cardinality   string   `json:"cardinality" yaml:"cardinality"` // one-to-one | one-to-many | many-to-many
}

// Resolution is the result of resolving a natural-language query against
// the registry: the concepts/properties mentioned, the columns they map
// to, and a confidence score — the Go rendering of SemanticResolution.
type Resolution struct {
	Concepts         []string
	Properties       []string
	Operations       []string
	ColumnMappings   []ColumnMapping
	Relationships    []Relationship
	Confidence       float64
	Reasoning        string
	SuggestedColumns map[string][]string // table -> column names, top mappings
}

var operationKeywords = []struct {
	op       string
	keywords []string
}{
	{"DISTINCT", []string{"unique", "distinct", "different", "deduplicate"}},
	{"COUNT", []string{"count", "number of", "how many", "total count"}},
	{"SUM", []string{"sum", "total", "add up"}},
	{"AVG", []string{"average", "mean", "avg"}},
	{"MAX", []string{"maximum", "max", "highest", "largest", "most"}},
	{"MIN", []string{"minimum", "min", "lowest", "smallest", "least"}},
	{"GROUP BY", []string{"group by", "grouped", "per", "for each"}},
	{"ORDER BY", []string{"sort", "order", "arrange", "sorted by"}},
}

// inferencePattern mirrors one tuple of ontology.py's `patterns` list in
// `_infer_column_mapping`: a regex tried against a lowercased column name,
// and the concept/property/semantic-type/keywords/confidence it implies.
type inferencePattern struct {
	re           *regexp.Regexp
	concept      string
	property     string
	semanticType string
	keywords     []string
	confidence   float64
}

var inferencePatterns = []inferencePattern{
	{regexp.MustCompile(`vendor.*group|vendor.*name|vendor.*id|supplier.*name`), "Vendor", "name", "identifier",
		[]string{"vendor", "supplier", "seller", "merchant", "provider"}, 0.90},
	{regexp.MustCompile(`vendor.*categ|vendor.*type|supplier.*categ`), "Vendor", "category", "classification",
		[]string{"vendor category", "supplier type"}, 0.85},
	{regexp.MustCompile(`country|location|region`), "Vendor", "location", "geography",
		[]string{"country", "location", "region", "from"}, 0.80},
	{regexp.MustCompile(`product.*name|item.*name|sku|article`), "Product", "name", "identifier",
		[]string{"product", "item", "sku"}, 0.90},
	{regexp.MustCompile(`product.*categ|item.*categ|product.*type`), "Product", "category", "classification",
		[]string{"product category", "item type"}, 0.85},
	{regexp.MustCompile(`price|cost|rate|amount`), "Product", "price", "currency",
		[]string{"price", "cost", "amount"}, 0.75},
	{regexp.MustCompile(`order.*id|po.*number|order.*num`), "Order", "id", "identifier",
		[]string{"order id", "po number"}, 0.95},
	{regexp.MustCompile(`created.*on|order.*date|purchase.*date|date`), "Order", "date", "temporal",
		[]string{"date", "created", "timestamp"}, 0.85},
	{regexp.MustCompile(`total.*amount|total.*value|total|net.*amount`), "Order", "total", "currency",
		[]string{"total", "amount", "value", "sum"}, 0.90},
	{regexp.MustCompile(`status|state|condition`), "Order", "status", "status",
		[]string{"status", "state"}, 0.85},
}

// InferColumnMapping applies the pattern table to one column name, returning
// the first matching mapping or ok=false. Patterns are tried in declaration
// order.
func InferColumnMapping(table, column, dataType string) (ColumnMapping, bool) {
	colLower := strings.ToLower(column)
	for _, p := range inferencePatterns {
		if p.re.MatchString(colLower) {
			return ColumnMapping{
				Table:        table,
				Column:       column,
				Concept:      p.concept,
				Property:     p.property,
				SemanticType: p.semanticType,
				Keywords:     p.keywords,
				Confidence:   p.confidence,
				Description:  "Auto-mapped " + column + " to " + p.concept + "." + p.property,
				DataType:     dataType,
			}, true
		}
	}
	return ColumnMapping{}, false
}

// detectOperations returns the SQL operations implied by the query's
// language (e.g. "how many" implies COUNT), in declaration order.
func detectOperations(query string) []string {
	var ops []string
	for _, oc := range operationKeywords {
		for _, kw := range oc.keywords {
			if strings.Contains(query, kw) {
				ops = append(ops, oc.op)
				break
			}
		}
	}
	return ops
}

func sortedKeys(m map[string]Property) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
