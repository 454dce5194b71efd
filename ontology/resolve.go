package ontology

import (
	"sort"
	"strings"

	"sqlnexus/core/model"
)

// ResolveQuery analyzes a natural-language query against the registry,
// restricted to availableTables, and returns the semantic resolution the
// agent loop injects as hints. The Go rendering of resolve_query.
func (r *Registry) ResolveQuery(query string, availableTables []string) Resolution {
	queryLower := strings.ToLower(strings.TrimSpace(query))

	concepts := r.extractConcepts(queryLower)
	properties := r.extractProperties(queryLower, concepts)
	operations := detectOperations(queryLower)
	mappings := r.findRelevantMappings(concepts, properties, availableTables)
	relationships := r.detectRelationships(queryLower, concepts)
	confidence := calculateConfidence(concepts, properties, mappings)
	reasoning := generateReasoning(concepts, properties, mappings)

	return Resolution{
		Concepts:         concepts,
		Properties:       properties,
		Operations:       operations,
		ColumnMappings:   mappings,
		Relationships:    relationships,
		Confidence:       confidence,
		Reasoning:        reasoning,
		SuggestedColumns: suggestedColumns(mappings),
	}
}

func (r *Registry) extractConcepts(query string) []string {
	var concepts []string
	seen := make(map[string]bool)

	for _, word := range strings.Fields(query) {
		word = strings.Trim(word, ".,!?")
		if concept, ok := r.synonymToConcept[word]; ok && !seen[concept] {
			concepts = append(concepts, concept)
			seen[concept] = true
		}
	}

	names := make([]string, 0, len(r.Concepts))
	for name := range r.Concepts {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := r.Concepts[name]
		if strings.Contains(query, strings.ToLower(c.Name)) && !seen[name] {
			concepts = append(concepts, name)
			seen[name] = true
		}
	}
	return concepts
}

func (r *Registry) extractProperties(query string, concepts []string) []string {
	var properties []string
	seen := make(map[string]bool)
	for _, conceptName := range concepts {
		c, ok := r.Concepts[conceptName]
		if !ok {
			continue
		}
		for _, propName := range sortedKeys(c.Properties) {
			prop := c.Properties[propName]
			for _, kw := range prop.Keywords {
				if strings.Contains(query, strings.ToLower(kw)) {
					if !seen[propName] {
						properties = append(properties, propName)
						seen[propName] = true
					}
					break
				}
			}
		}
	}
	return properties
}

func (r *Registry) findRelevantMappings(concepts, properties, availableTables []string) []ColumnMapping {
	conceptSet := toSet(concepts)
	propertySet := toSet(properties)

	var mappings []ColumnMapping
	for _, table := range availableTables {
		for _, m := range r.ColumnMappings[table] {
			if !conceptSet[m.Concept] {
				continue
			}
			if len(propertySet) == 0 || propertySet[m.Property] {
				mappings = append(mappings, m)
			}
		}
	}
	sort.SliceStable(mappings, func(i, j int) bool {
		return mappings[i].Confidence > mappings[j].Confidence
	})
	return mappings
}

func (r *Registry) detectRelationships(query string, concepts []string) []Relationship {
	conceptSet := toSet(concepts)
	names := make([]string, 0, len(r.Relationships))
	for name := range r.Relationships {
		names = append(names, name)
	}
	sort.Strings(names)

	var rels []Relationship
	for _, name := range names {
		rel := r.Relationships[name]
		if !conceptSet[rel.SourceConcept] || !conceptSet[rel.TargetConcept] {
			continue
		}
		candidates := append([]string{rel.Name}, rel.Synonyms...)
		for _, syn := range candidates {
			if strings.Contains(query, strings.ToLower(syn)) {
				rels = append(rels, rel)
				break
			}
		}
	}
	return rels
}

func calculateConfidence(concepts, properties []string, mappings []ColumnMapping) float64 {
	confidence := 0.5
	if len(concepts) > 0 {
		confidence += 0.2 * min1(float64(len(concepts))/2, 1.0)
	}
	if len(properties) > 0 {
		confidence += 0.15 * min1(float64(len(properties))/2, 1.0)
	}
	if len(mappings) > 0 {
		n := len(mappings)
		if n > 3 {
			n = 3
		}
		var sum float64
		for _, m := range mappings[:n] {
			sum += m.Confidence
		}
		confidence += 0.15 * (sum / float64(n))
	}
	return min1(confidence, 0.99)
}

func generateReasoning(concepts, properties []string, mappings []ColumnMapping) string {
	var parts []string
	if len(concepts) > 0 {
		parts = append(parts, "Detected concepts: "+strings.Join(concepts, ", "))
	}
	if len(properties) > 0 {
		parts = append(parts, "Querying properties: "+strings.Join(properties, ", "))
	}
	if len(mappings) > 0 {
		top := mappings[0]
		parts = append(parts, "Best match: "+top.Concept+"."+top.Property+" -> "+top.Table+"."+top.Column)
	}
	if len(parts) == 0 {
		return "No semantic resolution found"
	}
	return strings.Join(parts, "; ")
}

func suggestedColumns(mappings []ColumnMapping) map[string][]string {
	out := make(map[string][]string)
	n := len(mappings)
	if n > 5 {
		n = 5
	}
	for _, m := range mappings[:n] {
		out[m.Table] = append(out[m.Table], m.Column)
	}
	return out
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, i := range items {
		set[i] = true
	}
	return set
}

func min1(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// ToHints converts a Resolution into the model.Hints payload the agent loop
// merges with the knowledge-graph and RAG streams.
func (res Resolution) ToHints() *model.Hints {
	suggested := make(map[string][]model.ColumnSuggestion)
	for table, cols := range res.SuggestedColumns {
		for _, col := range cols {
			suggested[table] = append(suggested[table], model.ColumnSuggestion{
				Column:     col,
				Confidence: res.Confidence,
			})
		}
	}

	var joins []string
	for _, rel := range res.Relationships {
		joins = append(joins, rel.SourceConcept+" "+rel.Name+" "+rel.TargetConcept)
	}

	var related []string
	seen := make(map[string]bool)
	for _, m := range res.ColumnMappings {
		if !seen[m.Table] {
			related = append(related, m.Table)
			seen[m.Table] = true
		}
	}

	return &model.Hints{
		DetectedConcepts: res.Concepts,
		SuggestedColumns: suggested,
		SuggestedJoins:   joins,
		RelatedTables:    related,
		Sources:          []string{"ontology"},
	}
}
