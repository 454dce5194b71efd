package ontology

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"sqlnexus/core/model"
)

// structuredGenerator is the narrow slice of llmcap.Capability the
// generator depends on, kept as an interface so tests can stub it without
// importing llmcap (which would need a real eino ChatModel to construct).
type structuredGenerator interface {
	GenerateStructured(ctx context.Context, systemPrompt, userPrompt string, out interface{}) error
}

const batchSize = 10

// Generator produces a per-connection Generated ontology by asking an LLM
// to name domain concepts from the schema, batching tables 10 at a time to
// stay within a reasonable prompt size for large schemas.
type Generator struct {
	llm structuredGenerator

	mu    sync.Mutex
	cache map[string]Generated
}

// NewGenerator builds a Generator backed by llm.
func NewGenerator(llm structuredGenerator) *Generator {
	return &Generator{llm: llm, cache: make(map[string]Generated)}
}

type llmConcept struct {
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Tables        []string `json:"tables"`
	Properties    []string `json:"properties"`
	Relationships []string `json:"relationships"`
	Confidence    float64  `json:"confidence"`
}

type llmConceptBatch struct {
	Concepts []llmConcept `json:"concepts"`
}

// Generate builds (or returns the cached) ontology for connectionID's
// schema. force bypasses the cache. Tables beyond batchSize are processed
// in successive batches and the resulting concepts merged by name.
func (g *Generator) Generate(ctx context.Context, snap *model.SchemaSnapshot, connectionID string, force bool) (Generated, error) {
	if snap != nil && len(snap.TablesByName) == 0 {
		snap.Normalize()
	}
	cacheKey := connectionID
	if cacheKey == "" {
		cacheKey = "default"
	}

	g.mu.Lock()
	if !force {
		if cached, ok := g.cache[cacheKey]; ok {
			g.mu.Unlock()
			return cached, nil
		}
	}
	g.mu.Unlock()

	tables := tablesInOrder(snap)

	var allConcepts []llmConcept
	for start := 0; start < len(tables); start += batchSize {
		end := start + batchSize
		if end > len(tables) {
			end = len(tables)
		}
		batch := tables[start:end]

		summary := summarizeSchema(batch)
		concepts, err := g.generateConceptsForBatch(ctx, summary)
		if err != nil {
			return Generated{}, fmt.Errorf("ontology: generate concepts batch %d-%d: %w", start, end, err)
		}
		allConcepts = append(allConcepts, concepts...)
	}

	merged := mergeConcepts(allConcepts)

	concepts := make([]Concept, 0, len(merged))
	for _, c := range merged {
		concepts = append(concepts, Concept{
			Name:        c.Name,
			Description: c.Description,
			Tables:      c.Tables,
			Confidence:  c.Confidence,
		})
	}
	sort.Slice(concepts, func(i, j int) bool { return concepts[i].Name < concepts[j].Name })

	properties := propertyMappings(snap, merged)
	relationships := relationshipsFromConcepts(merged)

	result := Generated{
		ConnectionID:  connectionID,
		Concepts:      concepts,
		Properties:    properties,
		Relationships: relationships,
		Metadata: Metadata{
			TableCount:        len(tables),
			ConceptCount:      len(concepts),
			PropertyCount:     len(properties),
			RelationshipCount: len(relationships),
			GeneratedAt:       time.Now().UTC(),
		},
	}

	g.mu.Lock()
	g.cache[cacheKey] = result
	g.mu.Unlock()

	return result, nil
}

func (g *Generator) generateConceptsForBatch(ctx context.Context, schemaSummary string) ([]llmConcept, error) {
	system := "You are a database domain analyst. Respond with JSON only, no markdown fences, no commentary."
	prompt := fmt.Sprintf(`Analyze this database schema and identify the key domain concepts based ONLY on what you see below.

%s

Rules:
- Use only the table and column names shown above; never invent tables.
- Base each concept directly on an actual table name.
- List properties using the exact column names from the schema.

Return a JSON object: {"concepts": [{"name", "description", "tables": [...], "properties": [...], "relationships": [...], "confidence"}]}`, schemaSummary)

	var batch llmConceptBatch
	if err := g.llm.GenerateStructured(ctx, system, prompt, &batch); err != nil {
		return nil, err
	}
	return batch.Concepts, nil
}

// mergeConcepts combines same-named concepts from different batches,
// unioning their tables/properties/relationships and keeping the higher
// confidence — the Go rendering of _merge_concepts.
func mergeConcepts(concepts []llmConcept) map[string]llmConcept {
	merged := make(map[string]llmConcept)
	for _, c := range concepts {
		existing, ok := merged[c.Name]
		if !ok {
			merged[c.Name] = c
			continue
		}
		existing.Tables = unionStrings(existing.Tables, c.Tables)
		existing.Properties = unionStrings(existing.Properties, c.Properties)
		existing.Relationships = unionStrings(existing.Relationships, c.Relationships)
		if c.Confidence > existing.Confidence {
			existing.Confidence = c.Confidence
		}
		merged[c.Name] = existing
	}
	return merged
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// propertyMappings maps each merged concept's declared properties onto the
// actual schema columns that share the name, the Go analogue of
// _generate_property_mappings without a second LLM round-trip: the schema
// itself is authoritative for column existence and data type.
func propertyMappings(snap *model.SchemaSnapshot, merged map[string]llmConcept) []ColumnMapping {
	if snap == nil {
		return nil
	}
	var out []ColumnMapping
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		concept := merged[name]
		for _, table := range concept.Tables {
			t, ok := lookupTable(snap, table)
			if !ok {
				continue
			}
			for _, prop := range concept.Properties {
				col, ok := lookupColumn(t, prop)
				if !ok {
					continue
				}
				out = append(out, ColumnMapping{
					Table:       t.TableName,
					Column:      col.Name,
					Concept:     name,
					Property:    prop,
					DataType:    col.DataType,
					Confidence:  concept.Confidence,
					Description: fmt.Sprintf("%s.%s mapped to %s.%s", t.TableName, col.Name, name, prop),
				})
			}
		}
	}
	return out
}

// relationshipsFromConcepts parses the LLM's free-text relationship hints
// ("has RelatedConcept", "belongs to AnotherConcept") into structured
// Relationship values when the referenced concept was itself discovered.
func relationshipsFromConcepts(merged map[string]llmConcept) []Relationship {
	var out []Relationship
	names := make([]string, 0, len(merged))
	for name := range merged {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		concept := merged[name]
		for _, hint := range concept.Relationships {
			target, verb, ok := parseRelationshipHint(hint, merged)
			if !ok {
				continue
			}
			out = append(out, Relationship{
				Name:          strings.ToLower(strings.ReplaceAll(verb, " ", "_")),
				SourceConcept: name,
				TargetConcept: target,
				Description:   name + " " + verb + " " + target,
				Cardinality:   "many-to-many",
			})
		}
	}
	return out
}

func parseRelationshipHint(hint string, known map[string]llmConcept) (target, verb string, ok bool) {
	fields := strings.Fields(hint)
	if len(fields) < 2 {
		return "", "", false
	}
	last := fields[len(fields)-1]
	for name := range known {
		if strings.EqualFold(name, last) {
			return name, strings.Join(fields[:len(fields)-1], " "), true
		}
	}
	return "", "", false
}

func lookupTable(snap *model.SchemaSnapshot, name string) (model.TableDescriptor, bool) {
	for _, t := range snap.TablesByName {
		if t.TableName == name || t.FullName == name {
			return t, true
		}
	}
	return model.TableDescriptor{}, false
}

func lookupColumn(t model.TableDescriptor, name string) (model.ColumnDescriptor, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return model.ColumnDescriptor{}, false
}

func tablesInOrder(snap *model.SchemaSnapshot) []model.TableDescriptor {
	if snap == nil {
		return nil
	}
	if len(snap.Tables) > 0 {
		return snap.Tables
	}
	names := make([]string, 0, len(snap.TablesByName))
	for name := range snap.TablesByName {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]model.TableDescriptor, 0, len(names))
	for _, name := range names {
		out = append(out, snap.TablesByName[name])
	}
	return out
}

// summarizeSchema renders a batch of tables as the plain-text block fed to
// the LLM prompt, the Go rendering of _summarize_schema.
func summarizeSchema(tables []model.TableDescriptor) string {
	var b strings.Builder
	fmt.Fprintf(&b, "DATABASE SCHEMA SUMMARY:\nTotal tables: %d\n\n", len(tables))
	for _, t := range tables {
		fmt.Fprintf(&b, "Table: %s\n", t.FullName)
		fmt.Fprintf(&b, "  Columns (%d):\n", len(t.Columns))
		for _, c := range t.Columns {
			var flags []string
			if c.PrimaryKey {
				flags = append(flags, "PK")
			}
			if !c.Nullable {
				flags = append(flags, "NOT NULL")
			}
			flagStr := ""
			if len(flags) > 0 {
				flagStr = " [" + strings.Join(flags, ", ") + "]"
			}
			fmt.Fprintf(&b, "    - %s (%s)%s\n", c.Name, c.DataType, flagStr)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// ClearCache drops the cached ontology for connectionID, or every cached
// ontology when connectionID is empty.
func (g *Generator) ClearCache(connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if connectionID == "" {
		g.cache = make(map[string]Generated)
		return
	}
	delete(g.cache, connectionID)
}
