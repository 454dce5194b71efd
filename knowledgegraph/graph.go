// Package knowledgegraph builds a graph representation of a database schema
// (tables as nodes, foreign keys as edges) and answers relationship/join-path
// queries against it, falling back to an in-process directed graph when no
// Neo4j backend is configured. localGraph is a Go rendering of that
// in-process fallback (a networkx.DiGraph equivalent), and Client is the
// interface a real github.com/neo4j/neo4j-go-driver/v5-backed
// implementation satisfies for the primary (non-fallback) path.
package knowledgegraph

import (
	"context"
	"sort"
	"strings"

	"sqlnexus/core/model"
)

// Relationship is one discovered path between two tables.
type Relationship struct {
	Source   string
	Target   string
	Distance int
}

// RelatedTables is the result of a table-relationship query.
type RelatedTables struct {
	Table         string
	RelatedTables []string
	Relationships []Relationship
}

// Join is a suggested join path between two mentioned tables.
type Join struct {
	From string
	To   string
	Path []string
}

// Insights is the merged result get_graph_insights returns: related tables,
// suggested joins, and free-text recommendations for the prompt.
type Insights struct {
	Enabled         bool
	RelatedTables   []string
	SuggestedJoins  []Join
	Recommendations []string
}

// Client is the graph-backend contract: one real implementation talks to
// Neo4j, one is the in-process fallback. Both satisfy this same surface, so
// SemanticHintsProvider's graph stream never needs to know which is active.
type Client interface {
	BuildFromSchema(ctx context.Context, snap *model.SchemaSnapshot) error
	TableRelationships(ctx context.Context, table string, maxDepth int) (RelatedTables, error)
	FindJoinPath(ctx context.Context, table1, table2 string) ([]string, error)
	Close() error
}

// LocalGraph is an in-process directed graph of tables, built from foreign
// keys, used when no Neo4j connection is configured — the Go rendering of
// _build_local_graph/_get_local_table_relationships/_find_local_join_path.
// Go has no off-the-shelf graph library in the example pack analogous to
// Python's networkx, so this is deliberately a small stdlib
// maps/slices adjacency list: the spec itself frames this as a "fallback",
// not a concern with an obvious ecosystem library.
type LocalGraph struct {
	nodes map[string]bool
	edges map[string][]string // table -> referenced tables (directed)
}

// NewLocalGraph returns an empty graph.
func NewLocalGraph() *LocalGraph {
	return &LocalGraph{nodes: make(map[string]bool), edges: make(map[string][]string)}
}

// BuildFromSchema repopulates the graph from snap's tables and foreign keys.
func (g *LocalGraph) BuildFromSchema(ctx context.Context, snap *model.SchemaSnapshot) error {
	g.nodes = make(map[string]bool)
	g.edges = make(map[string][]string)
	if snap == nil {
		return nil
	}
	if len(snap.TablesByName) == 0 {
		snap.Normalize()
	}
	for _, t := range snap.TablesByName {
		g.nodes[t.TableName] = true
		for _, fk := range t.ForeignKeys {
			g.edges[t.TableName] = append(g.edges[t.TableName], fk.ReferencesTable)
			g.nodes[fk.ReferencesTable] = true
		}
	}
	return nil
}

// TableRelationships returns every table reachable from table within
// maxDepth hops, undirected (a foreign key's direction doesn't limit which
// side can discover the other for join purposes).
func (g *LocalGraph) TableRelationships(ctx context.Context, table string, maxDepth int) (RelatedTables, error) {
	if !g.nodes[table] {
		return RelatedTables{Table: table}, nil
	}

	dist := g.bfsDistances(table)
	var rels []Relationship
	var related []string
	names := make([]string, 0, len(dist))
	for name := range dist {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		d := dist[name]
		if name == table || d > maxDepth {
			continue
		}
		rels = append(rels, Relationship{Source: table, Target: name, Distance: d})
		related = append(related, name)
	}
	return RelatedTables{Table: table, RelatedTables: related, Relationships: rels}, nil
}

// FindJoinPath returns the shortest undirected path between table1 and
// table2, or nil if no path exists.
func (g *LocalGraph) FindJoinPath(ctx context.Context, table1, table2 string) ([]string, error) {
	if !g.nodes[table1] || !g.nodes[table2] {
		return nil, nil
	}
	if table1 == table2 {
		return []string{table1}, nil
	}

	prev := map[string]string{table1: ""}
	queue := []string{table1}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == table2 {
			break
		}
		for _, next := range g.undirectedNeighbors(cur) {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			queue = append(queue, next)
		}
	}
	if _, ok := prev[table2]; !ok {
		return nil, nil
	}

	var path []string
	for node := table2; node != ""; node = prev[node] {
		path = append([]string{node}, path...)
		if node == table1 {
			break
		}
	}
	return path, nil
}

// Close is a no-op for the in-process fallback.
func (g *LocalGraph) Close() error { return nil }

func (g *LocalGraph) undirectedNeighbors(table string) []string {
	var out []string
	out = append(out, g.edges[table]...)
	for src, targets := range g.edges {
		for _, t := range targets {
			if t == table {
				out = append(out, src)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (g *LocalGraph) bfsDistances(start string) map[string]int {
	dist := map[string]int{start: 0}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range g.undirectedNeighbors(cur) {
			if _, seen := dist[next]; seen {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
		}
	}
	return dist
}

// RelatedTablesForQuery unions the related tables and join paths for every
// mentioned table, the Go rendering of get_related_tables_for_query.
func RelatedTablesForQuery(ctx context.Context, c Client, mentionedTables []string) (Insights, error) {
	related := make(map[string]bool)
	for _, t := range mentionedTables {
		related[t] = true
	}

	for _, t := range mentionedTables {
		rel, err := c.TableRelationships(ctx, t, 2)
		if err != nil {
			return Insights{}, err
		}
		for _, r := range rel.RelatedTables {
			related[r] = true
		}
	}

	var joins []Join
	for i, t1 := range mentionedTables {
		for _, t2 := range mentionedTables[i+1:] {
			path, err := c.FindJoinPath(ctx, t1, t2)
			if err != nil {
				return Insights{}, err
			}
			if len(path) > 2 {
				joins = append(joins, Join{From: t1, To: t2, Path: path})
			}
		}
	}

	var extra []string
	for t := range related {
		if !contains(mentionedTables, t) {
			extra = append(extra, t)
		}
	}
	sort.Strings(extra)

	var recs []string
	if len(joins) > 0 {
		var via []string
		for _, j := range joins {
			if len(j.Path) > 2 {
				via = append(via, strings.Join(j.Path[1:len(j.Path)-1], ", "))
			}
		}
		if len(via) > 0 {
			recs = append(recs, "Consider using intermediate tables for joins: "+strings.Join(via, ", "))
		}
	}
	if len(extra) > 0 {
		limit := extra
		if len(limit) > 5 {
			limit = limit[:5]
		}
		recs = append(recs, "Related tables that might be relevant: "+strings.Join(limit, ", "))
	}

	return Insights{
		Enabled:         true,
		RelatedTables:   extra,
		SuggestedJoins:  joins,
		Recommendations: recs,
	}, nil
}

func contains(items []string, target string) bool {
	for _, i := range items {
		if i == target {
			return true
		}
	}
	return false
}

// Describe renders a join as the single-line form SuggestedJoins carries.
func (j Join) Describe() string {
	return j.From + " -> " + j.To + " via " + strings.Join(j.Path, " -> ")
}

// ToHints converts Insights plus a set of scored column suggestions into the
// model.Hints payload the graph stream of SemanticHintsProvider contributes.
func (ins Insights) ToHints(suggestedColumns map[string][]model.ColumnSuggestion) *model.Hints {
	var joinDescriptions []string
	for _, j := range ins.SuggestedJoins {
		joinDescriptions = append(joinDescriptions, j.Describe())
	}
	return &model.Hints{
		SuggestedColumns: suggestedColumns,
		SuggestedJoins:   joinDescriptions,
		RelatedTables:    ins.RelatedTables,
		Sources:          []string{"knowledge_graph"},
	}
}
