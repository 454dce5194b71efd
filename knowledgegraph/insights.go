package knowledgegraph

import (
	"context"
	"strings"

	"sqlnexus/core/model"
)

// DetectMentionedTables returns every table whose name appears as a
// substring of the lowercased query, the Go rendering of the
// get_graph_insights table-name scan in knowledge_graph.py.
func DetectMentionedTables(query string, snap *model.SchemaSnapshot) []string {
	if snap == nil {
		return nil
	}
	if len(snap.TablesByName) == 0 {
		snap.Normalize()
	}
	lower := strings.ToLower(query)
	var mentioned []string
	for _, t := range snap.Tables {
		if strings.Contains(lower, strings.ToLower(t.TableName)) {
			mentioned = append(mentioned, t.TableName)
		}
	}
	return mentioned
}

// GetGraphInsights is the package's high-level entry point: it detects which
// tables the query mentions, asks the client for their relationships and
// join paths, and returns the merged Insights. When no table is mentioned
// directly, it returns an Insights with only Enabled set; no
// ontology-suggested tables are substituted.
func GetGraphInsights(ctx context.Context, c Client, query string, snap *model.SchemaSnapshot) (Insights, error) {
	mentioned := DetectMentionedTables(query, snap)
	if len(mentioned) == 0 {
		return Insights{Enabled: true}, nil
	}
	return RelatedTablesForQuery(ctx, c, mentioned)
}

// ScoreGraphInsights turns the relationship distances discovered for table
// into relevance-scored GraphInsight bindings over that table's columns.
// The score depends only on graph distance (closer tables score higher), so
// every column of one related table gets the same score. Each binding
// carries connectionID; Concept and Property are left empty.
func ScoreGraphInsights(connectionID string, rel RelatedTables, snap *model.SchemaSnapshot) []model.GraphInsight {
	if snap == nil {
		return nil
	}
	if len(snap.TablesByName) == 0 {
		snap.Normalize()
	}

	var out []model.GraphInsight
	for _, r := range rel.Relationships {
		table, ok := snap.Table(tableFullName(snap, r.Target))
		if !ok {
			continue
		}
		score := relevanceForDistance(r.Distance)
		for _, col := range table.Columns {
			out = append(out, model.GraphInsight{
				ConnectionID:   connectionID,
				Table:          r.Target,
				Column:         col.Name,
				RelevanceScore: score,
			})
		}
	}
	return out
}

func tableFullName(snap *model.SchemaSnapshot, tableName string) string {
	for _, t := range snap.Tables {
		if t.TableName == tableName {
			return t.FullName
		}
	}
	return tableName
}

// relevanceForDistance decays linearly: directly related tables (distance 1)
// score 0.9, two hops away score 0.6, anything further scores 0.3.
func relevanceForDistance(distance int) float64 {
	switch {
	case distance <= 1:
		return 0.9
	case distance == 2:
		return 0.6
	default:
		return 0.3
	}
}
