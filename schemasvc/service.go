// Package schemasvc implements SchemaService: snapshot retrieval (always
// through a pooled adapter handle — see DESIGN.md), list/map normalization
// equivalence, and relevance scoring of tables against a question. The
// scoring heuristic is translated from "which data source table" to "which
// SchemaSnapshot table", and the normalization tests exercise both the
// list and dict schema shapes through the same code path.
package schemasvc

import (
	"context"
	"sort"
	"strings"

	coreerrors "sqlnexus/core/errors"
	"sqlnexus/core/model"
	"sqlnexus/pool"
)

// Service resolves SchemaSnapshot values for a pooled connection and scores
// tables for relevance to a natural-language question.
type Service struct {
	pools *pool.PoolManager
}

// New creates a Service backed by the given PoolManager. Every snapshot
// operation borrows a handle from pools and releases it before returning —
// there is no non-pooled code path (Open Question 1).
func New(pools *pool.PoolManager) *Service {
	return &Service{pools: pools}
}

// Snapshot returns the SchemaSnapshot for one schema/database of params,
// normalized. An empty schema name requests the whole-database snapshot.
func (s *Service) Snapshot(ctx context.Context, params model.ConnectionParams, schema string) (*model.SchemaSnapshot, error) {
	handle, err := s.pools.Acquire(ctx, params)
	if err != nil {
		return nil, coreerrors.WrapKind("SchemaService", "Snapshot", coreerrors.AdapterUnavailable, err)
	}
	defer s.pools.Release(params, handle)

	var snap *model.SchemaSnapshot
	if schema == "" {
		snap, err = handle.DatabaseSnapshot(ctx)
	} else {
		snap, err = handle.SchemaSnapshot(ctx, schema)
	}
	if err != nil {
		return nil, coreerrors.WrapKind("SchemaService", "Snapshot", coreerrors.ExecutionError, err)
	}
	snap.Normalize()
	return snap, nil
}

// NormalizeList builds a SchemaSnapshot from its transport-edge list form.
func NormalizeList(dbName string, dbType model.DatabaseType, tables []model.TableDescriptor) *model.SchemaSnapshot {
	snap := &model.SchemaSnapshot{DatabaseName: dbName, DatabaseType: dbType, Tables: tables}
	snap.Normalize()
	return snap
}

// NormalizeMap builds a SchemaSnapshot from its canonical map form. This
// must produce the same TablesByName as NormalizeList given the same set
// of tables, regardless of map iteration order — true here because both
// converge on the same map keyed by FullName.
func NormalizeMap(dbName string, dbType model.DatabaseType, tablesByName map[string]model.TableDescriptor) *model.SchemaSnapshot {
	tables := make([]model.TableDescriptor, 0, len(tablesByName))
	for _, t := range tablesByName {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].FullName < tables[j].FullName })
	return NormalizeList(dbName, dbType, tables)
}

// tableScore pairs a table's full name with its relevance score.
type tableScore struct {
	fullName string
	score    int
}

// RelevantTables scores every table in snap against question and returns up
// to maxTables full names ordered by descending score, ties broken by
// original appearance order: a direct substring mention of the table name
// scores highest, individual word overlap scores less, and a match against
// either the table's own column names adds a small bonus.
func (s *Service) RelevantTables(snap *model.SchemaSnapshot, question string, maxTables int) []string {
	names := snap.TableNames()
	if maxTables <= 0 || len(names) <= maxTables {
		return names
	}

	questionLower := strings.ToLower(question)
	words := strings.Fields(questionLower)

	scores := make([]tableScore, 0, len(names))
	for _, full := range names {
		table, _ := snap.Table(full)
		scores = append(scores, tableScore{fullName: full, score: scoreTable(table, questionLower, words)})
	}

	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]string, 0, maxTables)
	for i := 0; i < len(scores) && i < maxTables; i++ {
		out = append(out, scores[i].fullName)
	}
	return out
}

func scoreTable(table model.TableDescriptor, questionLower string, words []string) int {
	score := 0
	nameLower := strings.ToLower(table.TableName)

	if strings.Contains(questionLower, nameLower) {
		score += 100
	}
	for _, w := range words {
		if len(w) > 2 && strings.Contains(nameLower, w) {
			score += 20
		}
	}
	for _, col := range table.Columns {
		colLower := strings.ToLower(col.Name)
		for _, w := range words {
			if len(w) > 2 && strings.Contains(colLower, w) {
				score += 5
				break
			}
		}
	}
	return score
}
