package dbadapter

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"sqlnexus/core/model"
)

const schemaCacheTTL = time.Hour

type snapshotCacheEntry struct {
	snapshot *model.SchemaSnapshot
	cachedAt time.Time
}

// sqlBase is the shared database/sql plumbing every dialect adapter embeds:
// pooled handle, per-schema snapshot cache with a 1-hour TTL, and a
// single-writer mutex guarding the cache maps. This splits connection
// mechanics (here) from dialect-specific SQL text (in the per-dialect adapter
// files).
type sqlBase struct {
	db      *sql.DB
	dialect model.DatabaseType
	dbName  string

	mu           sync.Mutex
	schemaCache  map[string]snapshotCacheEntry
	dbCache      *snapshotCacheEntry
}

func newSQLBase(db *sql.DB, dialect model.DatabaseType, dbName string) *sqlBase {
	return &sqlBase{
		db:          db,
		dialect:     dialect,
		dbName:      dbName,
		schemaCache: make(map[string]snapshotCacheEntry),
	}
}

func (b *sqlBase) DatabaseType() model.DatabaseType { return b.dialect }

func (b *sqlBase) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *sqlBase) cachedSchema(schema string) (*model.SchemaSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	entry, ok := b.schemaCache[schema]
	if !ok || time.Since(entry.cachedAt) > schemaCacheTTL {
		return nil, false
	}
	return entry.snapshot, true
}

func (b *sqlBase) storeSchema(schema string, snap *model.SchemaSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.schemaCache[schema] = snapshotCacheEntry{snapshot: snap, cachedAt: time.Now()}
}

func (b *sqlBase) cachedDatabase() (*model.SchemaSnapshot, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dbCache == nil || time.Since(b.dbCache.cachedAt) > schemaCacheTTL {
		return nil, false
	}
	return b.dbCache.snapshot, true
}

func (b *sqlBase) storeDatabase(snap *model.SchemaSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.dbCache = &snapshotCacheEntry{snapshot: snap, cachedAt: time.Now()}
}

// Execute runs sql and, for SELECT/WITH statements, scans every row into an
// ordered-by-columns map with Serialize applied to each value. Non-SELECT
// statements auto-commit and return an empty row set.
func (b *sqlBase) Execute(ctx context.Context, query string) ([]map[string]interface{}, []string, float64, error) {
	start := time.Now()
	trimmed := strings.TrimSpace(query)
	isQuery := hasPrefixFold(trimmed, "SELECT") || hasPrefixFold(trimmed, "WITH")

	if !isQuery {
		_, err := b.db.ExecContext(ctx, query)
		elapsed := time.Since(start).Seconds()
		if err != nil {
			return nil, nil, elapsed, err
		}
		return []map[string]interface{}{}, []string{}, elapsed, nil
	}

	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, nil, time.Since(start).Seconds(), err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, time.Since(start).Seconds(), err
	}

	results := make([]map[string]interface{}, 0)
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, time.Since(start).Seconds(), err
		}
		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = Serialize(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, time.Since(start).Seconds(), err
	}

	return results, columns, time.Since(start).Seconds(), nil
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}

// buildSnapshotFromTables assembles a SchemaSnapshot from a flat list of
// (schema, table) pairs plus a per-table column fetcher, normalizing on
// construction per the schema-normalization duality design note.
func buildSnapshotFromTables(
	ctx context.Context,
	dbName string,
	dialect model.DatabaseType,
	tables []tableRef,
	columnsOf func(ctx context.Context, t tableRef) ([]model.ColumnDescriptor, []model.ForeignKey, error),
) (*model.SchemaSnapshot, error) {
	snap := &model.SchemaSnapshot{
		DatabaseName: dbName,
		DatabaseType: dialect,
		CapturedAt:   time.Now().UTC(),
	}
	for _, t := range tables {
		cols, fks, err := columnsOf(ctx, t)
		if err != nil {
			return nil, fmt.Errorf("dbadapter: describe %s: %w", t.full(), err)
		}
		snap.Tables = append(snap.Tables, model.TableDescriptor{
			SchemaName:  t.schema,
			TableName:   t.table,
			FullName:    t.full(),
			Columns:     cols,
			ForeignKeys: fks,
		})
	}
	snap.Normalize()
	return snap, nil
}

type tableRef struct {
	schema string
	table  string
}

func (t tableRef) full() string {
	if t.schema == "" {
		return t.table
	}
	return t.schema + "." + t.table
}
