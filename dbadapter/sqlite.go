package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"sqlnexus/core/model"
)

// sqliteAdapter implements Adapter for SQLite via modernc.org/sqlite (a
// pure-Go driver, no cgo). ListSchemas returns the synthetic "main" schema.
type sqliteAdapter struct {
	*sqlBase
	params model.ConnectionParams
}

func newSQLiteAdapter(p model.ConnectionParams) (Adapter, error) {
	path := p.FilePath
	if path == "" {
		path = p.Database
	}
	if path == "" {
		path = ":memory:"
	}
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbadapter: open sqlite: %w", err)
	}
	// A single-connection handle avoids SQLite's file-lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &sqliteAdapter{sqlBase: newSQLBase(db, model.SQLite, path), params: p}, nil
}

func (a *sqliteAdapter) TestConnection(ctx context.Context) (bool, string, *ConnectionInfo, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err.Error(), nil, err
	}
	var version string
	if err := a.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		return false, err.Error(), nil, err
	}
	return true, "connected", &ConnectionInfo{Database: a.dbName, User: "", Version: version, DatabaseType: model.SQLite}, nil
}

func (a *sqliteAdapter) ListSchemas(ctx context.Context) ([]SchemaSummary, error) {
	var tableCount, viewCount int
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tableCount); err != nil {
		return nil, err
	}
	if err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type='view'").Scan(&viewCount); err != nil {
		return nil, err
	}
	return []SchemaSummary{{SchemaName: "main", TableCount: tableCount, ViewCount: viewCount}}, nil
}

func (a *sqliteAdapter) listTables(ctx context.Context) ([]tableRef, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []tableRef
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		refs = append(refs, tableRef{schema: "main", table: name})
	}
	return refs, rows.Err()
}

func (a *sqliteAdapter) describeColumns(ctx context.Context, t tableRef) ([]model.ColumnDescriptor, []model.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentSQLite(t.table)))
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []model.ColumnDescriptor
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, nil, err
		}
		c := model.ColumnDescriptor{Name: name, DataType: ctype, Nullable: notnull == 0, PrimaryKey: pk > 0}
		if dflt.Valid {
			c.Default = &dflt.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	fkRows, err := a.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentSQLite(t.table)))
	if err != nil {
		return nil, nil, err
	}
	defer fkRows.Close()

	var fks []model.ForeignKey
	for fkRows.Next() {
		var id, seq int
		var refTable, from, to string
		var onUpdate, onDelete, match string
		if err := fkRows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, nil, err
		}
		fk := model.ForeignKey{Column: from, ReferencesTable: "main." + refTable, ReferencesColumn: to}
		if onDelete != "" {
			fk.OnDelete = &onDelete
		}
		fks = append(fks, fk)
	}
	return cols, fks, fkRows.Err()
}

func quoteIdentSQLite(name string) string {
	return `"` + name + `"`
}

func (a *sqliteAdapter) SchemaSnapshot(ctx context.Context, schema string) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedSchema(schema); ok {
		return cached, nil
	}
	tables, err := a.listTables(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := buildSnapshotFromTables(ctx, a.dbName, model.SQLite, tables, a.describeColumns)
	if err != nil {
		return nil, err
	}
	a.storeSchema(schema, snap)
	return snap, nil
}

// DatabaseSnapshot equals SchemaSnapshot("main") for SQLite.
func (a *sqliteAdapter) DatabaseSnapshot(ctx context.Context) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedDatabase(); ok {
		return cached, nil
	}
	snap, err := a.SchemaSnapshot(ctx, "main")
	if err != nil {
		return nil, err
	}
	a.storeDatabase(snap)
	return snap, nil
}

func (a *sqliteAdapter) TableInfo(ctx context.Context, schema, table string) (*model.TableDescriptor, error) {
	cols, fks, err := a.describeColumns(ctx, tableRef{schema: "main", table: table})
	if err != nil {
		return nil, err
	}
	return &model.TableDescriptor{SchemaName: "main", TableName: table, FullName: "main." + table, Columns: cols, ForeignKeys: fks}, nil
}
