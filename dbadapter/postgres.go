package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"sqlnexus/core/model"
)

// postgresAdapter implements Adapter for PostgreSQL via lib/pq, the driver
// the example pack's xataio-pgroll already depends on.
type postgresAdapter struct {
	*sqlBase
	params model.ConnectionParams
}

func newPostgresAdapter(p model.ConnectionParams) (Adapter, error) {
	if p.Port == 0 {
		p.Port = 5432
	}
	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s sslmode=disable",
		p.Host, p.Port, p.Database, p.Username, p.Password)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbadapter: open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &postgresAdapter{sqlBase: newSQLBase(db, model.Postgres, p.Database), params: p}, nil
}

func (a *postgresAdapter) TestConnection(ctx context.Context) (bool, string, *ConnectionInfo, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err.Error(), nil, err
	}
	var version, user, dbName string
	row := a.db.QueryRowContext(ctx, "SELECT version(), current_user, current_database()")
	if err := row.Scan(&version, &user, &dbName); err != nil {
		return false, err.Error(), nil, err
	}
	return true, "connected", &ConnectionInfo{Database: dbName, User: user, Version: version, DatabaseType: model.Postgres}, nil
}

func (a *postgresAdapter) ListSchemas(ctx context.Context) ([]SchemaSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT n.nspname AS schema_name,
		       COUNT(*) FILTER (WHERE c.relkind = 'r') AS table_count,
		       COUNT(*) FILTER (WHERE c.relkind = 'v') AS view_count
		FROM pg_namespace n
		LEFT JOIN pg_class c ON c.relnamespace = n.oid
		WHERE n.nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND n.nspname NOT LIKE 'pg_temp_%'
		GROUP BY n.nspname
		ORDER BY n.nspname`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SchemaSummary
	for rows.Next() {
		var s SchemaSummary
		if err := rows.Scan(&s.SchemaName, &s.TableCount, &s.ViewCount); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *postgresAdapter) listTables(ctx context.Context, schema string) ([]tableRef, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var refs []tableRef
	for rows.Next() {
		var t tableRef
		if err := rows.Scan(&t.schema, &t.table); err != nil {
			return nil, err
		}
		refs = append(refs, t)
	}
	return refs, rows.Err()
}

func (a *postgresAdapter) describeColumns(ctx context.Context, t tableRef) ([]model.ColumnDescriptor, []model.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT c.column_name, c.data_type, c.is_nullable, c.column_default,
		       EXISTS (
		         SELECT 1 FROM information_schema.key_column_usage kcu
		         JOIN information_schema.table_constraints tc
		           ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		         WHERE tc.constraint_type = 'PRIMARY KEY'
		           AND kcu.table_schema = c.table_schema AND kcu.table_name = c.table_name
		           AND kcu.column_name = c.column_name
		       ) AS is_pk
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position`, t.schema, t.table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []model.ColumnDescriptor
	for rows.Next() {
		var c model.ColumnDescriptor
		var nullable string
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &def, &c.PrimaryKey); err != nil {
			return nil, nil, err
		}
		c.Nullable = nullable == "YES"
		if def.Valid {
			c.Default = &def.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	fks, err := a.describeForeignKeys(ctx, t)
	if err != nil {
		return nil, nil, err
	}
	return cols, fks, nil
}

func (a *postgresAdapter) describeForeignKeys(ctx context.Context, t tableRef) ([]model.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT kcu.column_name, ccu.table_schema || '.' || ccu.table_name, ccu.column_name, rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu ON tc.constraint_name = kcu.constraint_name
		JOIN information_schema.constraint_column_usage ccu ON tc.constraint_name = ccu.constraint_name
		JOIN information_schema.referential_constraints rc ON tc.constraint_name = rc.constraint_name
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2`,
		t.schema, t.table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []model.ForeignKey
	for rows.Next() {
		var fk model.ForeignKey
		var onDelete string
		if err := rows.Scan(&fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn, &onDelete); err != nil {
			return nil, err
		}
		if onDelete != "" {
			fk.OnDelete = &onDelete
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

func (a *postgresAdapter) SchemaSnapshot(ctx context.Context, schema string) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedSchema(schema); ok {
		return cached, nil
	}
	tables, err := a.listTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	snap, err := buildSnapshotFromTables(ctx, a.dbName, model.Postgres, tables, a.describeColumns)
	if err != nil {
		return nil, err
	}
	a.storeSchema(schema, snap)
	return snap, nil
}

func (a *postgresAdapter) DatabaseSnapshot(ctx context.Context) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedDatabase(); ok {
		return cached, nil
	}
	schemas, err := a.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	full := &model.SchemaSnapshot{DatabaseName: a.dbName, DatabaseType: model.Postgres}
	for _, s := range schemas {
		snap, err := a.SchemaSnapshot(ctx, s.SchemaName)
		if err != nil {
			return nil, err
		}
		full.Tables = append(full.Tables, snap.Tables...)
	}
	full.Normalize()
	a.storeDatabase(full)
	return full, nil
}

func (a *postgresAdapter) TableInfo(ctx context.Context, schema, table string) (*model.TableDescriptor, error) {
	cols, fks, err := a.describeColumns(ctx, tableRef{schema: schema, table: table})
	if err != nil {
		return nil, err
	}
	return &model.TableDescriptor{SchemaName: schema, TableName: table, FullName: schema + "." + table, Columns: cols, ForeignKeys: fks}, nil
}
