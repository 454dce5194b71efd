package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"sqlnexus/core/model"
)

// mysqlAdapter implements Adapter for MySQL/MariaDB via go-sql-driver/mysql.
type mysqlAdapter struct {
	*sqlBase
	params model.ConnectionParams
}

func newMySQLAdapter(p model.ConnectionParams) (Adapter, error) {
	if p.Port == 0 {
		p.Port = 3306
	}
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", p.Username, p.Password, p.Host, p.Port, p.Database)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbadapter: open mysql: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &mysqlAdapter{sqlBase: newSQLBase(db, model.MySQL, p.Database), params: p}, nil
}

func (a *mysqlAdapter) TestConnection(ctx context.Context) (bool, string, *ConnectionInfo, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err.Error(), nil, err
	}
	var version, user, dbName string
	row := a.db.QueryRowContext(ctx, "SELECT VERSION(), CURRENT_USER(), DATABASE()")
	if err := row.Scan(&version, &user, &dbName); err != nil {
		return false, err.Error(), nil, err
	}
	return true, "connected", &ConnectionInfo{Database: dbName, User: user, Version: version, DatabaseType: model.MySQL}, nil
}

func (a *mysqlAdapter) ListSchemas(ctx context.Context) ([]SchemaSummary, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_schema,
		       SUM(table_type = 'BASE TABLE') AS table_count,
		       SUM(table_type = 'VIEW') AS view_count
		FROM information_schema.tables
		GROUP BY table_schema
		ORDER BY table_schema`)
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
		if isSystemSchema(model.MySQL, s.SchemaName) {
			continue
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (a *mysqlAdapter) listTables(ctx context.Context, schema string) ([]tableRef, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT table_schema, table_name FROM information_schema.tables
		WHERE table_schema = ? AND table_type = 'BASE TABLE'
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

func (a *mysqlAdapter) describeColumns(ctx context.Context, t tableRef) ([]model.ColumnDescriptor, []model.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable, column_default, column_key = 'PRI'
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position`, t.schema, t.table)
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

	fkRows, err := a.db.QueryContext(ctx, `
		SELECT column_name, referenced_table_schema, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ? AND table_name = ? AND referenced_table_name IS NOT NULL`, t.schema, t.table)
	if err != nil {
		return nil, nil, err
	}
	defer fkRows.Close()

	var fks []model.ForeignKey
	for fkRows.Next() {
		var fk model.ForeignKey
		var refSchema, refTable string
		if err := fkRows.Scan(&fk.Column, &refSchema, &refTable, &fk.ReferencesColumn); err != nil {
			return nil, nil, err
		}
		fk.ReferencesTable = refSchema + "." + refTable
		fks = append(fks, fk)
	}
	return cols, fks, fkRows.Err()
}

func (a *mysqlAdapter) SchemaSnapshot(ctx context.Context, schema string) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedSchema(schema); ok {
		return cached, nil
	}
	tables, err := a.listTables(ctx, schema)
	if err != nil {
		return nil, err
	}
	snap, err := buildSnapshotFromTables(ctx, a.dbName, model.MySQL, tables, a.describeColumns)
	if err != nil {
		return nil, err
	}
	a.storeSchema(schema, snap)
	return snap, nil
}

func (a *mysqlAdapter) DatabaseSnapshot(ctx context.Context) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedDatabase(); ok {
		return cached, nil
	}
	schemas, err := a.ListSchemas(ctx)
	if err != nil {
		return nil, err
	}
	full := &model.SchemaSnapshot{DatabaseName: a.dbName, DatabaseType: model.MySQL}
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

func (a *mysqlAdapter) TableInfo(ctx context.Context, schema, table string) (*model.TableDescriptor, error) {
	cols, fks, err := a.describeColumns(ctx, tableRef{schema: schema, table: table})
	if err != nil {
		return nil, err
	}
	return &model.TableDescriptor{SchemaName: schema, TableName: table, FullName: schema + "." + table, Columns: cols, ForeignKeys: fks}, nil
}
