package dbadapter

import (
	"context"
	"database/sql"
	"fmt"

	go_ora "github.com/sijms/go-ora/v2"

	"sqlnexus/core/model"
)

// oracleAdapter implements Adapter for Oracle via the pure-Go sijms/go-ora
// driver (no cgo, matching the module's avoidance of cgo-only drivers
// elsewhere). ListSchemas returns only the connected user's own schema —
// the resolution of Open Question 2 (see DESIGN.md): the "old method" that
// listed every schema via DBA_USERS is not reinstated.
type oracleAdapter struct {
	*sqlBase
	params model.ConnectionParams
	user   string
}

func newOracleAdapter(p model.ConnectionParams) (Adapter, error) {
	if p.Port == 0 {
		p.Port = 1521
	}
	service := p.ServiceName
	if service == "" && p.SID == "" {
		service = "XEPDB1"
	}

	urlOptions := map[string]string{}
	var dsn string
	if p.SID != "" {
		dsn = go_ora.BuildUrl(p.Host, p.Port, p.SID, p.Username, p.Password, urlOptions)
	} else {
		dsn = go_ora.BuildUrl(p.Host, p.Port, service, p.Username, p.Password, urlOptions)
	}

	db, err := sql.Open("oracle", dsn)
	if err != nil {
		return nil, fmt.Errorf("dbadapter: open oracle: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)

	return &oracleAdapter{sqlBase: newSQLBase(db, model.Oracle, p.Database), params: p, user: p.Username}, nil
}

func (a *oracleAdapter) TestConnection(ctx context.Context) (bool, string, *ConnectionInfo, error) {
	if err := a.db.PingContext(ctx); err != nil {
		return false, err.Error(), nil, err
	}
	var version, user, dbName string
	row := a.db.QueryRowContext(ctx, "SELECT banner, USER, sys_context('USERENV','DB_NAME') FROM v$version WHERE ROWNUM <= 1")
	if err := row.Scan(&version, &user, &dbName); err != nil {
		// v$version may be unreadable for some accounts; degrade gracefully.
		row = a.db.QueryRowContext(ctx, "SELECT USER, sys_context('USERENV','DB_NAME') FROM dual")
		if err2 := row.Scan(&user, &dbName); err2 != nil {
			return false, err.Error(), nil, err
		}
		version = "unknown"
	}
	return true, "connected", &ConnectionInfo{Database: dbName, User: user, Version: version, DatabaseType: model.Oracle}, nil
}

// ListSchemas returns a single synthetic entry for the connected user's own
// schema, per the Open Question 2 resolution.
func (a *oracleAdapter) ListSchemas(ctx context.Context) ([]SchemaSummary, error) {
	var tableCount, viewCount int
	row := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_tables")
	if err := row.Scan(&tableCount); err != nil {
		return nil, err
	}
	row = a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM user_views")
	if err := row.Scan(&viewCount); err != nil {
		viewCount = 0
	}
	return []SchemaSummary{{SchemaName: a.user, TableCount: tableCount, ViewCount: viewCount}}, nil
}

func (a *oracleAdapter) listTables(ctx context.Context) ([]tableRef, error) {
	rows, err := a.db.QueryContext(ctx, "SELECT table_name FROM user_tables ORDER BY table_name")
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
		refs = append(refs, tableRef{schema: a.user, table: name})
	}
	return refs, rows.Err()
}

func (a *oracleAdapter) describeColumns(ctx context.Context, t tableRef) ([]model.ColumnDescriptor, []model.ForeignKey, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT utc.column_name, utc.data_type, utc.nullable,
		       utc.data_default,
		       (SELECT COUNT(*) FROM user_cons_columns ucc
		          JOIN user_constraints uc ON uc.constraint_name = ucc.constraint_name
		          WHERE uc.constraint_type = 'P' AND ucc.table_name = utc.table_name
		            AND ucc.column_name = utc.column_name) AS is_pk
		FROM user_tab_columns utc
		WHERE utc.table_name = :1
		ORDER BY utc.column_id`, t.table)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var cols []model.ColumnDescriptor
	for rows.Next() {
		var c model.ColumnDescriptor
		var nullable string
		var def sql.NullString
		var pkCount int
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &def, &pkCount); err != nil {
			return nil, nil, err
		}
		c.Nullable = nullable == "Y"
		c.PrimaryKey = pkCount > 0
		if def.Valid {
			c.Default = &def.String
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	fkRows, err := a.db.QueryContext(ctx, `
		SELECT ucc.column_name, r_ucc.table_name, r_ucc.column_name
		FROM user_constraints uc
		JOIN user_cons_columns ucc ON ucc.constraint_name = uc.constraint_name
		JOIN user_constraints r_uc ON r_uc.constraint_name = uc.r_constraint_name
		JOIN user_cons_columns r_ucc ON r_ucc.constraint_name = r_uc.constraint_name
		WHERE uc.constraint_type = 'R' AND uc.table_name = :1`, t.table)
	if err != nil {
		return nil, nil, err
	}
	defer fkRows.Close()

	var fks []model.ForeignKey
	for fkRows.Next() {
		var fk model.ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn); err != nil {
			return nil, nil, err
		}
		fks = append(fks, fk)
	}
	return cols, fks, fkRows.Err()
}

func (a *oracleAdapter) SchemaSnapshot(ctx context.Context, schema string) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedSchema(schema); ok {
		return cached, nil
	}
	tables, err := a.listTables(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := buildSnapshotFromTables(ctx, a.dbName, model.Oracle, tables, a.describeColumns)
	if err != nil {
		return nil, err
	}
	a.storeSchema(schema, snap)
	return snap, nil
}

// DatabaseSnapshot equals SchemaSnapshot(current_user) for Oracle.
func (a *oracleAdapter) DatabaseSnapshot(ctx context.Context) (*model.SchemaSnapshot, error) {
	if cached, ok := a.cachedDatabase(); ok {
		return cached, nil
	}
	snap, err := a.SchemaSnapshot(ctx, a.user)
	if err != nil {
		return nil, err
	}
	a.storeDatabase(snap)
	return snap, nil
}

func (a *oracleAdapter) TableInfo(ctx context.Context, schema, table string) (*model.TableDescriptor, error) {
	cols, fks, err := a.describeColumns(ctx, tableRef{schema: a.user, table: table})
	if err != nil {
		return nil, err
	}
	return &model.TableDescriptor{SchemaName: a.user, TableName: table, FullName: a.user + "." + table, Columns: cols, ForeignKeys: fks}, nil
}
