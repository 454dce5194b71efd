// Package dbadapter implements the DatabaseAdapter capability: a single
// behavior interface polymorphic over four dialects (postgresql, mysql,
// oracle, sqlite), in a tagged-variant switch style rather than by
// inheritance (see DESIGN.md on dialect polymorphism).
package dbadapter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"sqlnexus/core/model"
)

// ConnectionInfo is returned by TestConnection on success.
type ConnectionInfo struct {
	Database     string
	User         string
	Version      string
	DatabaseType model.DatabaseType
}

// SchemaSummary is one entry of ListSchemas.
type SchemaSummary struct {
	SchemaName string
	TableCount int
	ViewCount  int
}

// Adapter is the capability every dialect variant implements.
type Adapter interface {
	DatabaseType() model.DatabaseType

	TestConnection(ctx context.Context) (ok bool, message string, info *ConnectionInfo, err error)
	ListSchemas(ctx context.Context) ([]SchemaSummary, error)
	SchemaSnapshot(ctx context.Context, schema string) (*model.SchemaSnapshot, error)
	DatabaseSnapshot(ctx context.Context) (*model.SchemaSnapshot, error)
	TableInfo(ctx context.Context, schema, table string) (*model.TableDescriptor, error)
	Execute(ctx context.Context, sql string) (rows []map[string]interface{}, columns []string, elapsed float64, err error)

	Close() error
}

// systemSchemas lists schemas every adapter's ListSchemas must exclude for
// the dialects where the database itself exposes internal catalogs.
var systemSchemas = map[model.DatabaseType]map[string]bool{
	model.Postgres: {"pg_catalog": true, "information_schema": true, "pg_toast": true},
	model.MySQL:    {"information_schema": true, "mysql": true, "performance_schema": true, "sys": true},
}

func isSystemSchema(dialect model.DatabaseType, name string) bool {
	return systemSchemas[dialect][strings.ToLower(name)]
}

// Serialize normalizes one adapter-returned scalar into a JSON-encodable
// value, uniformly across every dialect: timestamps/dates become ISO-8601
// strings, arbitrary-precision decimals become float64, byte sequences
// become lossily-decoded UTF-8 strings, nil stays nil, and every other
// scalar passes through unchanged.
//
// Serialize is idempotent: re-serializing an already-serialized value
// returns it unchanged.
func Serialize(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case []byte:
		return string(val)
	case fmt.Stringer:
		// Arbitrary-precision decimal types from drivers typically satisfy
		// Stringer; attempt a float parse, otherwise fall back to the string.
		s := val.String()
		if f, ok := parseFloatLoose(s); ok {
			return f
		}
		return s
	default:
		return val
	}
}

func parseFloatLoose(s string) (float64, bool) {
	var f float64
	var usedChars int
	n, err := fmt.Sscanf(s, "%g%n", &f, &usedChars)
	if err != nil || n < 1 || usedChars != len(s) {
		return 0, false
	}
	return f, true
}

// SerializeRow applies Serialize to every value of a result row.
func SerializeRow(row map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(row))
	for k, v := range row {
		out[k] = Serialize(v)
	}
	return out
}

// UnsupportedDialectError reports a dialect alias the factory could not
// resolve.
type UnsupportedDialectError struct {
	Dialect string
}

func (e *UnsupportedDialectError) Error() string {
	return fmt.Sprintf("dbadapter: unsupported dialect %q", e.Dialect)
}

// ResolveDialect maps a user-supplied dialect alias to a canonical
// model.DatabaseType: postgres/pg → postgresql; mariadb → mysql;
// sqlite3 → sqlite.
func ResolveDialect(alias string) (model.DatabaseType, error) {
	switch strings.ToLower(strings.TrimSpace(alias)) {
	case "postgresql", "postgres", "pg":
		return model.Postgres, nil
	case "mysql", "mariadb":
		return model.MySQL, nil
	case "oracle":
		return model.Oracle, nil
	case "sqlite", "sqlite3":
		return model.SQLite, nil
	default:
		return "", &UnsupportedDialectError{Dialect: alias}
	}
}

// New is the factory: it resolves dialect aliases and returns the
// corresponding tagged adapter variant, each opening its own
// database/sql-backed pooled handle.
func New(params model.ConnectionParams) (Adapter, error) {
	dialect, err := ResolveDialect(string(params.Dialect))
	if err != nil {
		return nil, err
	}
	params.Dialect = dialect

	switch dialect {
	case model.Postgres:
		return newPostgresAdapter(params)
	case model.MySQL:
		return newMySQLAdapter(params)
	case model.Oracle:
		return newOracleAdapter(params)
	case model.SQLite:
		return newSQLiteAdapter(params)
	default:
		return nil, &UnsupportedDialectError{Dialect: string(params.Dialect)}
	}
}
