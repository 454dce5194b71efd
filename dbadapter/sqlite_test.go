package dbadapter

import (
	"context"
	"testing"

	"sqlnexus/core/model"
)

func newTestSQLiteAdapter(t *testing.T) Adapter {
	t.Helper()
	a, err := New(model.ConnectionParams{Dialect: model.SQLite, FilePath: ":memory:"})
	if err != nil {
		t.Fatalf("New(sqlite) error = %v", err)
	}
	t.Cleanup(func() { a.Close() })

	setup := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`INSERT INTO users (id, name) VALUES (1, 'alice'), (2, 'bob'), (3, 'carol')`,
	}
	ctx := context.Background()
	for _, stmt := range setup {
		if _, _, _, err := a.Execute(ctx, stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	return a
}

func TestSQLiteAdapter_ExecuteSelect(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	ctx := context.Background()

	rows, cols, elapsed, err := a.Execute(ctx, "SELECT COUNT(*) AS count FROM users")
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if elapsed < 0 {
		t.Errorf("elapsed = %v, want >= 0", elapsed)
	}
	if len(cols) != 1 || cols[0] != "count" {
		t.Errorf("columns = %v, want [count]", cols)
	}
	if len(rows) != 1 {
		t.Fatalf("rows = %v, want 1 row", rows)
	}
}

func TestSQLiteAdapter_ListSchemas(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	schemas, err := a.ListSchemas(context.Background())
	if err != nil {
		t.Fatalf("ListSchemas() error = %v", err)
	}
	if len(schemas) != 1 || schemas[0].SchemaName != "main" {
		t.Fatalf("schemas = %+v, want one entry named main", schemas)
	}
	if schemas[0].TableCount != 1 {
		t.Errorf("TableCount = %d, want 1", schemas[0].TableCount)
	}
}

func TestSQLiteAdapter_SchemaSnapshot(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	snap, err := a.SchemaSnapshot(context.Background(), "main")
	if err != nil {
		t.Fatalf("SchemaSnapshot() error = %v", err)
	}
	if len(snap.Tables) != 1 {
		t.Fatalf("Tables = %+v, want 1", snap.Tables)
	}
	table := snap.Tables[0]
	if table.FullName != "main.users" {
		t.Errorf("FullName = %q, want main.users", table.FullName)
	}
	var nameCol *model.ColumnDescriptor
	for i := range table.Columns {
		if table.Columns[i].Name == "name" {
			nameCol = &table.Columns[i]
		}
	}
	if nameCol == nil {
		t.Fatal("expected a name column")
	}
	if nameCol.Nullable {
		t.Error("name column has NOT NULL, Nullable should be false")
	}

	snap.Normalize()
	if _, ok := snap.Table("main.users"); !ok {
		t.Error("Table(\"main.users\") not found after Normalize")
	}
}

func TestSQLiteAdapter_TestConnection(t *testing.T) {
	a := newTestSQLiteAdapter(t)
	ok, _, info, err := a.TestConnection(context.Background())
	if err != nil || !ok {
		t.Fatalf("TestConnection() = (%v, err=%v), want ok", ok, err)
	}
	if info.DatabaseType != model.SQLite {
		t.Errorf("DatabaseType = %q, want sqlite", info.DatabaseType)
	}
}
