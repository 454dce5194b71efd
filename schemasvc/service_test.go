package schemasvc

import (
	"context"
	"testing"
	"time"

	"sqlnexus/core/model"
	"sqlnexus/pool"
)

func newTestService(t *testing.T) (*Service, model.ConnectionParams) {
	t.Helper()
	pm := pool.NewPoolManager(time.Hour, nil)
	t.Cleanup(pm.CloseAll)

	params := model.ConnectionParams{Dialect: model.SQLite, FilePath: ":memory:"}
	svc := New(pm)

	ctx := context.Background()
	handle, err := pm.Acquire(ctx, params)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer pm.Release(params, handle)

	setup := []string{
		`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, total REAL)`,
		`CREATE TABLE audit_log (id INTEGER PRIMARY KEY, message TEXT)`,
	}
	for _, stmt := range setup {
		if _, _, _, err := handle.Execute(ctx, stmt); err != nil {
			t.Fatalf("setup %q: %v", stmt, err)
		}
	}
	return svc, params
}

func TestService_Snapshot_WholeDatabase(t *testing.T) {
	svc, params := newTestService(t)
	snap, err := svc.Snapshot(context.Background(), params, "")
	if err != nil {
		t.Fatalf("Snapshot() error = %v", err)
	}
	if len(snap.Tables) != 3 {
		t.Fatalf("Tables = %+v, want 3", snap.Tables)
	}
	if len(snap.TablesByName) != 3 {
		t.Errorf("TablesByName has %d entries, want 3", len(snap.TablesByName))
	}
}

func TestNormalizeList_And_NormalizeMap_Equivalent(t *testing.T) {
	tables := []model.TableDescriptor{
		{SchemaName: "main", TableName: "a", FullName: "main.a"},
		{SchemaName: "main", TableName: "b", FullName: "main.b"},
	}
	fromList := NormalizeList("db", model.SQLite, tables)

	asMap := map[string]model.TableDescriptor{
		"main.a": tables[0],
		"main.b": tables[1],
	}
	fromMap := NormalizeMap("db", model.SQLite, asMap)

	if len(fromList.TablesByName) != len(fromMap.TablesByName) {
		t.Fatalf("TablesByName sizes differ: %d vs %d", len(fromList.TablesByName), len(fromMap.TablesByName))
	}
	for k, v := range fromList.TablesByName {
		if fromMap.TablesByName[k].FullName != v.FullName {
			t.Errorf("table %q differs between list-form and map-form normalization", k)
		}
	}
}

func TestRelevantTables_ScoresDirectMentionHighest(t *testing.T) {
	svc := &Service{}
	snap := NormalizeList("db", model.SQLite, []model.TableDescriptor{
		{TableName: "customers", FullName: "main.customers"},
		{TableName: "orders", FullName: "main.orders"},
		{TableName: "audit_log", FullName: "main.audit_log"},
	})

	top := svc.RelevantTables(snap, "list all orders for each customer", 2)
	if len(top) != 2 {
		t.Fatalf("RelevantTables() length = %d, want 2", len(top))
	}
	if top[0] != "main.orders" && top[0] != "main.customers" {
		t.Errorf("top table = %q, want orders or customers ranked above audit_log", top[0])
	}
	for _, name := range top {
		if name == "main.audit_log" {
			t.Error("audit_log should not outrank directly-mentioned tables")
		}
	}
}

func TestRelevantTables_ReturnsAllWhenUnderLimit(t *testing.T) {
	svc := &Service{}
	snap := NormalizeList("db", model.SQLite, []model.TableDescriptor{
		{TableName: "a", FullName: "main.a"},
		{TableName: "b", FullName: "main.b"},
	})
	got := svc.RelevantTables(snap, "irrelevant question", 10)
	if len(got) != 2 {
		t.Errorf("RelevantTables() length = %d, want 2 (under maxTables)", len(got))
	}
}
