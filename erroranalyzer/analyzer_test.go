package erroranalyzer

import (
	"testing"

	"sqlnexus/core/model"
)

func testSnapshot() *model.SchemaSnapshot {
	snap := &model.SchemaSnapshot{
		DatabaseName: "db",
		DatabaseType: model.Postgres,
		Tables: []model.TableDescriptor{
			{
				SchemaName: "public", TableName: "orders", FullName: "public.orders",
				Columns: []model.ColumnDescriptor{
					{Name: "id", DataType: "integer"},
					{Name: "total", DataType: "integer"},
					{Name: "vendor_id", DataType: "integer"},
				},
			},
			{
				SchemaName: "public", TableName: "web_user", FullName: "public.web_user",
				Columns: []model.ColumnDescriptor{
					{Name: "id", DataType: "text"},
				},
			},
			{
				SchemaName: "public", TableName: "role_permissions", FullName: "public.role_permissions",
				Columns: []model.ColumnDescriptor{
					{Name: "user_id", DataType: "integer"},
				},
			},
		},
	}
	snap.Normalize()
	return snap
}

func TestAnalyze_MissingColumn_QualifiedAlias(t *testing.T) {
	snap := testSnapshot()
	a := Analyze(`column "orders.amount" does not exist`, snap)
	if a.Kind != model.ErrMissingColumn {
		t.Fatalf("Kind = %q, want missing_column", a.Kind)
	}
	found := false
	for _, s := range a.Suggestions {
		if s == "total" {
			found = true
		}
	}
	if !found {
		t.Errorf("Suggestions = %v, want to include 'total'", a.Suggestions)
	}
}

func TestAnalyze_MissingColumn_Bare(t *testing.T) {
	a := Analyze(`column "amount" does not exist`, nil)
	if a.Kind != model.ErrMissingColumn {
		t.Fatalf("Kind = %q, want missing_column", a.Kind)
	}
	if len(a.OffendingIdentifiers) != 1 || a.OffendingIdentifiers[0] != "amount" {
		t.Errorf("OffendingIdentifiers = %v, want [amount]", a.OffendingIdentifiers)
	}
}

func TestAnalyze_MissingTable(t *testing.T) {
	snap := testSnapshot()
	a := Analyze(`relation "order" does not exist`, snap)
	if a.Kind != model.ErrMissingTable {
		t.Fatalf("Kind = %q, want missing_table", a.Kind)
	}
	found := false
	for _, s := range a.Suggestions {
		if s == "orders" {
			found = true
		}
	}
	if !found {
		t.Errorf("Suggestions = %v, want to include 'orders'", a.Suggestions)
	}
}

func TestAnalyze_TypeMismatch(t *testing.T) {
	snap := testSnapshot()
	msg := `operator does not exist: text = integer\nLINE 1: ...JOIN role_permissions r ON web_user.id = role_permissions.user_id`
	a := Analyze(msg, snap)
	if a.Kind != model.ErrTypeMismatch {
		t.Fatalf("Kind = %q, want type_mismatch", a.Kind)
	}
	if len(a.Suggestions) == 0 {
		t.Error("expected at least one cast suggestion")
	}
}

func TestAnalyze_Syntax(t *testing.T) {
	a := Analyze(`syntax error at or near "FORM"`, nil)
	if a.Kind != model.ErrSyntax {
		t.Fatalf("Kind = %q, want syntax", a.Kind)
	}
	if len(a.OffendingIdentifiers) != 1 || a.OffendingIdentifiers[0] != "FORM" {
		t.Errorf("OffendingIdentifiers = %v, want [FORM]", a.OffendingIdentifiers)
	}
}

func TestAnalyze_Unknown(t *testing.T) {
	a := Analyze("connection reset by peer", nil)
	if a.Kind != model.ErrUnknown {
		t.Fatalf("Kind = %q, want unknown", a.Kind)
	}
}

func TestSimilar_PrefersSubstringMatch(t *testing.T) {
	got := similar("order", []string{"orders", "border", "xyz"}, 3)
	// "orders" and "border" both contain "order", so both score distance 0
	// and the tie breaks alphabetically; "xyz" is beyond the threshold.
	if len(got) != 2 || got[0] != "border" || got[1] != "orders" {
		t.Errorf("similar() = %v, want [border orders] (both substring matches, alphabetical tie-break)", got)
	}
}

func TestLevenshtein_Basic(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "abc", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

// TestAnalyze_SymmetricAcrossEqualDistanceCandidates checks that
// exchanging two candidates of equal edit distance never changes the
// reported kind (only ordering/content of suggestions may differ).
func TestAnalyze_SymmetricAcrossEqualDistanceCandidates(t *testing.T) {
	snap := testSnapshot()
	a1 := Analyze(`relation "ordrs" does not exist`, snap)

	swapped := testSnapshot()
	swapped.Tables[0], swapped.Tables[2] = swapped.Tables[2], swapped.Tables[0]
	swapped.TablesByName = nil
	swapped.Normalize()
	a2 := Analyze(`relation "ordrs" does not exist`, swapped)

	if a1.Kind != a2.Kind {
		t.Errorf("Kind changed after reordering equal-footing candidates: %q vs %q", a1.Kind, a2.Kind)
	}
}
