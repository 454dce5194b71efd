package ontology

import "testing"

func TestInferColumnMapping_VendorName(t *testing.T) {
	m, ok := InferColumnMapping("vendors", "vendor_name", "text")
	if !ok {
		t.Fatal("InferColumnMapping() ok = false, want true")
	}
	if m.Concept != "Vendor" || m.Property != "name" {
		t.Errorf("mapping = %+v, want Vendor.name", m)
	}
}

func TestInferColumnMapping_NoMatch(t *testing.T) {
	_, ok := InferColumnMapping("widgets", "zzz_unrelated", "text")
	if ok {
		t.Error("InferColumnMapping() ok = true, want false for unrelated column")
	}
}

func TestDetectOperations_Count(t *testing.T) {
	ops := detectOperations("how many orders are there")
	found := false
	for _, op := range ops {
		if op == "COUNT" {
			found = true
		}
	}
	if !found {
		t.Errorf("detectOperations() = %v, want COUNT", ops)
	}
}

func TestConcept_MatchesTerm(t *testing.T) {
	c := Concept{Name: "Vendor", Synonyms: []string{"supplier", "seller"}}
	for _, term := range []string{"vendor", "Vendor", "supplier", "SELLER"} {
		if !c.MatchesTerm(term) {
			t.Errorf("MatchesTerm(%q) = false, want true", term)
		}
	}
	if c.MatchesTerm("product") {
		t.Error("MatchesTerm(\"product\") = true, want false")
	}
}
