package occ

import (
	"math"
	"reflect"
	"testing"
)

func TestChangedFieldsIdenticalSnapshots(t *testing.T) {
	e := Entity{
		"id":      "WO-001",
		"status":  "open",
		"qty":     5,
		"tags":    []any{"a", "b"},
		"meta":    map[string]any{"line": 1},
		"version": 3,
	}
	if got := ChangedFields(e, e.Clone()); len(got) != 0 {
		t.Errorf("Expected no changed fields for identical snapshots, got %v", got)
	}
}

func TestChangedFieldsExcludesBookkeeping(t *testing.T) {
	original := Entity{"id": "WO-001", "status": "open", "version": 3, "updated_at": "2026-01-01T00:00:00Z"}
	current := Entity{"id": "WO-001", "status": "open", "version": 9, "updated_at": "2026-02-01T00:00:00Z"}

	if got := ChangedFields(original, current); len(got) != 0 {
		t.Errorf("version/updated_at changes must not be reported, got %v", got)
	}
}

func TestChangedFieldsDetectsSemanticChanges(t *testing.T) {
	original := Entity{"id": "WO-001", "status": "open", "qty": 5, "notes": "rush"}
	current := Entity{"id": "WO-001", "status": "closed", "qty": 5, "notes": "rush", "owner": "kim"}

	got := ChangedFields(original, current)
	want := []string{"owner", "status"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestChangedFieldsNestedStructures(t *testing.T) {
	original := Entity{"routing": map[string]any{"steps": []any{"cut", "drill"}}}

	same := Entity{"routing": map[string]any{"steps": []any{"cut", "drill"}}}
	if got := ChangedFields(original, same); len(got) != 0 {
		t.Errorf("Structurally equal nested values reported as changed: %v", got)
	}

	reordered := Entity{"routing": map[string]any{"steps": []any{"drill", "cut"}}}
	if got := ChangedFields(original, reordered); len(got) != 1 || got[0] != "routing" {
		t.Errorf("Reordered array should be a change, got %v", got)
	}
}

func TestValueEqualSemantics(t *testing.T) {
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"nil vs nil", nil, nil, true},
		{"nil vs empty string", nil, "", false},
		{"int vs float64 same value", 5, float64(5), true},
		{"int vs int64", 5, int64(5), true},
		{"different numbers", 5, 6.0, false},
		{"NaN vs NaN", math.NaN(), math.NaN(), true},
		{"NaN vs number", math.NaN(), 1.0, false},
		{"bool vs bool", true, true, true},
		{"string vs number", "5", 5, false},
		{"map key present nil vs absent", map[string]any{"a": nil}, map[string]any{}, false},
		{"nested equal maps", map[string]any{"a": []any{1, 2}}, map[string]any{"a": []any{1.0, 2.0}}, true},
		{"slices different length", []any{1}, []any{1, 2}, false},
	}
	for _, tt := range tests {
		if got := ValueEqual(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: ValueEqual(%v, %v) = %v, want %v", tt.name, tt.a, tt.b, got, tt.want)
		}
	}
}
