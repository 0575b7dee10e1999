package jsontree

import (
	"reflect"
	"strings"
	"testing"
)

func TestClone_Independent(t *testing.T) {
	orig := map[string]any{
		"a": []any{map[string]any{"b": "c"}},
	}
	cp := Clone(orig).(map[string]any)
	cp["a"].([]any)[0].(map[string]any)["b"] = "mutated"
	if orig["a"].([]any)[0].(map[string]any)["b"] != "c" {
		t.Fatal("mutating the clone leaked into the original")
	}
}

func TestWalkStrings_RewritesEveryLeaf(t *testing.T) {
	doc := map[string]any{
		"a": "x",
		"b": []any{"y", float64(3), map[string]any{"c": "z"}},
	}
	got := WalkStrings(doc, strings.ToUpper)
	want := map[string]any{
		"a": "X",
		"b": []any{"Y", float64(3), map[string]any{"c": "Z"}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("walk result: %v", got)
	}
	if s := WalkStrings("plain", strings.ToUpper); s != "PLAIN" {
		t.Fatalf("string root: got %v", s)
	}
}

func TestPrune_DropsEmptySubtrees(t *testing.T) {
	doc := map[string]any{
		"title": "kept",
		"blank": "",
		"gone":  nil,
		"nest":  map[string]any{"inner": nil},
		"list":  []any{[]any{}, "x", ""},
		"zero":  float64(0),
	}
	got := Prune(doc)
	want := map[string]any{
		"title": "kept",
		"list":  []any{"x"},
		"zero":  float64(0),
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("prune result: %v", got)
	}
}
