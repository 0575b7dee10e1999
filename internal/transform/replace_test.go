package transform

import (
	"context"
	"testing"

	"folio/internal/spec"
)

func TestReplaceText_RegexAcrossLeaves(t *testing.T) {
	tree := map[string]any{
		"a": "colour colour",
		"b": map[string]any{"c": "colourful"},
	}
	cfg := spec.StepConfig{Params: map[string]any{"match": "colour", "replace": "color"}}
	out, err := Dispatch(context.Background(), "replace_text", tree, cfg, nil)
	if err != nil {
		t.Fatalf("replace_text: %v", err)
	}
	m := out.(map[string]any)
	if m["a"] != "color color" {
		t.Fatalf("a = %q", m["a"])
	}
	if inner := m["b"].(map[string]any); inner["c"] != "colorful" {
		t.Fatalf("c = %q", inner["c"])
	}
}

func TestReplaceText_BadPatternFallsBackToLiteral(t *testing.T) {
	tree := map[string]any{"a": "open ( paren"}
	cfg := spec.StepConfig{Params: map[string]any{"match": "(", "replace": "["}}
	out, err := Dispatch(context.Background(), "replace_text", tree, cfg, nil)
	if err != nil {
		t.Fatalf("replace_text: %v", err)
	}
	if got := out.(map[string]any)["a"]; got != "open [ paren" {
		t.Fatalf("a = %q", got)
	}
}

func TestReplaceText_NormalizesLineEndings(t *testing.T) {
	tree := map[string]any{"a": "one\r\ntwo\rthree"}
	cfg := spec.StepConfig{Params: map[string]any{"match": "\n", "replace": " / "}}
	out, err := Dispatch(context.Background(), "replace_text", tree, cfg, nil)
	if err != nil {
		t.Fatalf("replace_text: %v", err)
	}
	if got := out.(map[string]any)["a"]; got != "one / two / three" {
		t.Fatalf("a = %q", got)
	}
}

func TestReplaceText_TargetFieldsLimitScope(t *testing.T) {
	tree := map[string]any{
		"record": map[string]any{"title": "old title", "note": "old note"},
	}
	cfg := spec.StepConfig{
		TargetFields: []string{"title"},
		Params:       map[string]any{"match": "old", "replace": "new"},
	}
	out, err := Dispatch(context.Background(), "replace_text", tree, cfg, nil)
	if err != nil {
		t.Fatalf("replace_text: %v", err)
	}
	rec := out.(map[string]any)["record"].(map[string]any)
	if rec["title"] != "new title" || rec["note"] != "old note" {
		t.Fatalf("record = %#v", rec)
	}
}

func TestReplaceText_RequiresMatchAndReplace(t *testing.T) {
	cfg := spec.StepConfig{Params: map[string]any{"match": "x"}}
	_, err := Dispatch(context.Background(), "replace_text", map[string]any{}, cfg, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if kind := spec.KindOf(err); kind != spec.KindConfiguration {
		t.Fatalf("kind = %q", kind)
	}
}
