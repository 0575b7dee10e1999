package transform

import (
	"context"
	"testing"

	"folio/internal/spec"
)

func TestConvert_ParsesXMLDocument(t *testing.T) {
	xml := `<record><id>ABC 1</id><title>Board of Trade</title></record>`
	out, err := Dispatch(context.Background(), "convert", xml, spec.StepConfig{}, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	rec, ok := out.(map[string]any)["record"].(map[string]any)
	if !ok {
		t.Fatalf("unexpected shape %#v", out)
	}
	if rec["id"] != "ABC 1" || rec["title"] != "Board of Trade" {
		t.Fatalf("record = %#v", rec)
	}
}

func TestConvert_RemoveEmptyFieldsPrunes(t *testing.T) {
	xml := `<record><id>A1</id><note></note></record>`
	cfg := spec.StepConfig{Params: map[string]any{"remove_empty_fields": true}}
	out, err := Dispatch(context.Background(), "convert", xml, cfg, nil)
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	rec := out.(map[string]any)["record"].(map[string]any)
	if _, present := rec["note"]; present {
		t.Fatalf("empty note survived: %#v", rec)
	}
	if rec["id"] != "A1" {
		t.Fatalf("id = %v", rec["id"])
	}
}

func TestConvert_RejectsNonText(t *testing.T) {
	_, err := Dispatch(context.Background(), "convert", map[string]any{"already": "json"}, spec.StepConfig{}, nil)
	if err == nil {
		t.Fatalf("expected error for non-string input")
	}
	if kind := spec.KindOf(err); kind != spec.KindTransform {
		t.Fatalf("kind = %q", kind)
	}
}

func TestConvert_RejectsMalformedXML(t *testing.T) {
	_, err := Dispatch(context.Background(), "convert", "<record><open>", spec.StepConfig{}, nil)
	if err == nil {
		t.Fatalf("expected parse error")
	}
}
