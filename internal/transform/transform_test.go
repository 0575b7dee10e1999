package transform

import (
	"context"
	"reflect"
	"strings"
	"testing"

	"folio/internal/spec"
)

func TestDispatch_UnknownOperationListsKnown(t *testing.T) {
	_, err := Dispatch(context.Background(), "frobnicate", nil, spec.StepConfig{}, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	if kind := spec.KindOf(err); kind != spec.KindUnknownOp {
		t.Fatalf("kind = %q, want %q", kind, spec.KindUnknownOp)
	}
	msg := err.Error()
	for _, op := range []string{"add_affix", "attach_json", "convert", "reference_affix", "replace_text"} {
		if !strings.Contains(msg, op) {
			t.Fatalf("message %q does not name %q", msg, op)
		}
	}
}

func TestDispatch_LeavesCallerTreeAlone(t *testing.T) {
	tree := map[string]any{"record": map[string]any{"title": "plain"}}
	snapshot := map[string]any{"record": map[string]any{"title": "plain"}}

	cfg := spec.StepConfig{Params: map[string]any{"prefix": "X-"}}
	out, err := Dispatch(context.Background(), "add_affix", tree, cfg, nil)
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !reflect.DeepEqual(tree, snapshot) {
		t.Fatalf("caller tree mutated: %#v", tree)
	}
	got := out.(map[string]any)["record"].(map[string]any)["title"]
	if got != "X-plain" {
		t.Fatalf("output title = %q", got)
	}
}
