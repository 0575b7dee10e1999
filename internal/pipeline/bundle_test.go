package pipeline

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"folio/internal/spec"
	"folio/notify"
	"folio/storage"
)

func seedFinalStep(t *testing.T, cl storage.Client, exec string, step int, id, level string) {
	t.Helper()
	doc := map[string]any{"record": map[string]any{"id": id, "level": level}}
	b, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	key := spec.StepPrefix(exec, step) + "/" + id + ".json"
	if err := cl.Put(context.Background(), "ingest", key, b, storage.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func tarEntries(t *testing.T, cl storage.Client, bucket, key string) []string {
	t.Helper()
	blob, _, err := cl.Get(context.Background(), bucket, key)
	if err != nil {
		t.Fatalf("get %s: %v", key, err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		t.Fatalf("gzip: %v", err)
	}
	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar: %v", err)
		}
		names = append(names, hdr.Name)
	}
	return names
}

func TestFinalize_BundlesByLevelWithCumulativeNames(t *testing.T) {
	cl := newStore(t)
	ctx := context.Background()
	for _, s := range []struct{ id, level string }{
		{"A1", "piece"}, {"A2", "piece"}, {"A3", "piece"}, {"B1", "item"},
	} {
		seedFinalStep(t, cl, "e1", 3, s.id, s.level)
	}
	fixed := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r := NewRunner(cl, WithClock(func() time.Time { return fixed }))

	res := r.Finalize(ctx, spec.FinalizeRequest{
		Bucket:      "ingest",
		ExecutionID: "e1",
		FinalStep:   3,
		TreeName:    "AB",
		LevelPath:   "record.level",
		MaxItems:    2,
	})
	if res.StatusCode != 200 {
		t.Fatalf("finalize: %+v", res)
	}
	wantKeys := []string{
		"tarballs/e1/AB_item_1.tar.gz",
		"tarballs/e1/AB_piece_2.tar.gz",
		"tarballs/e1/AB_piece_3.tar.gz",
	}
	if len(res.Bundles) != len(wantKeys) {
		t.Fatalf("bundles = %+v", res.Bundles)
	}
	for i, want := range wantKeys {
		if res.Bundles[i].Key != want {
			t.Fatalf("bundle %d key = %q, want %q", i, res.Bundles[i].Key, want)
		}
	}
	if res.Bundles[1].FileCount != 2 || res.Bundles[2].FileCount != 1 {
		t.Fatalf("piece bundle sizes = %+v", res.Bundles)
	}

	names := tarEntries(t, cl, "ingest", "tarballs/e1/AB_piece_2.tar.gz")
	if len(names) != 2 || names[0] != "A1.json" || names[1] != "A2.json" {
		t.Fatalf("entries = %v", names)
	}

	raw, _, err := cl.Get(ctx, "ingest", spec.DefaultRegisterKey)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	var reg Register
	if err := json.Unmarshal(raw, &reg); err != nil {
		t.Fatalf("decode register: %v", err)
	}
	for _, id := range []string{"A1", "A2", "A3", "B1"} {
		meta, ok := reg.Records[id].(map[string]any)
		if !ok {
			t.Fatalf("register missing %s: %#v", id, reg.Records)
		}
		if meta["tree"] != "AB" {
			t.Fatalf("meta for %s = %#v", id, meta)
		}
		if meta["bundled_at"] != "2026-08-01T12:00:00Z" {
			t.Fatalf("bundled_at = %v", meta["bundled_at"])
		}
	}
}

func TestFinalize_ThenStepOneSkips(t *testing.T) {
	cl := newStore(t)
	ctx := context.Background()
	seedFinalStep(t, cl, "e2", 2, "AB-12", "piece")
	r := NewRunner(cl)

	res := r.Finalize(ctx, spec.FinalizeRequest{
		Bucket: "ingest", ExecutionID: "e2", FinalStep: 2, TreeName: "AB",
	})
	if res.StatusCode != 200 {
		t.Fatalf("finalize: %+v", res)
	}

	seedInput(t, cl, "source/AB-12.xml")
	resp := r.RunStep(ctx, chainInv(1, "e3"))
	if !resp.Skipped {
		t.Fatalf("expected dedup skip, got %+v", resp)
	}
}

func TestFinalize_PublishesFinalizedEvent(t *testing.T) {
	cl := newStore(t)
	seedFinalStep(t, cl, "e4", 2, "AB-12", "piece")
	sink := &captureNotifier{}

	res := NewRunner(cl, WithNotifier(sink)).Finalize(context.Background(), spec.FinalizeRequest{
		Bucket: "ingest", ExecutionID: "e4", FinalStep: 2, TreeName: "AB",
	})
	if res.StatusCode != 200 {
		t.Fatalf("finalize: %+v", res)
	}
	if len(sink.events) != 1 {
		t.Fatalf("events = %+v", sink.events)
	}
	ev := sink.events[0]
	if ev.Status != notify.StatusFinalized || ev.ExecutionID != "e4" || ev.Step != 2 {
		t.Fatalf("event = %+v", ev)
	}
}

func TestFinalize_EmptyStepFails(t *testing.T) {
	res := NewRunner(newStore(t)).Finalize(context.Background(), spec.FinalizeRequest{
		Bucket: "ingest", ExecutionID: "none", FinalStep: 3, TreeName: "T",
	})
	if res.StatusCode != 500 || res.ErrorType != spec.KindDataNotFound {
		t.Fatalf("res = %+v", res)
	}
}

func TestFinalize_RequiresIdentity(t *testing.T) {
	res := NewRunner(newStore(t)).Finalize(context.Background(), spec.FinalizeRequest{Bucket: "ingest"})
	if res.StatusCode != 500 || res.ErrorType != spec.KindConfiguration {
		t.Fatalf("res = %+v", res)
	}
}
