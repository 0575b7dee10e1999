package fs

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"folio/storage"
)

func newDriver(t *testing.T) storage.Client {
	t.Helper()
	c, err := storage.Open("fs", storage.Config{Root: t.TempDir()})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return c
}

func TestPutGetHead(t *testing.T) {
	ctx := context.Background()
	c := newDriver(t)

	if err := c.Put(ctx, "b", "a/nested/key.json", []byte(`{"x":1}`), storage.PutOptions{ContentType: "application/json"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	data, etag, err := c.Get(ctx, "b", "a/nested/key.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(data) != `{"x":1}` || etag == "" {
		t.Fatalf("get: %q etag %q", data, etag)
	}
	ok, err := c.Head(ctx, "b", "a/nested/key.json")
	if err != nil || !ok {
		t.Fatalf("head: %v %v", ok, err)
	}
	ok, err = c.Head(ctx, "b", "absent")
	if err != nil || ok {
		t.Fatalf("head absent: %v %v", ok, err)
	}
}

func TestGet_MissingIsNotFound(t *testing.T) {
	c := newDriver(t)
	_, _, err := c.Get(context.Background(), "b", "nope")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestList_PrefixDirectory(t *testing.T) {
	ctx := context.Background()
	c := newDriver(t)
	for _, k := range []string{"run/step_1/a.json", "run/step_1/_SUCCESS", "run/step_2/b.json"} {
		if err := c.Put(ctx, "b", k, []byte("x"), storage.PutOptions{}); err != nil {
			t.Fatalf("put %s: %v", k, err)
		}
	}
	keys, err := c.List(ctx, "b", "run/step_1/")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"run/step_1/_SUCCESS", "run/step_1/a.json"}
	if !reflect.DeepEqual(keys, want) {
		t.Fatalf("list: %v", keys)
	}
	keys, err = c.List(ctx, "b", "empty/")
	if err != nil || keys != nil {
		t.Fatalf("empty prefix: %v %v", keys, err)
	}
}

func TestPut_ConditionalGuards(t *testing.T) {
	ctx := context.Background()
	c := newDriver(t)

	// create-only write
	if err := c.Put(ctx, "b", "reg.json", []byte("v1"), storage.PutOptions{IfNoneMatch: true}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := c.Put(ctx, "b", "reg.json", []byte("v2"), storage.PutOptions{IfNoneMatch: true}); !errors.Is(err, storage.ErrPreconditionFailed) {
		t.Fatalf("second create: %v", err)
	}

	_, etag, err := c.Get(ctx, "b", "reg.json")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if err := c.Put(ctx, "b", "reg.json", []byte("v2"), storage.PutOptions{IfMatch: etag}); err != nil {
		t.Fatalf("guarded put: %v", err)
	}
	// stale etag now refused
	if err := c.Put(ctx, "b", "reg.json", []byte("v3"), storage.PutOptions{IfMatch: etag}); !errors.Is(err, storage.ErrPreconditionFailed) {
		t.Fatalf("stale put: %v", err)
	}
	data, _, err := c.Get(ctx, "b", "reg.json")
	if err != nil || string(data) != "v2" {
		t.Fatalf("content after stale put: %q %v", data, err)
	}
}

func TestOpen_UnknownDriver(t *testing.T) {
	if _, err := storage.Open("tape", storage.Config{}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
