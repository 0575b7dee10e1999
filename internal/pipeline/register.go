package pipeline

import (
	"context"
	"encoding/json"
	"errors"

	"folio/storage"
)

// Register mirrors the transfer register object: one entry per record id
// that has completed a transfer, with free-form metadata per entry.
type Register struct {
	Records map[string]any `json:"records"`
}

func (g *Register) Has(id string) bool {
	_, ok := g.Records[id]
	return ok
}

func (g *Register) Add(id string, meta any) {
	if g.Records == nil {
		g.Records = map[string]any{}
	}
	g.Records[id] = meta
}

// loadRegister fetches the register. A missing object is an empty register
// with no etag, not an error.
func (r *Runner) loadRegister(ctx context.Context, bucket string) (*Register, string, error) {
	raw, etag, err := r.store.Get(ctx, bucket, r.registerKey)
	if errors.Is(err, storage.ErrNotFound) {
		return &Register{Records: map[string]any{}}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	var g Register
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, "", err
	}
	if g.Records == nil {
		g.Records = map[string]any{}
	}
	return &g, etag, nil
}

// saveRegister writes the register conditionally: create-only when no etag
// was seen, if-match otherwise. A concurrent writer surfaces as
// storage.ErrPreconditionFailed and the caller reloads and merges.
func (r *Runner) saveRegister(ctx context.Context, bucket string, g *Register, etag string) error {
	body, err := json.MarshalIndent(g, "", "  ")
	if err != nil {
		return err
	}
	opts := storage.PutOptions{ContentType: "application/json"}
	if etag == "" {
		opts.IfNoneMatch = true
	} else {
		opts.IfMatch = etag
	}
	return r.store.Put(ctx, bucket, r.registerKey, body, opts)
}
