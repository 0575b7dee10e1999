// Package storage abstracts the object store that coordinates all engine
// state: step inputs and outputs, success markers, the transfer register,
// and archive bundles. Drivers register themselves by kind.
package storage

import (
	"context"
	"errors"
	"fmt"
)

// Client is the object-store surface the engine depends on. Keys are
// slash-separated paths inside a bucket.
type Client interface {
	Get(ctx context.Context, bucket, key string) (data []byte, etag string, err error)
	Put(ctx context.Context, bucket, key string, data []byte, opts PutOptions) error
	Head(ctx context.Context, bucket, key string) (bool, error)
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Close() error
}

// PutOptions carries content metadata and the conditional-write guards.
// IfMatch overwrites only the given ETag; IfNoneMatch writes only when the
// key does not exist yet.
type PutOptions struct {
	ContentType string
	IfMatch     string
	IfNoneMatch bool
}

var (
	ErrNotFound           = errors.New("storage: object not found")
	ErrPreconditionFailed = errors.New("storage: precondition failed")
)

// Driver is a Client configurable from the shared Config.
type Driver interface {
	Client
	Configure(Config) error
}

// Factory builds an unconfigured driver.
type Factory func() Driver

var registry = map[string]Factory{}

// Register is called from each driver's init().
func Register(name string, f Factory) {
	registry[name] = f
}

// Open returns a configured driver by kind ("s3", "fs").
func Open(name string, cfg Config) (Client, error) {
	f, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("storage: unsupported driver %q", name)
	}
	d := f()
	if err := d.Configure(cfg); err != nil {
		return nil, err
	}
	return d, nil
}
