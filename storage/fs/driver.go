// Package fs stores objects as plain files under <root>/<bucket>/<key>.
// It backs local runs and tests with the same Client surface as S3. ETags
// are content MD5 hashes; conditional puts compare against the current
// file, which is safe for a single engine process.
package fs

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"folio/storage"
)

type driver struct {
	root string
}

func (d *driver) Configure(cfg storage.Config) error {
	if cfg.Root == "" {
		return errors.New("fs: root directory not configured")
	}
	d.root = cfg.Root
	return nil
}

func (d *driver) path(bucket, key string) string {
	return filepath.Join(d.root, bucket, filepath.FromSlash(key))
}

func etagOf(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}

func (d *driver) Get(ctx context.Context, bucket, key string) ([]byte, string, error) {
	data, err := os.ReadFile(d.path(bucket, key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", storage.ErrNotFound
	}
	if err != nil {
		return nil, "", err
	}
	return data, etagOf(data), nil
}

func (d *driver) Put(ctx context.Context, bucket, key string, data []byte, opts storage.PutOptions) error {
	p := d.path(bucket, key)
	if opts.IfMatch != "" || opts.IfNoneMatch {
		cur, err := os.ReadFile(p)
		exists := err == nil
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		if opts.IfNoneMatch && exists {
			return storage.ErrPreconditionFailed
		}
		if opts.IfMatch != "" && (!exists || etagOf(cur) != opts.IfMatch) {
			return storage.ErrPreconditionFailed
		}
	}

	// stage outside the bucket tree so List never sees partial writes
	stage := filepath.Join(d.root, ".staging")
	if err := os.MkdirAll(stage, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(stage, "put-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (d *driver) Head(ctx context.Context, bucket, key string) (bool, error) {
	_, err := os.Stat(d.path(bucket, key))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// List treats the prefix as a directory, matching how the engine lays out
// step namespaces. Returned keys are bucket-relative, sorted.
func (d *driver) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	base := filepath.Join(d.root, bucket)
	dir := filepath.Join(base, filepath.FromSlash(prefix))
	var keys []string
	err := filepath.WalkDir(dir, func(p string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if de.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

func (d *driver) Close() error { return nil }

func init() {
	storage.Register("fs", func() storage.Driver { return &driver{} })
}
