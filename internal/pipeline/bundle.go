package pipeline

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	"folio/internal/jsontree"
	"folio/internal/logging"
	"folio/internal/spec"
	"folio/internal/telemetry"
	"folio/notify"
	"folio/storage"
)

type bundleRecord struct {
	id   string
	body []byte
}

// Finalize bundles the last step's outputs into tar.gz archives and folds
// the bundled record ids into the transfer register. Bundling is the
// authoritative outcome; register folding is best-effort.
func (r *Runner) Finalize(ctx context.Context, req spec.FinalizeRequest) spec.FinalizeResult {
	if req.ExecutionID == "" || req.FinalStep < 1 || req.TreeName == "" {
		return finalizeFailure(req, spec.Errorf(spec.KindConfiguration,
			"finalize needs execution_id, final_step and tree_name"))
	}
	maxItems := req.MaxItems
	if maxItems <= 0 {
		maxItems = spec.DefaultBundleMaxItems
	}

	prefix := spec.StepPrefix(req.ExecutionID, req.FinalStep)
	keys, err := r.store.List(ctx, req.Bucket, prefix)
	if err != nil {
		return finalizeFailure(req, spec.Errorf(spec.KindStorage, "list %s: %v", prefix, err))
	}

	groups := map[string][]bundleRecord{}
	for _, k := range keys {
		if !strings.HasSuffix(k, ".json") {
			continue
		}
		raw, _, err := r.store.Get(ctx, req.Bucket, k)
		if err != nil {
			return finalizeFailure(req, spec.Errorf(spec.KindStorage, "read %s: %v", k, err))
		}
		level := "default"
		if req.LevelPath != "" {
			var doc any
			if err := json.Unmarshal(raw, &doc); err != nil {
				return finalizeFailure(req, spec.Errorf(spec.KindInternal, "decode %s: %v", k, err))
			}
			if s, ok := jsontree.Get(doc, req.LevelPath, "").(string); ok && s != "" {
				level = sanitizeLevel(s)
			}
		}
		groups[level] = append(groups[level], bundleRecord{id: recordStem(k), body: raw})
	}
	if len(groups) == 0 {
		return finalizeFailure(req, spec.Errorf(spec.KindDataNotFound, "no outputs under %s", prefix))
	}

	levels := make([]string, 0, len(groups))
	for lv := range groups {
		levels = append(levels, lv)
	}
	sort.Strings(levels)

	var bundles []spec.BundleInfo
	var ids []string
	for _, lv := range levels {
		recs := groups[lv]
		sort.Slice(recs, func(i, j int) bool { return recs[i].id < recs[j].id })
		cumulative := 0
		for start := 0; start < len(recs); start += maxItems {
			end := min(start+maxItems, len(recs))
			chunk := recs[start:end]
			cumulative += len(chunk)
			blob, err := r.buildTarball(chunk)
			if err != nil {
				return finalizeFailure(req, spec.Errorf(spec.KindInternal, "build bundle: %v", err))
			}
			key := fmt.Sprintf("tarballs/%s/%s_%s_%d.tar.gz",
				req.ExecutionID, req.TreeName, lv, cumulative)
			if err := r.store.Put(ctx, req.Bucket, key, blob, storage.PutOptions{ContentType: "application/gzip"}); err != nil {
				return finalizeFailure(req, spec.Errorf(spec.KindStorage, "write bundle %s: %v", key, err))
			}
			telemetry.BundlesTotal.Inc()
			bundles = append(bundles, spec.BundleInfo{
				Key:       key,
				Level:     lv,
				FileCount: len(chunk),
				SizeBytes: len(blob),
			})
			for _, rec := range chunk {
				ids = append(ids, rec.id)
			}
		}
	}

	r.recordTransfers(ctx, req, ids)

	if r.notifier != nil {
		ev := notify.Event{
			ExecutionID: req.ExecutionID,
			Step:        req.FinalStep,
			Status:      notify.StatusFinalized,
			Reason:      fmt.Sprintf("%d bundle(s), %d record(s)", len(bundles), len(ids)),
			At:          r.now(),
		}
		if err := r.notifier.Publish(ev); err != nil {
			logging.L().Warn("event publish failed",
				"execution_id", req.ExecutionID, "err", err)
		}
	}

	return spec.FinalizeResult{
		StatusCode:  200,
		ExecutionID: req.ExecutionID,
		Bundles:     bundles,
		Message:     fmt.Sprintf("%d bundle(s) written", len(bundles)),
	}
}

func (r *Runner) buildTarball(recs []bundleRecord) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for _, rec := range recs {
		hdr := &tar.Header{
			Name:    rec.id + ".json",
			Mode:    0o644,
			Size:    int64(len(rec.body)),
			ModTime: r.now(),
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return nil, err
		}
		if _, err := tw.Write(rec.body); err != nil {
			return nil, err
		}
	}
	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// recordTransfers folds bundled ids into the transfer register. A lost race
// is retried against a fresh copy; persistent failure only costs future
// dedup, so it is logged and swallowed.
func (r *Runner) recordTransfers(ctx context.Context, req spec.FinalizeRequest, ids []string) {
	const attempts = 3
	meta := map[string]any{
		"tree":       req.TreeName,
		"execution":  req.ExecutionID,
		"bundled_at": r.now().UTC().Format(time.RFC3339),
	}
	for i := 0; i < attempts; i++ {
		reg, etag, err := r.loadRegister(ctx, req.Bucket)
		if err != nil {
			logging.L().Warn("transfer register unreadable, ids not recorded", "err", err)
			return
		}
		for _, id := range ids {
			reg.Add(id, meta)
		}
		err = r.saveRegister(ctx, req.Bucket, reg, etag)
		if err == nil {
			return
		}
		if !errors.Is(err, storage.ErrPreconditionFailed) {
			logging.L().Warn("transfer register write failed, ids not recorded", "err", err)
			return
		}
		logging.L().Info("transfer register changed underneath, retrying", "attempt", i+1)
	}
	logging.L().Warn("transfer register contended, ids not recorded", "attempts", attempts)
}

func finalizeFailure(req spec.FinalizeRequest, err error) spec.FinalizeResult {
	logging.L().Error("finalize failed", "execution_id", req.ExecutionID, "err", err)
	return spec.FinalizeResult{
		StatusCode:  500,
		ExecutionID: req.ExecutionID,
		Error:       err.Error(),
		ErrorType:   spec.KindOf(err),
	}
}

// levels come from record data; keep the bundle name filesystem-safe
func sanitizeLevel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		default:
			return '-'
		}
	}, s)
}
