// Package pipeline orchestrates single transformation steps over the object
// store. Steps never talk to each other directly: every handoff is a stored
// object plus a zero-byte success marker, so any number of runner instances
// can serve the same execution.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"folio/internal/logging"
	"folio/internal/spec"
	"folio/internal/telemetry"
	"folio/internal/transform"
	"folio/notify"
	"folio/storage"
)

type Runner struct {
	store       storage.Client
	registerKey string
	notifier    notify.Adapter
	now         func() time.Time
}

type Option func(*Runner)

func WithNotifier(n notify.Adapter) Option { return func(r *Runner) { r.notifier = n } }

func WithRegisterKey(key string) Option { return func(r *Runner) { r.registerKey = key } }

// WithClock pins the runner's clock, for deterministic register metadata in
// tests.
func WithClock(now func() time.Time) Option { return func(r *Runner) { r.now = now } }

func NewRunner(store storage.Client, opts ...Option) *Runner {
	r := &Runner{
		store:       store,
		registerKey: spec.DefaultRegisterKey,
		now:         time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// RunStep executes exactly one transformation step and reports the outcome
// as a response envelope. It never returns a Go error: every failure mode
// maps onto an envelope the caller can serialize as-is.
func (r *Runner) RunStep(ctx context.Context, inv spec.Invocation) spec.Response {
	started := r.now()
	resp := r.runStep(ctx, inv)

	op := ""
	if cfg, ok := inv.TransformationConfig[strconv.Itoa(inv.TransformationIndex)]; ok {
		op = cfg.Operation
	}
	status := statusOf(resp)
	telemetry.StepsTotal.WithLabelValues(op, status).Inc()
	telemetry.StepDuration.WithLabelValues(op).Observe(r.now().Sub(started).Seconds())
	r.publish(inv, op, resp, status)
	return resp
}

func (r *Runner) runStep(ctx context.Context, inv spec.Invocation) spec.Response {
	if err := spec.ValidateChain(inv.TransformationConfig); err != nil {
		return r.failure(inv, err)
	}
	idx := inv.TransformationIndex
	cfg, ok := inv.TransformationConfig[strconv.Itoa(idx)]
	if !ok {
		return r.failure(inv, spec.Errorf(spec.KindConfiguration,
			"transformation_config has no step %d", idx))
	}

	stem := recordStem(inv.Key)

	if idx == 1 {
		if resp, skip := r.dedup(ctx, inv, stem); skip {
			return resp
		}
	}

	input, resp, done := r.loadInput(ctx, inv)
	if done {
		return resp
	}

	out, err := transform.Dispatch(ctx, cfg.Operation, input, cfg, &transform.Context{
		Storage:     r.store,
		Bucket:      inv.Bucket,
		ExecutionID: inv.ExecutionID,
		Step:        idx,
	})
	if err != nil {
		return r.failure(inv, err)
	}

	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return r.failure(inv, spec.Errorf(spec.KindInternal, "encode step output: %v", err))
	}
	outKey := spec.StepPrefix(inv.ExecutionID, idx) + "/" + stem + ".json"
	if err := r.store.Put(ctx, inv.Bucket, outKey, body, storage.PutOptions{ContentType: "application/json"}); err != nil {
		return r.failure(inv, spec.Errorf(spec.KindStorage, "write step output: %v", err))
	}
	// marker strictly after data: its presence certifies the data object
	marker := spec.StepMarker(inv.ExecutionID, idx)
	if err := r.store.Put(ctx, inv.Bucket, marker, nil, storage.PutOptions{ContentType: "text/plain"}); err != nil {
		return r.failure(inv, spec.Errorf(spec.KindStorage, "write success marker: %v", err))
	}

	return spec.Response{
		StatusCode:          200,
		ExecutionID:         inv.ExecutionID,
		TransformationIndex: idx,
		Operation:           cfg.Operation,
		OutputKey:           outKey,
		SuccessMarker:       marker,
		Message:             fmt.Sprintf("step %d (%s) completed", idx, cfg.Operation),
	}
}

// dedup consults the transfer register on step 1. An unreadable register is
// logged and ignored; dedup is best-effort, transformation must not stall.
func (r *Runner) dedup(ctx context.Context, inv spec.Invocation, stem string) (spec.Response, bool) {
	reg, _, err := r.loadRegister(ctx, inv.Bucket)
	if err != nil {
		logging.L().Warn("transfer register unreadable, proceeding without dedup",
			"key", r.registerKey, "err", err)
		return spec.Response{}, false
	}
	if !reg.Has(stem) {
		return spec.Response{}, false
	}
	logging.L().Info("record already transferred, skipping",
		"execution_id", inv.ExecutionID, "record", stem)
	return spec.Response{
		StatusCode:          200,
		ExecutionID:         inv.ExecutionID,
		TransformationIndex: inv.TransformationIndex,
		Skipped:             true,
		Reason:              fmt.Sprintf("record %s already in transfer register", stem),
	}, true
}

// loadInput resolves the step's input document. done reports that resp is
// the final envelope (deferred predecessor or failure) and the step stops.
func (r *Runner) loadInput(ctx context.Context, inv spec.Invocation) (any, spec.Response, bool) {
	idx := inv.TransformationIndex
	if idx == 1 {
		raw, _, err := r.store.Get(ctx, inv.Bucket, inv.Key)
		if err != nil {
			kind := spec.KindStorage
			if errors.Is(err, storage.ErrNotFound) {
				kind = spec.KindDataNotFound
			}
			return nil, r.failure(inv, spec.Errorf(kind, "read input %s: %v", inv.Key, err)), true
		}
		return string(raw), spec.Response{}, false
	}

	prev := idx - 1
	marker := spec.StepMarker(inv.ExecutionID, prev)
	ready, err := r.store.Head(ctx, inv.Bucket, marker)
	if err != nil {
		return nil, r.failure(inv, spec.Errorf(spec.KindStorage, "check predecessor marker: %v", err)), true
	}
	if !ready {
		return nil, r.failure(inv, spec.Errorf(spec.KindUnresolved,
			"step %d is not complete yet", prev)), true
	}

	prefix := spec.StepPrefix(inv.ExecutionID, prev)
	keys, err := r.store.List(ctx, inv.Bucket, prefix)
	if err != nil {
		return nil, r.failure(inv, spec.Errorf(spec.KindStorage, "list %s: %v", prefix, err)), true
	}
	var docs []string
	for _, k := range keys {
		if strings.HasSuffix(k, ".json") {
			docs = append(docs, k)
		}
	}
	switch {
	case len(docs) == 0:
		return nil, r.failure(inv, spec.Errorf(spec.KindDataNotFound, "no output found under %s", prefix)), true
	case len(docs) > 1:
		return nil, r.failure(inv, spec.Errorf(spec.KindDataNotFound,
			"ambiguous predecessor output under %s: %d candidates", prefix, len(docs))), true
	}
	raw, _, err := r.store.Get(ctx, inv.Bucket, docs[0])
	if err != nil {
		return nil, r.failure(inv, spec.Errorf(spec.KindStorage, "read %s: %v", docs[0], err)), true
	}
	var tree any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, r.failure(inv, spec.Errorf(spec.KindInternal, "decode %s: %v", docs[0], err)), true
	}
	return tree, spec.Response{}, false
}

// failure maps an error onto its envelope. An unresolved dependency is the
// one non-fatal kind: the predecessor simply has not finished, so the caller
// gets a 202 and is expected to re-invoke later.
func (r *Runner) failure(inv spec.Invocation, err error) spec.Response {
	if spec.KindOf(err) == spec.KindUnresolved {
		logging.L().Info("predecessor not finished, deferring",
			"execution_id", inv.ExecutionID, "step", inv.TransformationIndex)
		return spec.Response{
			StatusCode:          202,
			ExecutionID:         inv.ExecutionID,
			TransformationIndex: inv.TransformationIndex,
			Message:             err.Error(),
		}
	}
	logging.L().Error("step failed",
		"execution_id", inv.ExecutionID, "step", inv.TransformationIndex, "err", err)
	return spec.Response{
		StatusCode:          500,
		ExecutionID:         inv.ExecutionID,
		TransformationIndex: inv.TransformationIndex,
		Error:               err.Error(),
		ErrorType:           spec.KindOf(err),
	}
}

func (r *Runner) publish(inv spec.Invocation, op string, resp spec.Response, status string) {
	if r.notifier == nil {
		return
	}
	reason := resp.Reason
	if reason == "" {
		reason = resp.Error
	}
	ev := notify.Event{
		ExecutionID: inv.ExecutionID,
		Step:        inv.TransformationIndex,
		Operation:   op,
		Status:      status,
		OutputKey:   resp.OutputKey,
		Reason:      reason,
		At:          r.now(),
	}
	if err := r.notifier.Publish(ev); err != nil {
		logging.L().Warn("event publish failed",
			"execution_id", inv.ExecutionID, "err", err)
	}
}

func statusOf(resp spec.Response) string {
	switch {
	case resp.StatusCode == 202:
		return notify.StatusDeferred
	case resp.StatusCode != 200:
		return notify.StatusFailed
	case resp.Skipped:
		return notify.StatusSkipped
	default:
		return notify.StatusCompleted
	}
}

// recordStem is the input filename without directories or extension. It
// doubles as the record id for dedup and as the output filename across every
// step of the chain.
func recordStem(key string) string {
	base := path.Base(key)
	return strings.TrimSuffix(base, path.Ext(base))
}
