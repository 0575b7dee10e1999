package transform

import (
	"context"
	"encoding/json"
	"path"

	"folio/internal/jsontree"
	"folio/internal/logging"
	"folio/internal/spec"
)

// attachJSON enriches the record with a sibling document fetched from
// storage, keyed by an id found inside the record itself. The enrichment is
// best-effort: a record whose companion is missing or unreadable passes
// through untouched so the chain keeps moving.
type attachJSON struct{}

func (attachJSON) Execute(ctx context.Context, data any, cfg spec.StepConfig, rc *Context) (any, error) {
	srcBucket, ok1 := cfg.String("source_bucket")
	idPath, ok2 := cfg.String("source_id_path")
	attachKey, ok3 := cfg.String("attachment_key")
	if !ok1 || !ok2 || !ok3 {
		return nil, spec.Errorf(spec.KindConfiguration,
			"attach_json: source_bucket, source_id_path and attachment_key are required")
	}

	id, _ := jsontree.Get(data, idPath, nil).(string)
	if id == "" {
		logging.L().Warn("attach_json found no record id", "path", idPath)
		return data, nil
	}

	key := path.Join(cfg.StringOr("source_prefix", ""), id+".json")
	raw, _, err := rc.Storage.Get(ctx, srcBucket, key)
	if err != nil {
		logging.L().Warn("attach_json skipped, companion not readable",
			"bucket", srcBucket, "key", key, "err", err)
		return data, nil
	}
	var attachment any
	if err := json.Unmarshal(raw, &attachment); err != nil {
		logging.L().Warn("attach_json skipped, companion not valid JSON",
			"key", key, "err", err)
		return data, nil
	}

	if !jsontree.Assign(data, attachKey, attachment) {
		logging.L().Warn("attach_json could not place attachment", "key", attachKey)
		return data, nil
	}
	for _, pf := range promoteRules(cfg.Value("promote_fields")) {
		v := jsontree.Get(attachment, pf.source, nil)
		if v == nil {
			continue
		}
		if !jsontree.Assign(data, pf.destination, v) {
			logging.L().Warn("attach_json could not promote field",
				"source", pf.source, "destination", pf.destination)
		}
	}
	return data, nil
}

type promoteRule struct {
	source, destination string
}

func promoteRules(raw any) []promoteRule {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]promoteRule, 0, len(items))
	for _, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		src, _ := m["source"].(string)
		dst, _ := m["destination"].(string)
		if src != "" && dst != "" {
			out = append(out, promoteRule{source: src, destination: dst})
		}
	}
	return out
}

func init() { Register("attach_json", attachJSON{}) }
