package transform

import (
	"context"

	"folio/internal/refaffix"
	"folio/internal/spec"
)

// referenceAffix prefixes archival reference codes across the document. All
// detection and rewriting rules live in the refaffix engine; this plugin only
// maps event parameters onto refaffix.Rules.
type referenceAffix struct{}

func (referenceAffix) Execute(_ context.Context, data any, cfg spec.StepConfig, _ *Context) (any, error) {
	r := refaffix.DefaultRules()
	r.Prefix = cfg.StringOr("prefix", "")
	r.Suffix = cfg.StringOr("suffix", "")
	r.MaxPrefixLen = cfg.Int("max_prefix_length", 0)
	r.DefinitiveRefs = cfg.Value("definitive_refs")
	r.ExclusionPatterns = cfg.StringSlice("exclusion_patterns")
	r.SpecialCases = cfg.StringMap("special_cases")
	if vr := cfg.Map("validation_rules"); vr != nil {
		r.RequireSlash = boolFrom(vr, "require_slash", r.RequireSlash)
		r.MaxSlashes = intFrom(vr, "max_slashes", r.MaxSlashes)
		r.FirstTokenAlphaOnly = boolFrom(vr, "first_token_alpha_only", r.FirstTokenAlphaOnly)
	}
	eng, err := refaffix.Compile(r)
	if err != nil {
		return nil, spec.Errorf(spec.KindConfiguration, "reference_affix: %v", err)
	}
	return eng.Transform(data, cfg.TargetFields), nil
}

func boolFrom(m map[string]any, key string, def bool) bool {
	if b, ok := m[key].(bool); ok {
		return b
	}
	return def
}

func intFrom(m map[string]any, key string, def int) int {
	switch n := m[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return def
}

func init() { Register("reference_affix", referenceAffix{}) }
