package transform

import (
	"context"

	"folio/internal/jsontree"
	"folio/internal/spec"
)

// addAffix wraps string values with a literal prefix and/or suffix. No
// reference detection happens here; that is reference_affix territory.
type addAffix struct{}

func (addAffix) Execute(_ context.Context, data any, cfg spec.StepConfig, _ *Context) (any, error) {
	prefix := cfg.StringOr("prefix", "")
	suffix := cfg.StringOr("suffix", "")
	if prefix == "" && suffix == "" {
		return nil, spec.Errorf(spec.KindConfiguration, "add_affix: at least one of prefix or suffix is required")
	}
	fn := func(s string) string { return prefix + s + suffix }
	return jsontree.RewriteStrings(data, cfg.TargetFields, fn), nil
}

func init() { Register("add_affix", addAffix{}) }
