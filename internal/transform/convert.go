package transform

import (
	"context"

	mxj "github.com/clbanning/mxj/v2"

	"folio/internal/jsontree"
	"folio/internal/spec"
)

// convert parses a raw XML document into a JSON tree. It is only meaningful
// as the first step of a chain, where the engine hands over the stored object
// verbatim. Values stay strings; nothing is cast.
type convert struct{}

func (convert) Execute(_ context.Context, data any, cfg spec.StepConfig, _ *Context) (any, error) {
	text, ok := data.(string)
	if !ok {
		return nil, spec.Errorf(spec.KindTransform, "convert: want raw XML text, got %T", data)
	}
	m, err := mxj.NewMapXml([]byte(text))
	if err != nil {
		return nil, spec.Errorf(spec.KindTransform, "convert: parse xml: %v", err)
	}
	tree := map[string]any(m)
	if cfg.Bool("remove_empty_fields", false) {
		return jsontree.Prune(tree), nil
	}
	return tree, nil
}

func init() { Register("convert", convert{}) }
