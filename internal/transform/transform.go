// Package transform hosts the built-in operation plugins. The set is closed:
// every operation compiles into the engine and registers itself at init, so
// dispatch is exhaustive at build time and an unknown name in an event can
// only be a configuration mistake.
package transform

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"folio/internal/jsontree"
	"folio/internal/spec"
	"folio/storage"
)

// Context carries the per-invocation wiring an operation may need beyond the
// document itself.
type Context struct {
	Storage     storage.Client
	Bucket      string
	ExecutionID string
	Step        int
}

// Transformer is one operation plugin. Execute receives a private copy of the
// document and returns the transformed tree; instances hold no state between
// calls.
type Transformer interface {
	Execute(ctx context.Context, data any, cfg spec.StepConfig, rc *Context) (any, error)
}

var reg = map[string]Transformer{}

// Register wires an operation under its event name. Plugins self-register
// from init; a duplicate name is a programming error.
func Register(name string, t Transformer) {
	if _, dup := reg[name]; dup {
		panic(fmt.Sprintf("transform: duplicate operation %q", name))
	}
	reg[name] = t
}

// Known returns the registered operation names, sorted.
func Known() []string {
	names := make([]string, 0, len(reg))
	for n := range reg {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Dispatch routes one step to its operation. The document is deep-copied
// before the plugin sees it, so callers keep an unmodified tree on failure.
func Dispatch(ctx context.Context, name string, data any, cfg spec.StepConfig, rc *Context) (any, error) {
	t, ok := reg[name]
	if !ok {
		return nil, spec.Errorf(spec.KindUnknownOp,
			"unknown operation %q (known: %s)", name, strings.Join(Known(), ", "))
	}
	return t.Execute(ctx, jsontree.Clone(data), cfg, rc)
}
