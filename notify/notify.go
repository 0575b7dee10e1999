// Package notify publishes best-effort step lifecycle events. The engine
// never fails an invocation on a publish error; drivers register themselves
// by name.
package notify

import (
	"fmt"
	"time"
)

const (
	StatusCompleted = "completed"
	StatusSkipped   = "skipped"
	StatusDeferred  = "deferred"
	StatusFailed    = "failed"
	StatusFinalized = "finalized"
)

// Event describes one step outcome.
type Event struct {
	ExecutionID string    `json:"execution_id"`
	Step        int       `json:"step"`
	Operation   string    `json:"operation,omitempty"`
	Status      string    `json:"status"`
	OutputKey   string    `json:"output_key,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	At          time.Time `json:"at"`
}

// Adapter is the common behaviour every notifier exposes.
type Adapter interface {
	Configure(any) error // driver-specific config ⇒ struct
	Publish(Event) error // one event per step outcome
	Close() error        // idempotent
}

/*──────── registry ───────*/

type factory = func() Adapter

var reg = map[string]factory{}

func Register(name string, f factory) { reg[name] = f }

func NewAdapter(name string) (Adapter, error) {
	if f, ok := reg[name]; ok {
		return f(), nil
	}
	return nil, fmt.Errorf("unknown notifier %q", name)
}
