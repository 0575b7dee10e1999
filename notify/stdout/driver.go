package stdout

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"folio/notify"
)

/* ────────── public YAML config ────────── */
type Config struct {
	Verbose bool `yaml:"verbose"` // include operation, key and reason
}

/* ────────── driver ────────── */
type driver struct {
	cfg Config
	out io.Writer
}

var seq uint64

/* ────────── notify.Adapter ────────── */
func (d *driver) Configure(raw any) error {
	c, ok := raw.(Config)
	if !ok {
		return fmt.Errorf("stdout-notify: expected Config, got %T", raw)
	}
	d.cfg = c
	if d.out == nil {
		d.out = os.Stdout
	}
	return nil
}

func (d *driver) Publish(ev notify.Event) error {
	n := atomic.AddUint64(&seq, 1)
	if d.cfg.Verbose {
		_, err := fmt.Fprintf(d.out, "[notify %06d] %s step %d %s op=%s key=%s reason=%q\n",
			n, ev.ExecutionID, ev.Step, ev.Status, ev.Operation, ev.OutputKey, ev.Reason)
		return err
	}
	_, err := fmt.Fprintf(d.out, "[notify %06d] %s step %d %s\n",
		n, ev.ExecutionID, ev.Step, ev.Status)
	return err
}

func (d *driver) Close() error { return nil }

/* ────────── auto-register ────────── */
func init() {
	notify.Register("stdout", func() notify.Adapter { return &driver{} })
}
