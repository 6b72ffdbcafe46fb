package clip

import (
	"time"

	"github.com/emmabastas/libxclip/xclipcfg"
	"github.com/emmabastas/libxclip/xwire"
)

// putConfig collects everything a Put call needs beyond the payload itself.
type putConfig struct {
	selectionName string
	display       string
	cfg           *xclipcfg.Config
	metricsAddr   string
}

// PutOption configures a Put call. The zero-value defaults match spec.md
// §6: selection CLIPBOARD.
type PutOption func(*putConfig)

// WithPutSelection overrides the selection the worker takes ownership of
// (default CLIPBOARD).
func WithPutSelection(name string) PutOption {
	return func(c *putConfig) { c.selectionName = name }
}

// WithDisplay overrides the X display the worker dials (default: the
// worker's own $DISPLAY environment, i.e. leave this unset).
func WithDisplay(display string) PutOption {
	return func(c *putConfig) { c.display = display }
}

// WithPutConfig overrides the engine tunables (chunk size floor, etc.) the
// worker's owner loop runs with. Threaded across the re-exec boundary in the
// handshake frame (internal/workerproc.Options.Config) and applied in the
// worker's own call to owner.New.
func WithPutConfig(cfg *xclipcfg.Config) PutOption {
	return func(c *putConfig) { c.cfg = cfg }
}

// WithMetricsAddr has the worker serve Prometheus metrics
// (owner/metrics.Metrics, registered against the worker's own
// *prometheus.Registry) over HTTP at addr for as long as it owns the
// selection. Leaving this unset (the default) disables metrics entirely —
// the worker then runs with a nil *metrics.Metrics, per spec.md §9's
// "no global state" lesson: nothing is registered unless the caller asks.
func WithMetricsAddr(addr string) PutOption {
	return func(c *putConfig) { c.metricsAddr = addr }
}

func newPutConfig(opts []PutOption) *putConfig {
	c := &putConfig{selectionName: "CLIPBOARD"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// getConfig collects everything a Get/Targets call needs.
type getConfig struct {
	selectionName string
	targetName    string
	timeout       time.Duration
	cfg           *xclipcfg.Config
}

// GetOption configures a Get/Targets call. Defaults match spec.md §6:
// selection CLIPBOARD, target UTF8_STRING, no timeout.
type GetOption func(*getConfig)

// WithSelection overrides the selection atom name to convert against.
func WithSelection(name string) GetOption {
	return func(c *getConfig) { c.selectionName = name }
}

// WithTarget overrides the target atom name to convert to. Ignored by
// Targets, which always converts to TARGETS.
func WithTarget(name string) GetOption {
	return func(c *getConfig) { c.targetName = name }
}

// WithTimeout bounds how long Get/Targets waits for the owner to respond.
// Zero (the default) means wait indefinitely.
func WithTimeout(d time.Duration) GetOption {
	return func(c *getConfig) { c.timeout = d }
}

// WithGetConfig overrides the engine tunables (poll interval, scratch atom
// name) the requester runs with.
func WithGetConfig(cfg *xclipcfg.Config) GetOption {
	return func(c *getConfig) { c.cfg = cfg }
}

func newGetConfig(opts []GetOption) *getConfig {
	c := &getConfig{selectionName: "CLIPBOARD", targetName: "UTF8_STRING"}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func internSelection(conn xwire.Conn, name string) (xwire.Atom, error) {
	return conn.InternAtom(name, false)
}
