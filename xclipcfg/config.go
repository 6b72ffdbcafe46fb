// Package xclipcfg is this module's configuration surface: a small
// functional-options struct mirroring the shape of the teacher's
// cmn.Config, but deliberately not a global. spec.md never describes a
// single process-wide configuration object, and aistore's cmn.GCO
// singleton exists to serve a long-running storage target process; a
// host embedding this library is typically short-lived and may run
// several Put/Get calls with different settings, so every call takes its
// Config explicitly instead of reading package-level state.
package xclipcfg

import "time"

// Config holds the tunables spec.md leaves as implementation choices:
// the INCR chunk-size floor, how often the requester's deadline pump
// re-polls, and the name of the scratch property it uses to receive
// conversions.
type Config struct {
	ChunkSizeFloor  int
	PollInterval    time.Duration
	ScratchAtomName string
}

// Option mutates a Config under construction.
type Option func(*Config)

// WithChunkSizeFloor raises the minimum INCR chunk size above chunk.MinSize.
func WithChunkSizeFloor(bytes int) Option {
	return func(c *Config) { c.ChunkSizeFloor = bytes }
}

// WithPollInterval overrides how often the requester's deadline pump
// re-checks for a queued event when none is available.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) { c.PollInterval = d }
}

// WithScratchAtomName overrides the property name the requester interns to
// receive ConvertSelection results. Rarely needed outside tests that run
// multiple requesters against the same fake server and want isolation.
func WithScratchAtomName(name string) Option {
	return func(c *Config) { c.ScratchAtomName = name }
}

// defaultChunkSizeFloor mirrors chunk.MinSize without importing the chunk
// package, keeping xclipcfg a leaf with no dependency on the engine it
// configures.
const (
	defaultChunkSizeFloor  = 4096
	defaultPollInterval    = 2 * time.Millisecond
	defaultScratchAtomName = "LIBXCLIP_DATA"
)

// New builds a Config with spec.md-documented defaults, applying opts over
// them.
func New(opts ...Option) *Config {
	c := &Config{
		ChunkSizeFloor:  defaultChunkSizeFloor,
		PollInterval:    defaultPollInterval,
		ScratchAtomName: defaultScratchAtomName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
