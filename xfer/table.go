// Package xfer is the owner-side transfer table of spec.md §3/§4.2: one
// record per in-flight INCR requestor, keyed by requester window id.
//
// Grounded on transport/collect.go's collector.streams map[string]*streamBase
// in the teacher repo — the spec explicitly prefers a hash map here over the
// source's intrusive linked list (spec.md §9), which is exactly the shape
// the teacher's own stream collector already takes.
//
// Table is only ever touched from the owner loop's single goroutine; it
// does not lock internally, and must not be shared across goroutines.
package xfer

import (
	"github.com/emmabastas/libxclip/chunk"
	"github.com/emmabastas/libxclip/xwire"
)

// Record is the per-requestor INCR state. The implicit "AwaitingAck" state
// of spec.md §3 is represented by the record's mere presence in a Table —
// there is no separate state enum (spec.md §9: "a transfer either exists or
// does not"). Slicer is the chunk.Slicer driving this requestor's remaining
// chunks; it is the single source of truth for how much has been sent.
type Record struct {
	Requestor xwire.Window
	Property  xwire.Atom
	Slicer    *chunk.Slicer
}

// BytesSent returns how many payload bytes this requestor has been sent so
// far.
func (r *Record) BytesSent() int { return r.Slicer.Sent() }

// Table maps requestor window id to its active transfer record.
type Table struct {
	records map[xwire.Window]*Record
}

// New returns an empty transfer table.
func New() *Table {
	return &Table{records: make(map[xwire.Window]*Record)}
}

// Find returns the record for requestor, or nil if there is none.
func (t *Table) Find(requestor xwire.Window) *Record {
	return t.records[requestor]
}

// Insert creates a record for requestor, driven by slicer. It panics if one
// already exists — the owner loop (spec.md §4.3(d).4) is required to reject
// a duplicate INCR setup before calling Insert, to preserve the "at most one
// active transfer per requestor" invariant.
func (t *Table) Insert(requestor xwire.Window, property xwire.Atom, slicer *chunk.Slicer) *Record {
	if _, exists := t.records[requestor]; exists {
		panic("xfer: duplicate transfer record for requestor")
	}
	r := &Record{Requestor: requestor, Property: property, Slicer: slicer}
	t.records[requestor] = r
	return r
}

// Remove deletes the record for requestor. It panics if none exists.
func (t *Table) Remove(requestor xwire.Window) {
	if _, exists := t.records[requestor]; !exists {
		panic("xfer: remove of absent transfer record")
	}
	delete(t.records, requestor)
}

// Len returns the number of active transfers.
func (t *Table) Len() int {
	return len(t.records)
}

// Snapshot is a JSON-serializable view of the table for diagnostics,
// marshaled by callers with json-iterator the way the teacher's
// cos.MustMarshal serializes cluster.Snap / DlStatusResp (see
// downloader/notifications.go). Table itself stays free of any
// serialization-library import; Snapshot is the only thing that crosses
// that boundary.
type Snapshot struct {
	Requestor uint32 `json:"requestor"`
	Property  uint32 `json:"property"`
	BytesSent int    `json:"bytes_sent"`
}

// Snapshot returns the current table contents for logging/metrics. Order is
// unspecified, matching spec.md §4.2 ("no ordering is required between
// records").
func (t *Table) Snapshot() []Snapshot {
	out := make([]Snapshot, 0, len(t.records))
	for _, r := range t.records {
		out = append(out, Snapshot{
			Requestor: uint32(r.Requestor),
			Property:  uint32(r.Property),
			BytesSent: r.BytesSent(),
		})
	}
	return out
}
