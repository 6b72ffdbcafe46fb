// Package owner implements the ICCCM-compliant selection-owner state
// machine: spec.md §4.3, the protocol core of this module.
//
// Structurally grounded on transport/collect.go's collector.run in the
// teacher repo — a single goroutine selecting over one event source,
// holding per-peer state in a map (xfer.Table stands in for
// collector.streams), logged with the same nlog/glog idiom as
// reb/resilver.go.
package owner

import (
	"math"

	jsoniter "github.com/json-iterator/go"
	"github.com/teris-io/shortid"

	"github.com/emmabastas/libxclip/chunk"
	"github.com/emmabastas/libxclip/internal/debug"
	"github.com/emmabastas/libxclip/internal/nlog"
	"github.com/emmabastas/libxclip/internal/xerrors"
	"github.com/emmabastas/libxclip/owner/metrics"
	"github.com/emmabastas/libxclip/xclipcfg"
	"github.com/emmabastas/libxclip/xfer"
	"github.com/emmabastas/libxclip/xwire"
)

var snapshotJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// Loop is one owner-side instance: one selection, one payload, one window.
// It is not safe for concurrent use; it is meant to run as the entire body
// of a single worker process (or goroutine, see internal/workerproc).
type Loop struct {
	conn    xwire.Conn
	sel     xwire.Atom
	payload []byte

	atomTargets xwire.Atom
	atomUTF8    xwire.Atom
	atomIncr    xwire.Atom

	window    xwire.Window
	acquired  xwire.Timestamp
	chunkSize int

	table   *xfer.Table
	metrics *metrics.Metrics
	runID   string
	cfg     *xclipcfg.Config
}

// New creates a Loop for selection, advertising payload over it. Nothing on
// the wire happens until Setup is called. A nil cfg falls back to
// xclipcfg.New()'s defaults.
func New(conn xwire.Conn, selection xwire.Atom, payload []byte, metricsOpt *metrics.Metrics, cfg *xclipcfg.Config) *Loop {
	runID, err := shortid.Generate()
	if err != nil {
		runID = "unknown"
	}
	if cfg == nil {
		cfg = xclipcfg.New()
	}
	return &Loop{
		conn:    conn,
		sel:     selection,
		payload: payload,
		table:   xfer.New(),
		metrics: metricsOpt,
		runID:   runID,
		cfg:     cfg,
	}
}

// Setup acquires the selection and computes chunk_size, per spec.md §4.3
// "Setup" steps 1-3. It does not yet signal the host (step 4 is the
// workerproc ready handshake, layered on top of Loop so Loop itself stays
// free of any pipe/process concern).
func (l *Loop) Setup() error {
	var err error
	if l.atomTargets, err = l.conn.InternAtom("TARGETS", false); err != nil {
		return xerrors.Wrap(err, "owner: intern TARGETS")
	}
	if l.atomUTF8, err = l.conn.InternAtom("UTF8_STRING", false); err != nil {
		return xerrors.Wrap(err, "owner: intern UTF8_STRING")
	}
	if l.atomIncr, err = l.conn.InternAtom("INCR", false); err != nil {
		return xerrors.Wrap(err, "owner: intern INCR")
	}

	l.window, err = l.conn.CreateWindow()
	if err != nil {
		return xerrors.Wrap(err, "owner: create invisible window")
	}

	// Select property-change events on our own window before acquiring the
	// selection, then bump a scratch property on ourselves: the
	// PropertyNotify the server reflects back carries a real server
	// timestamp we can use both to acquire the selection and as the
	// ownership-window baseline for rejecting stale SelectionRequests
	// (spec.md §9's third open question, resolved in DESIGN.md). This is
	// the standard ICCCM trick for turning "I want a real timestamp, not
	// CurrentTime" into one round trip.
	if err := l.conn.SelectPropertyChange(l.window); err != nil {
		return xerrors.Wrap(err, "owner: select property-change events")
	}
	acqTimeAtom, err := l.conn.InternAtom("LIBXCLIP_ACQUIRE_TIME", false)
	if err != nil {
		return xerrors.Wrap(err, "owner: intern acquire-time atom")
	}
	if err := l.conn.ChangeProperty(l.window, acqTimeAtom, atomAtomType, 32, encodeUint32(0)); err != nil {
		return xerrors.Wrap(err, "owner: bump acquire-time property")
	}
	acquired, err := l.waitOwnTimestamp()
	if err != nil {
		return xerrors.Wrap(err, "owner: acquire real timestamp")
	}
	l.acquired = acquired

	if err := l.conn.SetSelectionOwner(l.window, l.sel, l.acquired); err != nil {
		return xerrors.Wrap(err, "owner: set selection owner")
	}

	owner, err := l.conn.GetSelectionOwner(l.sel)
	if err != nil {
		return xerrors.Wrap(err, "owner: read back selection owner")
	}
	if owner != l.window {
		return xerrors.Wrap(xerrors.ErrSetupFailure, "owner: ownership lost immediately after acquisition")
	}

	maxReq, err := l.conn.MaximumRequestBytes()
	if err != nil {
		return xerrors.Wrap(err, "owner: query maximum request size")
	}
	l.chunkSize = chunk.SizeForWithFloor(maxReq, l.cfg.ChunkSizeFloor)

	nlog.Infof("owner[%s]: acquired selection, chunk_size=%d", l.runID, l.chunkSize)
	return nil
}

// waitOwnTimestamp blocks for the PropertyNotify our own acquire-time bump
// produces and returns its server timestamp. Called only during Setup,
// before any peer could plausibly be racing us for window/property
// activity, so the first event really is ours.
func (l *Loop) waitOwnTimestamp() (xwire.Timestamp, error) {
	ev, err := l.conn.NextEvent()
	if err != nil {
		return 0, err
	}
	pn, ok := ev.(xwire.PropertyNotifyEvent)
	if !ok || pn.Window != l.window {
		return 0, xerrors.Wrap(xerrors.ErrSetupFailure, "owner: expected our own PropertyNotify while acquiring a timestamp")
	}
	return pn.Time, nil
}

// Window returns the invisible window the loop acquired the selection
// under (used by tests and diagnostics).
func (l *Loop) Window() xwire.Window { return l.window }

// ChunkSize returns the computed INCR chunk size.
func (l *Loop) ChunkSize() int { return l.chunkSize }

// Snapshot returns the current transfer-table state for diagnostics.
func (l *Loop) Snapshot() []xfer.Snapshot { return l.table.Snapshot() }

// snapshotJSON marshals the current transfer table the way the teacher's
// cos.MustMarshal serializes cluster.Snap for a stats/diagnostics log line
// (see downloader/notifications.go). Marshal failures are not expected for
// this shape; they fall back to a literal error string rather than panic a
// logging call site.
func (l *Loop) snapshotJSON() string {
	b, err := snapshotJSON.Marshal(l.table.Snapshot())
	if err != nil {
		return "<snapshot marshal error: " + err.Error() + ">"
	}
	return string(b)
}

// Run pulls events until the loop terminates: SelectionClear (returns nil,
// terminal per the open-question resolution in DESIGN.md — an in-flight
// INCR transfer does not survive) or an unrecoverable wire error (returns a
// non-nil error wrapping xerrors.ErrFatal). The caller (internal/workerproc)
// maps a nil return to a clean exit and a non-nil return to a non-zero one.
func (l *Loop) Run() error {
	for {
		ev, err := l.conn.NextEvent()
		if err != nil {
			return xerrors.Wrap(xerrors.ErrFatal, "owner: event source failed: "+err.Error())
		}
		terminal, err := l.dispatch(ev)
		if err != nil {
			return xerrors.Wrap(xerrors.ErrFatal, "owner: handling event failed: "+err.Error())
		}
		if terminal {
			return nil
		}
	}
}

// dispatch classifies and handles one event. Every branch is exclusive per
// spec.md §4.3; unmatched events are logged and discarded.
func (l *Loop) dispatch(ev xwire.Event) (terminal bool, err error) {
	switch e := ev.(type) {
	case xwire.SelectionClearEvent:
		return l.onSelectionClear(e)
	case xwire.SelectionRequestEvent:
		return false, l.onSelectionRequest(e)
	case xwire.PropertyNotifyEvent:
		return false, l.onPropertyNotify(e)
	default:
		nlog.Infof("owner[%s]: discarding unhandled event %T", l.runID, ev)
		return false, nil
	}
}

func (l *Loop) onSelectionClear(e xwire.SelectionClearEvent) (bool, error) {
	nlog.Infof("owner[%s]: lost selection ownership, terminating", l.runID)
	return true, nil
}

func (l *Loop) onSelectionRequest(e xwire.SelectionRequestEvent) error {
	if e.Time != xwire.TimeCurrentTime && e.Time < l.acquired {
		nlog.Warningf("owner[%s]: refusing stale SelectionRequest (time=%d, acquired=%d)", l.runID, e.Time, l.acquired)
		return l.refuse(e)
	}

	switch e.Target {
	case l.atomTargets:
		return l.replyTargets(e)
	case l.atomUTF8:
		if chunk.IsLarge(len(l.payload), l.chunkSize) {
			return l.startIncr(e)
		}
		return l.replySingleShot(e)
	default:
		return l.refuse(e)
	}
}

func (l *Loop) requestedProperty(e xwire.SelectionRequestEvent) xwire.Atom {
	if e.Property != xwire.AtomNone {
		return e.Property
	}
	return e.Target
}

// replyTargets handles spec.md §4.3(b).
func (l *Loop) replyTargets(e xwire.SelectionRequestEvent) error {
	prop := l.requestedProperty(e)
	data := encodeAtoms([]xwire.Atom{l.atomTargets, l.atomUTF8})
	if err := l.conn.ChangeProperty(e.Requestor, prop, atomAtomType, 32, data); err != nil {
		return l.failTransfer(e.Requestor, err)
	}
	return l.notify(e, prop)
}

// replySingleShot handles spec.md §4.3(c).
func (l *Loop) replySingleShot(e xwire.SelectionRequestEvent) error {
	prop := l.requestedProperty(e)
	if err := l.conn.ChangeProperty(e.Requestor, prop, l.atomUTF8, 8, l.payload); err != nil {
		return l.failTransfer(e.Requestor, err)
	}
	if l.metrics != nil {
		l.metrics.BytesSent.Add(float64(len(l.payload)))
		l.metrics.TransfersCompleted.Inc()
	}
	return l.notify(e, prop)
}

// startIncr handles spec.md §4.3(d).
func (l *Loop) startIncr(e xwire.SelectionRequestEvent) error {
	prop := l.requestedProperty(e)
	if l.table.Find(e.Requestor) != nil {
		nlog.Warningf("owner[%s]: refusing concurrent INCR request from requestor already in flight", l.runID)
		return l.refuse(e)
	}

	lowerBound := len(l.payload)
	if lowerBound > math.MaxInt32 {
		lowerBound = math.MaxInt32
	}
	if err := l.conn.ChangeProperty(e.Requestor, prop, l.atomIncr, 32, encodeUint32(uint32(lowerBound))); err != nil {
		return l.failTransfer(e.Requestor, err)
	}
	if err := l.conn.SelectPropertyChange(e.Requestor); err != nil {
		return l.failTransfer(e.Requestor, err)
	}
	if err := l.notify(e, prop); err != nil {
		return err
	}

	l.table.Insert(e.Requestor, prop, chunk.Of(l.payload, l.chunkSize))
	if l.metrics != nil {
		l.metrics.TransfersActive.Set(float64(l.table.Len()))
	}
	return nil
}

// refuse handles spec.md §4.3(e) and stale/duplicate refusals.
func (l *Loop) refuse(e xwire.SelectionRequestEvent) error {
	return l.conn.SendEvent(e.Requestor, false, xwire.SelectionNotifyEvent{
		Time: e.Time, Requestor: e.Requestor, Selection: e.Selection, Target: e.Target, Property: xwire.AtomNone,
	})
}

func (l *Loop) notify(e xwire.SelectionRequestEvent, prop xwire.Atom) error {
	if err := l.conn.Sync(); err != nil {
		return l.failTransfer(e.Requestor, err)
	}
	return l.conn.SendEvent(e.Requestor, false, xwire.SelectionNotifyEvent{
		Time: e.Time, Requestor: e.Requestor, Selection: e.Selection, Target: e.Target, Property: prop,
	})
}

// onPropertyNotify handles spec.md §4.3(f)/(g).
func (l *Loop) onPropertyNotify(e xwire.PropertyNotifyEvent) error {
	if e.State == xwire.PropertyNewValue {
		return nil
	}
	rec := l.table.Find(e.Window)
	if rec == nil {
		return nil
	}
	return l.continueIncr(rec)
}

func (l *Loop) continueIncr(rec *xfer.Record) error {
	if nlog.FastV(nlog.VDiagnostic) {
		nlog.Infof("owner[%s]: transfer snapshot %s", l.runID, l.snapshotJSON())
	}

	data := rec.Slicer.Next()
	terminal := len(data) == 0

	if err := l.conn.ChangeProperty(rec.Requestor, rec.Property, l.atomUTF8, 8, data); err != nil {
		return l.failTransferRecord(rec, err)
	}
	if err := l.conn.Sync(); err != nil {
		return l.failTransferRecord(rec, err)
	}
	if err := l.conn.SendEvent(rec.Requestor, false, xwire.SelectionNotifyEvent{
		Time: l.acquired, Requestor: rec.Requestor, Selection: l.sel, Target: l.atomUTF8, Property: rec.Property,
	}); err != nil {
		return l.failTransferRecord(rec, err)
	}

	if l.metrics != nil {
		l.metrics.BytesSent.Add(float64(len(data)))
	}
	if terminal {
		l.table.Remove(rec.Requestor)
		if l.metrics != nil {
			l.metrics.TransfersCompleted.Inc()
			l.metrics.TransfersActive.Set(float64(l.table.Len()))
		}
	} else {
		debug.Assert(rec.Slicer.Sent() <= rec.Slicer.Len())
	}
	return nil
}

// failTransfer handles spec.md §4.3's "Failure policy inside the loop": an
// X error from a property write indicates the peer window was destroyed
// mid-transfer; reply with property=None when still possible and drop any
// associated transfer record. It never propagates the wire error up as
// fatal — only out-of-memory/display-fatal conditions do that, and those
// surface through Run's NextEvent error path instead.
func (l *Loop) failTransfer(requestor xwire.Window, cause error) error {
	nlog.Warningf("owner[%s]: property write to requestor %d failed, refusing: %v", l.runID, requestor, cause)
	if rec := l.table.Find(requestor); rec != nil {
		l.table.Remove(requestor)
		if l.metrics != nil {
			l.metrics.TransfersActive.Set(float64(l.table.Len()))
		}
	}
	_ = l.conn.SendEvent(requestor, false, xwire.SelectionNotifyEvent{Property: xwire.AtomNone, Requestor: requestor})
	return nil
}

func (l *Loop) failTransferRecord(rec *xfer.Record, cause error) error {
	return l.failTransfer(rec.Requestor, cause)
}

const atomAtomType = xwire.Atom(4) // XA_ATOM, per the core X11 predefined-atom table

func encodeAtoms(atoms []xwire.Atom) []byte {
	out := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		putUint32(out[i*4:], uint32(a))
	}
	return out
}

func encodeUint32(v uint32) []byte {
	out := make([]byte, 4)
	putUint32(out, v)
	return out
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
