// Package requester implements the client-side INCR reassembler and the
// ConvertSelection/SelectionNotify handshake of spec.md §4.4.
//
// Structurally grounded on other_examples/e8091a29 (cogentcore's
// x11driver clip.go Read method: ConvertSelection, wait for
// SelectionNotify, then a GetProperty loop keyed on BytesAfter), with the
// deadline-bounded poll loop grounded on
// other_examples/0056489e_Surva51-go-clipsync's Poll client.
package requester

import (
	"context"
	"time"

	"github.com/emmabastas/libxclip/internal/nlog"
	"github.com/emmabastas/libxclip/internal/xerrors"
	"github.com/emmabastas/libxclip/xclipcfg"
	"github.com/emmabastas/libxclip/xwire"
)

// Options configures one Get/Targets call. The zero value is not valid:
// Selection (and, for Get, Target) must be set by the caller; clip.Get and
// clip.Targets fill them from their CLIPBOARD/UTF8_STRING defaults.
type Options struct {
	Selection xwire.Atom
	Target    xwire.Atom
	// Timeout of zero means wait indefinitely, per spec.md §6.
	Timeout time.Duration
	// Config is optional; a nil Config falls back to xclipcfg.New()'s
	// defaults.
	Config *xclipcfg.Config
}

// Get resolves the current owner of opts.Selection, converts it to
// opts.Target, and returns the resulting bytes (or a typed error from
// internal/xerrors: ErrNoOwner, ErrTargetRefused, ErrTimeout,
// ErrBadSelection).
func Get(conn xwire.Conn, opts Options) ([]byte, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = xclipcfg.New()
	}

	if ok, err := isKnownSelection(conn, opts.Selection); err != nil {
		return nil, err
	} else if !ok {
		return nil, xerrors.ErrBadSelection
	}

	owner, err := conn.GetSelectionOwner(opts.Selection)
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: get selection owner")
	}
	if owner == xwire.WindowNone {
		return nil, xerrors.ErrNoOwner
	}

	win, err := conn.CreateWindow()
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: create scratch window")
	}
	defer conn.DestroyWindow(win)

	if err := conn.SelectPropertyChange(win); err != nil {
		return nil, xerrors.Wrap(err, "requester: select property-change events")
	}

	property, err := conn.InternAtom(cfg.ScratchAtomName, false)
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: intern scratch property")
	}
	// The scratch property is scoped to this call: release it on every
	// exit path, including a timeout, per spec.md §5 ("scoped to one call
	// and released before return on every exit path").
	defer func() { _ = conn.DeleteProperty(win, property) }()

	ctx := context.Background()
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := conn.ConvertSelection(win, opts.Selection, opts.Target, property, xwire.TimeCurrentTime); err != nil {
		return nil, xerrors.Wrap(err, "requester: convert selection")
	}
	if err := conn.Sync(); err != nil {
		return nil, xerrors.Wrap(err, "requester: flush ConvertSelection")
	}

	notify, err := waitSelectionNotify(ctx, conn, win, opts.Selection, opts.Target, cfg.PollInterval)
	if err != nil {
		return nil, err
	}
	if notify.Property == xwire.AtomNone {
		return nil, xerrors.ErrTargetRefused
	}

	incrAtom, err := conn.InternAtom("INCR", false)
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: intern INCR")
	}
	return readSelection(ctx, conn, win, notify.Property, incrAtom, cfg.PollInterval)
}

// Targets is Get with the target fixed to TARGETS, decoding the resulting
// format-32 atom array back into a slice of atoms (spec.md §6).
func Targets(conn xwire.Conn, opts Options) ([]xwire.Atom, error) {
	targetsAtom, err := conn.InternAtom("TARGETS", false)
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: intern TARGETS")
	}
	o := opts
	o.Target = targetsAtom
	data, err := Get(conn, o)
	if err != nil {
		return nil, err
	}
	return decodeAtoms(data), nil
}

// readSelection reads the property SelectionNotify pointed at, entering the
// INCR receive loop if its type is INCR (spec.md §4.4 step 6), or returning
// it verbatim otherwise (step 7). An empty property read is a legal,
// successful empty payload.
func readSelection(ctx context.Context, conn xwire.Conn, win xwire.Window, property, incrAtom xwire.Atom, interval time.Duration) ([]byte, error) {
	// Reading in delete mode both consumes the value and — once the whole
	// property has been read — deletes it. For the INCR advertisement
	// (a single 32-bit size value) that delete IS the ack spec.md §4.4 step 6
	// calls for; no separate DeleteProperty call is needed.
	pv, err := conn.GetProperty(win, property, true, 0, maxLongLength)
	if err != nil {
		return nil, xerrors.Wrap(err, "requester: read selection property")
	}
	if pv.Type != incrAtom {
		return pv.Value, nil
	}

	nlog.Infof("requester: INCR transfer starting")
	var buf []byte
	for {
		if _, err := waitPropertyNewValue(ctx, conn, win, property, interval); err != nil {
			return nil, err
		}
		chunk, err := conn.GetProperty(win, property, true, 0, maxLongLength)
		if err != nil {
			return nil, xerrors.Wrap(err, "requester: read INCR chunk")
		}
		if len(chunk.Value) == 0 {
			return buf, nil
		}
		buf = append(buf, chunk.Value...)
	}
}

// maxLongLength is large enough to read any chunk this engine's own owner
// side ever writes (chunk.MinSize is 4096 bytes; this is comfortably above
// any realistic server-imposed request size) in a single GetProperty call.
const maxLongLength = 1 << 22 // 4-byte units => 16 MiB

func waitSelectionNotify(ctx context.Context, conn xwire.Conn, win xwire.Window, selection, target xwire.Atom, interval time.Duration) (xwire.SelectionNotifyEvent, error) {
	ev, err := pollUntil(ctx, conn, interval, func(ev xwire.Event) (xwire.SelectionNotifyEvent, bool) {
		sn, ok := ev.(xwire.SelectionNotifyEvent)
		if !ok || sn.Selection != selection || sn.Target != target {
			return xwire.SelectionNotifyEvent{}, false
		}
		return sn, true
	})
	return ev, err
}

func waitPropertyNewValue(ctx context.Context, conn xwire.Conn, win xwire.Window, property xwire.Atom, interval time.Duration) (xwire.PropertyNotifyEvent, error) {
	return pollUntil(ctx, conn, interval, func(ev xwire.Event) (xwire.PropertyNotifyEvent, bool) {
		pn, ok := ev.(xwire.PropertyNotifyEvent)
		if !ok || pn.Window != win || pn.Atom != property || pn.State != xwire.PropertyNewValue {
			return xwire.PropertyNotifyEvent{}, false
		}
		return pn, true
	})
}

// pollUntil is the deadline-based event pump spec.md §4.4 calls for: poll
// with a decreasing time budget rather than blocking indefinitely, so a
// caller-supplied timeout is always honored even against events that never
// arrive. Non-matching events are discarded, as the owner loop discards
// ones it doesn't classify.
func pollUntil[T any](ctx context.Context, conn xwire.Conn, interval time.Duration, match func(xwire.Event) (T, bool)) (T, error) {
	var zero T
	for {
		select {
		case <-ctx.Done():
			return zero, xerrors.ErrTimeout
		default:
		}
		ev, ok, err := conn.PollEvent()
		if err != nil {
			return zero, xerrors.Wrap(err, "requester: poll for event")
		}
		if !ok {
			time.Sleep(interval)
			continue
		}
		if result, matched := match(ev); matched {
			return result, nil
		}
	}
}

func isKnownSelection(conn xwire.Conn, selection xwire.Atom) (bool, error) {
	for _, name := range []string{"PRIMARY", "SECONDARY", "CLIPBOARD"} {
		a, err := conn.InternAtom(name, false)
		if err != nil {
			return false, xerrors.Wrap(err, "requester: intern well-known selection atom")
		}
		if a == selection {
			return true, nil
		}
	}
	return false, nil
}

func decodeAtoms(data []byte) []xwire.Atom {
	n := len(data) / 4
	out := make([]xwire.Atom, 0, n)
	for i := 0; i < n; i++ {
		off := i * 4
		v := uint32(data[off]) | uint32(data[off+1])<<8 | uint32(data[off+2])<<16 | uint32(data[off+3])<<24
		out = append(out, xwire.Atom(v))
	}
	return out
}
