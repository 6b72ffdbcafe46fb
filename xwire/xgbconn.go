package xwire

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/bigreq"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/pkg/errors"
)

// xgbConn is the real Conn, backed by a BurntSushi/xgb display connection.
// Its call shapes (ConvertSelection -> wait -> GetProperty loop,
// SelectionNotifyEvent construction) are grounded on other_examples/e8091a29 (cogentcore's x11driver clip.go).
type xgbConn struct {
	conn   *xgb.Conn
	root   xproto.Window
	screen int
}

// Dial opens a connection to the X display named by the DISPLAY
// environment variable (or display, if non-empty).
func Dial(display string) (Conn, error) {
	conn, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, errors.Wrap(err, "xwire: connect to X display")
	}
	setup := xproto.Setup(conn)
	if len(setup.Roots) == 0 {
		conn.Close()
		return nil, errors.New("xwire: server advertised zero screens")
	}
	return &xgbConn{conn: conn, root: setup.Roots[0].Root, screen: 0}, nil
}

func (c *xgbConn) InternAtom(name string, onlyIfExists bool) (Atom, error) {
	reply, err := xproto.InternAtom(c.conn, onlyIfExists, uint16(len(name)), name).Reply()
	if err != nil {
		return AtomNone, errors.Wrapf(err, "xwire: intern atom %q", name)
	}
	return reply.Atom, nil
}

func (c *xgbConn) CreateWindow() (Window, error) {
	wid, err := xproto.NewWindowId(c.conn)
	if err != nil {
		return WindowNone, errors.Wrap(err, "xwire: allocate window id")
	}
	err = xproto.CreateWindowChecked(
		c.conn, 0, wid, c.root,
		-1, -1, 1, 1, 0,
		xproto.WindowClassInputOnly, 0,
		0, nil,
	).Check()
	if err != nil {
		return WindowNone, errors.Wrap(err, "xwire: create window")
	}
	return wid, nil
}

func (c *xgbConn) DestroyWindow(win Window) error {
	return errors.Wrap(xproto.DestroyWindowChecked(c.conn, win).Check(), "xwire: destroy window")
}

func (c *xgbConn) SelectPropertyChange(win Window) error {
	err := xproto.ChangeWindowAttributesChecked(
		c.conn, win, xproto.CwEventMask,
		[]uint32{uint32(xproto.EventMaskPropertyChange)},
	).Check()
	return errors.Wrap(err, "xwire: select property-change events")
}

func (c *xgbConn) SetSelectionOwner(win Window, selection Atom, when Timestamp) error {
	err := xproto.SetSelectionOwnerChecked(c.conn, win, selection, when).Check()
	return errors.Wrap(err, "xwire: set selection owner")
}

func (c *xgbConn) GetSelectionOwner(selection Atom) (Window, error) {
	reply, err := xproto.GetSelectionOwner(c.conn, selection).Reply()
	if err != nil {
		return WindowNone, errors.Wrap(err, "xwire: get selection owner")
	}
	return reply.Owner, nil
}

func (c *xgbConn) ChangeProperty(win Window, property, typ Atom, format byte, data []byte) error {
	elemSize := int(format) / 8
	if elemSize == 0 {
		elemSize = 1
	}
	n := len(data) / elemSize
	err := xproto.ChangePropertyChecked(
		c.conn, xproto.PropModeReplace, win, property, typ, format, uint32(n), data,
	).Check()
	return errors.Wrap(err, "xwire: change property")
}

func (c *xgbConn) GetProperty(win Window, property Atom, del bool, longOffset, longLength uint32) (PropertyValue, error) {
	reply, err := xproto.GetProperty(c.conn, del, win, property, xproto.AtomAny, longOffset, longLength).Reply()
	if err != nil {
		return PropertyValue{}, errors.Wrap(err, "xwire: get property")
	}
	return PropertyValue{
		Type:       reply.Type,
		Format:     reply.Format,
		Value:      reply.Value,
		BytesAfter: reply.BytesAfter,
	}, nil
}

func (c *xgbConn) DeleteProperty(win Window, property Atom) error {
	err := xproto.DeletePropertyChecked(c.conn, win, property).Check()
	return errors.Wrap(err, "xwire: delete property")
}

func (c *xgbConn) ConvertSelection(requestor Window, selection, target, property Atom, when Timestamp) error {
	err := xproto.ConvertSelectionChecked(c.conn, requestor, selection, target, property, when).Check()
	return errors.Wrap(err, "xwire: convert selection")
}

func (c *xgbConn) SendEvent(dest Window, propagate bool, notify SelectionNotifyEvent) error {
	ev := xproto.SelectionNotifyEvent{
		Time:      notify.Time,
		Requestor: notify.Requestor,
		Selection: notify.Selection,
		Target:    notify.Target,
		Property:  notify.Property,
	}
	err := xproto.SendEventChecked(
		c.conn, propagate, dest, uint32(xproto.EventMaskNoEvent), string(ev.Bytes()),
	).Check()
	return errors.Wrap(err, "xwire: send SelectionNotify")
}

func (c *xgbConn) NextEvent() (Event, error) {
	ev, err := c.conn.WaitForEvent()
	if err != nil {
		return nil, errors.Wrap(err, "xwire: wait for event")
	}
	return translateEvent(ev), nil
}

func (c *xgbConn) PollEvent() (Event, bool, error) {
	ev, xerr := c.conn.PollForEvent()
	if xerr != nil {
		return nil, false, errors.Wrap(xerr, "xwire: poll for event")
	}
	if ev == nil {
		return nil, false, nil
	}
	return translateEvent(ev), true, nil
}

func (c *xgbConn) Sync() error {
	_, err := xproto.GetInputFocus(c.conn).Reply()
	return errors.Wrap(err, "xwire: sync")
}

func (c *xgbConn) MaximumRequestBytes() (uint32, error) {
	const unitBytes = 4
	if err := bigreq.Init(c.conn); err == nil {
		if reply, err := bigreq.Enable(c.conn).Reply(); err == nil {
			return reply.MaximumRequestLength * unitBytes, nil
		}
	}
	setup := xproto.Setup(c.conn)
	return uint32(setup.MaximumRequestLength) * unitBytes, nil
}

func (c *xgbConn) Close() error {
	c.conn.Close()
	return nil
}

func translateEvent(ev xgb.Event) Event {
	switch e := ev.(type) {
	case xproto.SelectionRequestEvent:
		return SelectionRequestEvent{
			Time:      e.Time,
			Owner:     e.Owner,
			Requestor: e.Requestor,
			Selection: e.Selection,
			Target:    e.Target,
			Property:  e.Property,
		}
	case xproto.SelectionNotifyEvent:
		return SelectionNotifyEvent{
			Time:      e.Time,
			Requestor: e.Requestor,
			Selection: e.Selection,
			Target:    e.Target,
			Property:  e.Property,
		}
	case xproto.SelectionClearEvent:
		return SelectionClearEvent{
			Time:      e.Time,
			Owner:     e.Owner,
			Selection: e.Selection,
		}
	case xproto.PropertyNotifyEvent:
		state := PropertyNewValue
		if e.State == xproto.PropertyDelete {
			state = PropertyDelete
		}
		return PropertyNotifyEvent{
			Time:   e.Time,
			Window: e.Window,
			Atom:   e.Atom,
			State:  state,
		}
	default:
		return OtherEvent{Name: fmt.Sprintf("%T", ev)}
	}
}
