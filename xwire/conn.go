// Package xwire is the narrow view of an X11 display that the rest of
// libxclip depends on: atom interning, property read/write, selection
// ownership, an event source, and send-event. Only this package opens or
// drives a BurntSushi/xgb connection (clip imports xgb/xproto solely to name
// xproto.Atom in Targets' signature), so owner and requester can be tested
// against xwire.Fake without a live display.
package xwire

import (
	"time"

	"github.com/BurntSushi/xgb/xproto"
)

// Window, Atom and Timestamp are re-exported xproto types. The wire
// abstraction doesn't gain anything by wrapping these in new types, and
// doing so would force every caller to convert back and forth at the
// boundary.
type (
	Window    = xproto.Window
	Atom      = xproto.Atom
	Timestamp = xproto.Timestamp
)

// PropertyState mirrors the two xproto.PropertyNotifyEvent states this
// engine cares about.
type PropertyState byte

const (
	PropertyNewValue PropertyState = iota
	PropertyDelete
)

// Well-known window/atom sentinels, named the way xproto names them.
const (
	WindowNone = xproto.Window(0)
	AtomNone   = xproto.Atom(0)

	// TimeCurrentTime asks the server to stamp the request with its own
	// current time.
	TimeCurrentTime = xproto.Timestamp(0)
)

// PropertyValue is the result of reading a property off a window.
type PropertyValue struct {
	Type       Atom
	Format     byte // 8, 16 or 32
	Value      []byte
	BytesAfter uint32 // non-zero means the read didn't consume the whole property
}

// SelectionRequestEvent is sent to the selection owner by a would-be reader.
type SelectionRequestEvent struct {
	Time      Timestamp
	Owner     Window
	Requestor Window
	Selection Atom
	Target    Atom
	// Property is the destination property the requestor asks the owner to
	// write to. It may be AtomNone on pre-ICCCM clients; the owner is
	// expected to fall back to Target in that case.
	Property Atom
}

// SelectionNotifyEvent is the owner's reply to a SelectionRequestEvent, or
// the server's delivery of that reply back to the requestor.
type SelectionNotifyEvent struct {
	Time      Timestamp
	Requestor Window
	Selection Atom
	Target    Atom
	// Property is AtomNone on refusal.
	Property Atom
}

// SelectionClearEvent tells the current owner that another client has taken
// the selection.
type SelectionClearEvent struct {
	Time      Timestamp
	Owner     Window
	Selection Atom
}

// PropertyNotifyEvent reports a property change on one of our windows.
type PropertyNotifyEvent struct {
	Time   Timestamp
	Window Window
	Atom   Atom
	State  PropertyState
}

// OtherEvent stands in for anything the engine doesn't classify; the owner
// loop logs and discards these per spec.
type OtherEvent struct {
	Name string
}

// Event is the sum type of everything NextEvent/PollEvent can hand back.
type Event interface {
	isXclipEvent()
}

func (SelectionRequestEvent) isXclipEvent() {}
func (SelectionNotifyEvent) isXclipEvent()  {}
func (SelectionClearEvent) isXclipEvent()   {}
func (PropertyNotifyEvent) isXclipEvent()   {}
func (OtherEvent) isXclipEvent()            {}

// Conn is the complete surface the owner event loop and requester engine
// need from an X display. A real implementation wraps xgb/xproto
// (xgbconn.go); tests use the in-memory Fake (fake.go).
type Conn interface {
	// InternAtom returns the atom for name, creating it unless
	// onlyIfExists is set and it doesn't exist yet.
	InternAtom(name string, onlyIfExists bool) (Atom, error)

	// CreateWindow makes a new, unmapped (invisible) window suitable for
	// owning a selection or receiving SelectionNotify, and returns its id.
	CreateWindow() (Window, error)

	// DestroyWindow releases a window created with CreateWindow.
	DestroyWindow(win Window) error

	// SelectPropertyChange arranges for PropertyNotifyEvent to be
	// delivered for changes to win's properties.
	SelectPropertyChange(win Window) error

	// SetSelectionOwner claims (or releases, with win == WindowNone)
	// ownership of selection.
	SetSelectionOwner(win Window, selection Atom, when Timestamp) error

	// GetSelectionOwner returns the window currently owning selection, or
	// WindowNone.
	GetSelectionOwner(selection Atom) (Window, error)

	// ChangeProperty replaces (in full) the named property on win.
	ChangeProperty(win Window, property, typ Atom, format byte, data []byte) error

	// GetProperty reads up to longLength 4-byte units of property,
	// starting at longOffset 4-byte units in. When del is true the server
	// deletes the property after a read that consumes it entirely (the
	// ICCCM "delete mode" read used by both INCR acknowledgement and the
	// requester's consume-on-read semantics).
	GetProperty(win Window, property Atom, del bool, longOffset, longLength uint32) (PropertyValue, error)

	// DeleteProperty removes a property outright (used by the requester to
	// clean up its scratch property on every exit path; INCR chunks are
	// acked by delete-mode GetProperty reads instead).
	DeleteProperty(win Window, property Atom) error

	// ConvertSelection asks the current owner of selection to convert it to
	// target and deposit the result in property on requestor.
	ConvertSelection(requestor Window, selection, target, property Atom, when Timestamp) error

	// SendEvent delivers a SelectionNotifyEvent to dest (ICCCM never asks
	// owners to send anything else via SendEvent in the subset this engine
	// implements).
	SendEvent(dest Window, propagate bool, notify SelectionNotifyEvent) error

	// NextEvent blocks until an event arrives.
	NextEvent() (Event, error)

	// PollEvent returns immediately: ok is false if nothing was queued.
	PollEvent() (ev Event, ok bool, err error)

	// Sync flushes queued requests and waits for the server to process
	// them, per the "write property, then notify, then flush" ordering
	// rule in spec.md §4.3.
	Sync() error

	// MaximumRequestBytes returns the server's maximum request size in
	// bytes, preferring the BigRequests-extended value when available.
	MaximumRequestBytes() (uint32, error)

	// Close releases the display connection.
	Close() error
}

// Now is a clock function type. The requester engine does not take one: its
// deadlines come from context.WithTimeout on the real clock.
type Now func() time.Time
