package xwire

import (
	"fmt"
	"sync"

	"github.com/pkg/errors"
)

// FakeServer is an in-memory stand-in for an X display, shared by any
// number of Fake clients. It implements just enough of the ICCCM selection
// protocol (property storage, PropertyNotify delivery to windows that
// selected PropertyChangeMask, SelectionClear on ownership change) for
// owner and requester to be exercised without a live X server — the same
// "fake the narrow interface" approach as cluster/mock/target_mock.go in
// the teacher repo.
type FakeServer struct {
	mu sync.Mutex

	maxRequestBytes uint32

	atoms    map[string]Atom
	atomName map[Atom]string
	nextAtom Atom

	nextWindow Window
	windows    map[Window]*fakeWindow

	selections map[Atom]Window
}

type fakeWindow struct {
	owner       *Fake
	props       map[Atom]PropertyValue
	subscribers map[*Fake]bool
}

// NewFakeServer creates a server whose MaximumRequestBytes() reports
// maxRequestBytes (already in bytes, not 4-byte units — the fake skips the
// BigRequests-vs-core distinction since it has no wire format to limit).
func NewFakeServer(maxRequestBytes uint32) *FakeServer {
	s := &FakeServer{
		maxRequestBytes: maxRequestBytes,
		atoms:           make(map[string]Atom),
		atomName:        make(map[Atom]string),
		nextAtom:        1,
		nextWindow:      1,
		windows:         make(map[Window]*fakeWindow),
		selections:      make(map[Atom]Window),
	}
	for _, name := range []string{"PRIMARY", "SECONDARY", "CLIPBOARD", "TARGETS", "UTF8_STRING", "INCR", "ATOM", "TIMESTAMP"} {
		_, _ = s.internAtom(name, false)
	}
	return s
}

// NewClient returns a new simulated connection to the server.
func (s *FakeServer) NewClient() *Fake {
	return &Fake{server: s, eventCh: make(chan Event, 4096)}
}

func (s *FakeServer) internAtom(name string, onlyIfExists bool) (Atom, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.atoms[name]; ok {
		return a, nil
	}
	if onlyIfExists {
		return AtomNone, nil
	}
	a := s.nextAtom
	s.nextAtom++
	s.atoms[name] = a
	s.atomName[a] = name
	return a, nil
}

func (s *FakeServer) createWindow(owner *Fake) Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := s.nextWindow
	s.nextWindow++
	s.windows[w] = &fakeWindow{owner: owner, props: make(map[Atom]PropertyValue), subscribers: make(map[*Fake]bool)}
	return w
}

func (s *FakeServer) destroyWindow(win Window) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, win)
}

func (s *FakeServer) selectPropertyChange(c *Fake, win Window) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fw, ok := s.windows[win]
	if !ok {
		return errors.Errorf("xwire/fake: no such window %d", win)
	}
	fw.subscribers[c] = true
	return nil
}

func (s *FakeServer) setSelectionOwner(win Window, selection Atom, when Timestamp) error {
	s.mu.Lock()
	prev, hadPrev := s.selections[selection]
	s.selections[selection] = win
	var notify *Fake
	if hadPrev && prev != WindowNone && prev != win {
		if fw, ok := s.windows[prev]; ok {
			notify = fw.owner
		}
	}
	s.mu.Unlock()
	if notify != nil {
		notify.deliver(SelectionClearEvent{Time: when, Owner: prev, Selection: selection})
	}
	return nil
}

func (s *FakeServer) getSelectionOwner(selection Atom) Window {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selections[selection]
}

func (s *FakeServer) changeProperty(win Window, property, typ Atom, format byte, data []byte) error {
	s.mu.Lock()
	fw, ok := s.windows[win]
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("xwire/fake: no such window %d", win)
	}
	cp := append([]byte(nil), data...)
	fw.props[property] = PropertyValue{Type: typ, Format: format, Value: cp}
	subs := snapshotSubs(fw)
	s.mu.Unlock()
	notifySubs(subs, PropertyNotifyEvent{Window: win, Atom: property, State: PropertyNewValue})
	return nil
}

func (s *FakeServer) getProperty(win Window, property Atom, del bool, longOffset, longLength uint32) (PropertyValue, error) {
	s.mu.Lock()
	fw, ok := s.windows[win]
	if !ok {
		s.mu.Unlock()
		return PropertyValue{}, errors.Errorf("xwire/fake: no such window %d", win)
	}
	pv, ok := fw.props[property]
	if !ok {
		s.mu.Unlock()
		return PropertyValue{Type: AtomNone, Format: 0, Value: nil, BytesAfter: 0}, nil
	}
	off := int(longOffset) * 4
	length := int(longLength) * 4
	if off > len(pv.Value) {
		off = len(pv.Value)
	}
	end := off + length
	if end > len(pv.Value) {
		end = len(pv.Value)
	}
	out := append([]byte(nil), pv.Value[off:end]...)
	bytesAfter := uint32(len(pv.Value) - end)
	result := PropertyValue{Type: pv.Type, Format: pv.Format, Value: out, BytesAfter: bytesAfter}

	var subs []*Fake
	deleted := false
	if del && bytesAfter == 0 {
		delete(fw.props, property)
		subs = snapshotSubs(fw)
		deleted = true
	}
	s.mu.Unlock()
	if deleted {
		notifySubs(subs, PropertyNotifyEvent{Window: win, Atom: property, State: PropertyDelete})
	}
	return result, nil
}

func (s *FakeServer) deleteProperty(win Window, property Atom) error {
	s.mu.Lock()
	fw, ok := s.windows[win]
	if !ok {
		s.mu.Unlock()
		return errors.Errorf("xwire/fake: no such window %d", win)
	}
	_, existed := fw.props[property]
	delete(fw.props, property)
	subs := snapshotSubs(fw)
	s.mu.Unlock()
	if existed {
		notifySubs(subs, PropertyNotifyEvent{Window: win, Atom: property, State: PropertyDelete})
	}
	return nil
}

func (s *FakeServer) convertSelection(requestor Window, selection, target, property Atom, when Timestamp) error {
	s.mu.Lock()
	ownerWin := s.selections[selection]
	var owner *Fake
	if fw, ok := s.windows[ownerWin]; ok {
		owner = fw.owner
	}
	reqFW, reqOK := s.windows[requestor]
	var requestorClient *Fake
	if reqOK {
		requestorClient = reqFW.owner
	}
	s.mu.Unlock()

	if owner == nil {
		if requestorClient != nil {
			requestorClient.deliver(SelectionNotifyEvent{Time: when, Requestor: requestor, Selection: selection, Target: target, Property: AtomNone})
		}
		return nil
	}
	owner.deliver(SelectionRequestEvent{
		Time: when, Owner: ownerWin, Requestor: requestor, Selection: selection, Target: target, Property: property,
	})
	return nil
}

func (s *FakeServer) sendEvent(dest Window, notify SelectionNotifyEvent) error {
	s.mu.Lock()
	fw, ok := s.windows[dest]
	s.mu.Unlock()
	if !ok {
		return errors.Errorf("xwire/fake: no such window %d", dest)
	}
	if fw.owner != nil {
		fw.owner.deliver(notify)
	}
	return nil
}

func snapshotSubs(fw *fakeWindow) []*Fake {
	subs := make([]*Fake, 0, len(fw.subscribers))
	for c := range fw.subscribers {
		subs = append(subs, c)
	}
	return subs
}

func notifySubs(subs []*Fake, ev PropertyNotifyEvent) {
	for _, c := range subs {
		c.deliver(ev)
	}
}

// Fake is one simulated client connection to a FakeServer.
type Fake struct {
	server  *FakeServer
	eventCh chan Event
}

var _ Conn = (*Fake)(nil)

func (c *Fake) deliver(ev Event) {
	select {
	case c.eventCh <- ev:
	default:
		panic(fmt.Sprintf("xwire/fake: event channel full delivering %T, test scenario needs a bigger buffer", ev))
	}
}

func (c *Fake) InternAtom(name string, onlyIfExists bool) (Atom, error) {
	return c.server.internAtom(name, onlyIfExists)
}

func (c *Fake) CreateWindow() (Window, error) {
	return c.server.createWindow(c), nil
}

func (c *Fake) DestroyWindow(win Window) error {
	c.server.destroyWindow(win)
	return nil
}

func (c *Fake) SelectPropertyChange(win Window) error {
	return c.server.selectPropertyChange(c, win)
}

func (c *Fake) SetSelectionOwner(win Window, selection Atom, when Timestamp) error {
	return c.server.setSelectionOwner(win, selection, when)
}

func (c *Fake) GetSelectionOwner(selection Atom) (Window, error) {
	return c.server.getSelectionOwner(selection), nil
}

func (c *Fake) ChangeProperty(win Window, property, typ Atom, format byte, data []byte) error {
	return c.server.changeProperty(win, property, typ, format, data)
}

func (c *Fake) GetProperty(win Window, property Atom, del bool, longOffset, longLength uint32) (PropertyValue, error) {
	return c.server.getProperty(win, property, del, longOffset, longLength)
}

func (c *Fake) DeleteProperty(win Window, property Atom) error {
	return c.server.deleteProperty(win, property)
}

func (c *Fake) ConvertSelection(requestor Window, selection, target, property Atom, when Timestamp) error {
	return c.server.convertSelection(requestor, selection, target, property, when)
}

func (c *Fake) SendEvent(dest Window, propagate bool, notify SelectionNotifyEvent) error {
	return c.server.sendEvent(dest, notify)
}

func (c *Fake) NextEvent() (Event, error) {
	ev, ok := <-c.eventCh
	if !ok {
		return nil, errors.New("xwire/fake: connection closed")
	}
	return ev, nil
}

func (c *Fake) PollEvent() (Event, bool, error) {
	select {
	case ev, ok := <-c.eventCh:
		if !ok {
			return nil, false, errors.New("xwire/fake: connection closed")
		}
		return ev, true, nil
	default:
		return nil, false, nil
	}
}

func (c *Fake) Sync() error { return nil }

func (c *Fake) MaximumRequestBytes() (uint32, error) {
	return c.server.maxRequestBytes, nil
}

func (c *Fake) Close() error {
	close(c.eventCh)
	return nil
}
