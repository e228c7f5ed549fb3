package session

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	central "github.com/rigado/blecentral"
)

// Session tracks one peripheral from the connection attempt until teardown.
//
// The embedded mutex serialises transitions. Mutating methods require the
// caller to hold it; State and Identity are readable without it.
type Session struct {
	sync.Mutex

	id      ulid.ULID
	addr    central.Addr
	created time.Time
	log     central.Logger

	handle     central.Handle
	terminated bool

	read  *central.Characteristic
	write *central.Characteristic

	state    atomic.Int32
	identity atomic.String
}

func newSession(a central.Addr, log central.Logger) *Session {
	id := ulid.Make()
	s := &Session{
		id:      id,
		addr:    a,
		created: time.Now(),
	}
	s.log = log.ChildLogger(map[string]interface{}{
		"session": id.String(),
		"addr":    a.String(),
	})
	s.state.Store(int32(Connecting))
	return s
}

// ID returns the session's unique identifier.
func (s *Session) ID() ulid.ULID { return s.id }

// Addr returns the peripheral address.
func (s *Session) Addr() central.Addr { return s.addr }

// Log returns the logger tagged with the session id and address.
func (s *Session) Log() central.Logger { return s.log }

// State returns the current state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// Identity returns the declared identity, or "" before identification.
func (s *Session) Identity() string {
	return s.identity.Load()
}

// Bind attaches the radio handle returned by the connection request.
func (s *Session) Bind(h central.Handle) error {
	if h == nil {
		return errors.New("nil handle")
	}
	if s.handle != nil || s.terminated {
		return errors.Errorf("session %v already bound", s.id)
	}
	s.handle = h
	return nil
}

// Handle returns the bound handle. It is nil before Bind and after Terminate.
func (s *Session) Handle() central.Handle {
	return s.handle
}

// Owns reports whether h is the handle this session currently holds.
func (s *Session) Owns(h central.Handle) bool {
	return h != nil && s.handle == h
}

// Advance moves the session forward to next.
func (s *Session) Advance(next State) error {
	cur := s.State()
	if cur.Terminal() || next <= cur || next.Terminal() {
		return errors.Wrapf(central.ErrIllegalTransition, "%v -> %v", cur, next)
	}
	s.state.Store(int32(next))
	s.log.Debugf("state %v -> %v", cur, next)
	return nil
}

// SetChannels binds the two application data channels.
func (s *Session) SetChannels(read, write *central.Characteristic) error {
	if st := s.State(); st != AwaitingServices {
		return errors.Wrapf(central.ErrIllegalTransition, "bind channels in %v", st)
	}
	s.read, s.write = read, write
	return nil
}

// Channels returns the read and write channels, nil before discovery.
func (s *Session) Channels() (read, write *central.Characteristic) {
	return s.read, s.write
}

// Identify records the peripheral's declared identity and moves the session
// to Identified. Only the first call from Ready succeeds.
func (s *Session) Identify(identity string) error {
	if st := s.State(); st != Ready {
		return errors.Wrapf(central.ErrIllegalTransition, "identify in %v", st)
	}
	s.identity.Store(identity)
	s.state.Store(int32(Identified))
	s.log.Debugf("identified as %q", identity)
	return nil
}

// Terminate moves the session to Disconnecting and hands its radio handle
// over to the caller, who becomes responsible for closing it. first is true
// only for the call that performed the transition; later calls get a nil
// handle.
func (s *Session) Terminate() (h central.Handle, first bool) {
	if s.terminated {
		return nil, false
	}
	s.terminated = true
	prev := s.State()
	s.state.Store(int32(Disconnecting))
	h, s.handle = s.handle, nil
	s.log.Debugf("state %v -> %v", prev, Disconnecting)
	return h, true
}

// Info is a point in time view of a session.
type Info struct {
	ID       string    `json:"id"`
	Addr     string    `json:"addr"`
	State    string    `json:"state"`
	Identity string    `json:"identity,omitempty"`
	Since    time.Time `json:"since"`
}

// Info returns a snapshot of the session without taking its lock.
func (s *Session) Info() Info {
	return Info{
		ID:       s.id.String(),
		Addr:     s.addr.String(),
		State:    s.State().String(),
		Identity: s.Identity(),
		Since:    s.created,
	}
}
