// Package manager runs the central side of a multi-peripheral session:
// admission, per-device session state, identification and message relay.
//
// The manager owns no goroutine. It reacts to calls from the scanner, the
// radio link and the secure channel provider, any of which may arrive
// concurrently. Each session is advanced under its own lock; radio calls
// that release resources and listener notifications happen after the lock
// is dropped, so listeners may call back into the manager.
package manager

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/atomic"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/admission"
	"github.com/rigado/blecentral/dispatch"
	"github.com/rigado/blecentral/ignore"
	"github.com/rigado/blecentral/session"
)

// Manager is the central session manager.
type Manager struct {
	cfg *parsedConfig

	scanner central.Scanner
	link    central.RadioLink

	filter     *admission.Filter
	pool       *session.Pool
	ignored    *ignore.Registry
	dispatcher *dispatch.Dispatcher

	unknown  central.UnknownPolicy
	secure   central.SecureChannelProvider
	observer central.Observer
	nonce    func() []byte
	log      central.Logger

	running atomic.Bool
}

// New builds a manager. The scanner and link are borrowed; the manager never
// closes them.
func New(cfg Config, scanner central.Scanner, link central.RadioLink, opts ...central.Option) (*Manager, error) {
	if scanner == nil || link == nil {
		return nil, errors.Wrap(central.ErrInvalidConfig, "scanner and radio link are required")
	}

	pc, err := cfg.parse()
	if err != nil {
		return nil, err
	}

	m := &Manager{
		cfg:      pc,
		scanner:  scanner,
		link:     link,
		ignored:  ignore.New(),
		unknown:  central.RejectUnknown,
		observer: central.NopObserver{},
		nonce:    randomNonce,
		log:      central.GetLogger(),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, errors.Wrap(err, "option")
		}
	}

	if m.filter, err = admission.New(pc.service, pc.mask, m.unknown); err != nil {
		return nil, err
	}
	m.pool, err = session.NewPool(session.MaxConnections, session.ScanControl{
		Start:      m.startScanning,
		Stop:       scanner.StopScanning,
		IsScanning: scanner.IsScanning,
	}, m.observer, m.log)
	if err != nil {
		return nil, err
	}
	m.dispatcher = dispatch.New(m.log)

	return m, nil
}

func randomNonce() []byte {
	u := uuid.New()
	return u[:]
}

// SetUnknownPolicy sets the policy for advertisements without services.
func (m *Manager) SetUnknownPolicy(p central.UnknownPolicy) error {
	if p == nil {
		return errors.New("nil unknown policy")
	}
	m.unknown = p
	return nil
}

// SetSecureChannel hands identified sessions to p.
func (m *Manager) SetSecureChannel(p central.SecureChannelProvider) error {
	m.secure = p
	return nil
}

// SetObserver reports counters to o.
func (m *Manager) SetObserver(o central.Observer) error {
	if o == nil {
		o = central.NopObserver{}
	}
	m.observer = o
	return nil
}

// SetNonceFunc overrides the identification nonce generator.
func (m *Manager) SetNonceFunc(f func() []byte) error {
	if f == nil {
		return errors.New("nil nonce func")
	}
	m.nonce = f
	return nil
}

// SetLogger sets the logger used by the manager and its sessions.
func (m *Manager) SetLogger(l central.Logger) error {
	if l == nil {
		return errors.New("nil logger")
	}
	m.log = l
	return nil
}

func (m *Manager) startScanning() error {
	return m.scanner.StartScanning(nil, m)
}

// Start begins discovery. Scanning then follows pool capacity until Stop.
func (m *Manager) Start() error {
	if !m.running.CompareAndSwap(false, true) {
		return errors.New("already running")
	}
	m.log.Infof("starting, service %v", m.cfg.service)
	m.pool.SetRunning(true)
	return nil
}

// Stop stops scanning and tears down every session. Identified devices get
// a disconnect notification.
func (m *Manager) Stop() {
	if !m.running.CompareAndSwap(true, false) {
		return
	}
	m.pool.SetRunning(false)

	for _, s := range m.pool.Sessions() {
		s.Lock()
		after := m.terminate(s, reasonStopped, false, true)
		s.Unlock()
		after()
	}
	m.log.Info("stopped")
}

// Running reports whether Start has been called without a matching Stop.
func (m *Manager) Running() bool {
	return m.running.Load()
}

// RegisterListener adds l to the event fan-out.
func (m *Manager) RegisterListener(l central.Listener) {
	m.dispatcher.Register(l)
}

// UnregisterListener removes l.
func (m *Manager) UnregisterListener(l central.Listener) {
	m.dispatcher.Unregister(l)
}

// SendMessage writes payload to the write channel of the device that
// declared identity.
func (m *Manager) SendMessage(identity string, payload []byte) error {
	if !m.running.Load() {
		return central.ErrNotRunning
	}
	s := m.pool.FindByIdentity(identity)
	if s == nil {
		return errors.Wrapf(central.ErrUnknownDevice, "%q", identity)
	}

	s.Lock()
	defer s.Unlock()

	h := s.Handle()
	_, w := s.Channels()
	if s.State() != session.Identified || h == nil || w == nil {
		return errors.Wrapf(central.ErrUnknownDevice, "%q is %v", identity, s.State())
	}
	if !m.link.Write(h, w, payload) {
		return errors.Wrapf(central.ErrWriteFailed, "%q", identity)
	}
	return nil
}

// Disconnect asks the radio to drop the device that declared identity. The
// session is torn down when the radio reports the disconnection.
func (m *Manager) Disconnect(identity string) error {
	if !m.running.Load() {
		return central.ErrNotRunning
	}
	s := m.pool.FindByIdentity(identity)
	if s == nil {
		return errors.Wrapf(central.ErrUnknownDevice, "%q", identity)
	}

	s.Lock()
	h := s.Handle()
	s.Unlock()
	if h == nil {
		return errors.Wrapf(central.ErrUnknownDevice, "%q", identity)
	}

	s.Log().Infof("disconnect requested")
	return errors.Wrap(m.link.Disconnect(h), "disconnect")
}

// ConnectedDevices returns the identities of identified devices.
func (m *Manager) ConnectedDevices() []string {
	var out []string
	for _, s := range m.pool.Sessions() {
		if s.State() == session.Identified {
			out = append(out, s.Identity())
		}
	}
	return out
}

// Sessions returns a snapshot of every live session.
func (m *Manager) Sessions() []session.Info {
	return m.pool.Snapshot()
}

// Ignored returns the devices excluded for the rest of the session.
func (m *Manager) Ignored() []central.Addr {
	return m.ignored.List()
}

// Decide returns the admission decision for a against the current state,
// without acting on it.
func (m *Manager) Decide(a central.Advertisement) admission.Decision {
	return m.filter.Decide(a, m.pool, m.ignored)
}
