package session

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	central "github.com/rigado/blecentral"
)

// MaxConnections is the number of simultaneous links the radio supports.
const MaxConnections = 7

// ScanControl is how the pool drives discovery. Nil functions are skipped.
type ScanControl struct {
	Start      func() error
	Stop       func() error
	IsScanning func() bool
}

// Pool is the bounded set of live sessions, at most one per address.
//
// While running, the pool keeps the scanner on exactly when it has a free
// slot. Start and Stop are issued once per capacity transition.
type Pool struct {
	mu       sync.Mutex
	capacity int
	sessions map[string]*Session
	running  bool

	scan     ScanControl
	observer central.Observer
	log      central.Logger

	// scanMu is held by whichever goroutine is applying the scan state.
	// Others mark it dirty and leave.
	scanMu    sync.Mutex
	scanDirty atomic.Bool
	scanLost  atomic.Bool
	scanning  bool
}

// NewPool returns an empty pool. obs and log may be nil.
func NewPool(capacity int, sc ScanControl, obs central.Observer, log central.Logger) (*Pool, error) {
	if capacity <= 0 {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "capacity %d", capacity)
	}
	if obs == nil {
		obs = central.NopObserver{}
	}
	if log == nil {
		log = central.GetLogger()
	}
	return &Pool{
		capacity: capacity,
		sessions: make(map[string]*Session, capacity),
		scan:     sc,
		observer: obs,
		log:      log,
	}, nil
}

// TryReserve creates a Connecting session for a. It fails with ErrPoolFull
// when every slot is taken and with ErrDuplicateSession when a already has
// a session. Callers must not retry a full pool synchronously.
func (p *Pool) TryReserve(a central.Addr) (*Session, error) {
	k := central.AddrKey(a)
	if k == "" {
		return nil, errors.New("empty address")
	}

	p.mu.Lock()
	if len(p.sessions) >= p.capacity {
		p.mu.Unlock()
		return nil, central.ErrPoolFull
	}
	if _, ok := p.sessions[k]; ok {
		p.mu.Unlock()
		return nil, errors.Wrapf(central.ErrDuplicateSession, "%v", a)
	}
	s := newSession(a, p.log)
	p.sessions[k] = s
	n := len(p.sessions)
	p.mu.Unlock()

	s.Log().Debugf("reserved slot %d/%d", n, p.capacity)
	p.reconcile()
	return s, nil
}

// Release removes s. The caller must already have closed its handle. It
// reports whether s was in the pool.
func (p *Pool) Release(s *Session) bool {
	if s == nil {
		return false
	}
	k := central.AddrKey(s.Addr())

	p.mu.Lock()
	cur, ok := p.sessions[k]
	if ok && cur == s {
		delete(p.sessions, k)
	}
	n := len(p.sessions)
	p.mu.Unlock()

	if !ok || cur != s {
		return false
	}
	s.Log().Debugf("released slot, %d/%d in use", n, p.capacity)
	p.reconcile()
	return true
}

// Count returns the number of sessions, pending ones included.
func (p *Pool) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}

// Capacity returns the slot count.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Has reports whether a has a session.
func (p *Pool) Has(a central.Addr) bool {
	return p.FindAddr(a) != nil
}

// FindAddr returns the session for a, or nil.
func (p *Pool) FindAddr(a central.Addr) *Session {
	k := central.AddrKey(a)
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions[k]
}

// Find resolves the originating handle of a radio event. The session it
// returns may hold a different handle; callers check Owns under the
// session lock.
func (p *Pool) Find(h central.Handle) *Session {
	if h == nil {
		return nil
	}
	return p.FindAddr(h.Addr())
}

// FindByIdentity returns the identified session that declared identity.
func (p *Pool) FindByIdentity(identity string) *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		if s.State() == Identified && s.Identity() == identity {
			return s
		}
	}
	return nil
}

// Sessions returns the live sessions ordered by address.
func (p *Pool) Sessions() []*Session {
	p.mu.Lock()
	out := make([]*Session, 0, len(p.sessions))
	for _, s := range p.sessions {
		out = append(out, s)
	}
	p.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return central.AddrKey(out[i].Addr()) < central.AddrKey(out[j].Addr())
	})
	return out
}

// Snapshot returns Info for every live session ordered by address.
func (p *Pool) Snapshot() []Info {
	ss := p.Sessions()
	out := make([]Info, 0, len(ss))
	for _, s := range ss {
		out = append(out, s.Info())
	}
	return out
}

// SetRunning enables or disables scanning. A stopped pool never scans.
func (p *Pool) SetRunning(running bool) {
	p.mu.Lock()
	p.running = running
	p.mu.Unlock()
	p.reconcile()
}

// Running reports whether SetRunning(true) is in effect.
func (p *Pool) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// ScanLost records that the scanner gave up on its own. The scan is
// started again at the next capacity transition, not immediately.
func (p *Pool) ScanLost() {
	p.scanLost.Store(true)
}

// reconcile brings the scanner in line with the pool. It is safe to call
// from scanner callbacks delivered while a Start or Stop is in progress.
func (p *Pool) reconcile() {
	p.scanDirty.Store(true)
	for p.scanDirty.Load() {
		if !p.scanMu.TryLock() {
			return
		}
		p.scanDirty.Store(false)
		p.applyScan()
		p.scanMu.Unlock()
	}
}

func (p *Pool) applyScan() {
	if p.scanLost.CompareAndSwap(true, false) {
		p.scanning = false
	}

	p.mu.Lock()
	want := p.running && len(p.sessions) < p.capacity
	p.mu.Unlock()

	if want == p.scanning {
		return
	}

	if !want {
		p.scanning = false
		if p.scan.Stop != nil {
			if err := p.scan.Stop(); err != nil {
				p.log.Warnf("stop scanning: %v", err)
			}
		}
		p.log.Debug("scan stopped")
		p.observer.ScanToggled(false)
		return
	}

	if p.scan.IsScanning != nil && p.scan.IsScanning() {
		p.scanning = true
		return
	}
	if p.scan.Start != nil {
		if err := p.scan.Start(); err != nil {
			p.log.Errorf("start scanning: %v", err)
			return
		}
	}
	p.scanning = true
	p.log.Debug("scan started")
	p.observer.ScanToggled(true)
}
