// Package sim is an in-memory radio: a Scanner and RadioLink backed by
// scripted peripherals. Every result is delivered later from a single event
// goroutine, in request order.
package sim

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/adv"
)

// Status codes reported with disconnections.
const (
	StatusRemoteTerminated = 0x13
	StatusLocalTerminated  = 0x16
	StatusGattError        = 0x85
)

// ErrUnknownPeripheral is returned by Connect for addresses not on air.
var ErrUnknownPeripheral = errors.New("unknown peripheral")

// Conn is the handle of one simulated connection.
type Conn struct {
	id      int
	p       *Peripheral
	addr    central.Addr
	handler central.LinkHandler

	closed       bool
	dropped      bool
	notify       *central.Characteristic
	identified   bool
	sentMessages int
}

// Addr implements central.Handle.
func (c *Conn) Addr() central.Addr { return c.addr }

// ID returns the connection number, unique per radio.
func (c *Conn) ID() int { return c.id }

// Stats counts radio requests.
type Stats struct {
	ScanStarts   int `json:"scan_starts"`
	ScanStops    int `json:"scan_stops"`
	Connects     int `json:"connects"`
	Disconnects  int `json:"disconnects"`
	Closes       int `json:"closes"`
	DoubleCloses int `json:"double_closes"`
	Writes       int `json:"writes"`
	Live         int `json:"live"`
	MaxLive      int `json:"max_live"`
}

// Radio implements central.Scanner and central.RadioLink.
type Radio struct {
	mu sync.Mutex
	q  *queue

	peripherals map[string]*Peripheral
	scanning    bool
	scanFilter  central.AdvFilter
	scanHandler central.ScanHandler

	nextID   int
	conns    map[int]*Conn
	received map[string][][]byte
	stats    Stats

	log central.Logger
}

var (
	_ central.Scanner   = (*Radio)(nil)
	_ central.RadioLink = (*Radio)(nil)
)

// NewRadio returns a radio with nothing on air.
func NewRadio() *Radio {
	return &Radio{
		q:           newQueue(),
		peripherals: make(map[string]*Peripheral),
		conns:       make(map[int]*Conn),
		received:    make(map[string][][]byte),
		log:         central.GetLogger().ChildLogger(map[string]interface{}{"radio": "sim"}),
	}
}

// Shutdown stops event delivery. Pending events are discarded.
func (r *Radio) Shutdown() {
	r.q.close()
}

// Settle blocks until every queued event has been delivered, including the
// ones queued by handlers along the way.
func (r *Radio) Settle() {
	r.q.wait()
}

// Advertise puts p on air, replacing any peripheral with the same address.
// A running scan sees it right away.
func (r *Radio) Advertise(p *Peripheral) error {
	if err := p.validate(); err != nil {
		return err
	}
	key := central.AddrKey(central.NewAddr(p.Addr))

	r.mu.Lock()
	r.peripherals[key] = p
	scanning := r.scanning
	r.mu.Unlock()

	if scanning {
		r.advertise(p)
	}
	return nil
}

// Rescan delivers one more advertisement from every peripheral on air.
func (r *Radio) Rescan() {
	for _, p := range r.onAir() {
		r.advertise(p)
	}
}

// Drop takes addr off air. A live link to it is lost with a remote
// termination.
func (r *Radio) Drop(addr string) {
	key := central.AddrKey(central.NewAddr(addr))

	r.mu.Lock()
	delete(r.peripherals, key)
	var live []*Conn
	for _, c := range r.conns {
		if central.AddrKey(c.addr) == key && !c.closed && !c.dropped {
			c.dropped = true
			live = append(live, c)
		}
	}
	r.mu.Unlock()

	for _, c := range live {
		r.disconnected(c, StatusRemoteTerminated)
	}
}

// Notify sends msg from addr over its live link, if the link is set up.
func (r *Radio) Notify(addr string, msg []byte) bool {
	key := central.AddrKey(central.NewAddr(addr))

	r.mu.Lock()
	var target *Conn
	for _, c := range r.conns {
		if central.AddrKey(c.addr) == key && !c.closed && !c.dropped && c.notify != nil {
			target = c
		}
	}
	r.mu.Unlock()

	if target == nil {
		return false
	}
	r.notifyValue(target, msg, true)
	return true
}

// Received returns the writes addr has received, oldest first.
func (r *Radio) Received(addr string) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte{}, r.received[central.AddrKey(central.NewAddr(addr))]...)
}

// Stats returns the request counters.
func (r *Radio) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

func (r *Radio) onAir() []*Peripheral {
	r.mu.Lock()
	out := make([]*Peripheral, 0, len(r.peripherals))
	for _, p := range r.peripherals {
		out = append(out, p)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

func (r *Radio) advertise(p *Peripheral) {
	ad, sr, err := adv.Build(p.Name, p.Overflow, p.Services...)
	if err != nil {
		r.log.Errorf("%s: build advertisement: %v", p.Addr, err)
		return
	}

	r.q.push(func() {
		a, err := adv.Decode(central.NewAddr(p.Addr), p.Connectable, p.RSSI, ad, sr)
		if err != nil {
			r.log.Errorf("%s: decode advertisement: %v", p.Addr, err)
			return
		}

		r.mu.Lock()
		h, f, on := r.scanHandler, r.scanFilter, r.scanning
		r.mu.Unlock()

		if !on || h == nil || (f != nil && !f(a)) {
			return
		}
		h.OnAdvertisement(a)
	})
}

// StartScanning implements central.Scanner.
func (r *Radio) StartScanning(f central.AdvFilter, h central.ScanHandler) error {
	if h == nil {
		return errors.New("nil scan handler")
	}

	r.mu.Lock()
	if r.scanning {
		r.mu.Unlock()
		return errors.New("already scanning")
	}
	r.scanning = true
	r.scanFilter = f
	r.scanHandler = h
	r.stats.ScanStarts++
	r.mu.Unlock()

	r.Rescan()
	return nil
}

// StopScanning implements central.Scanner.
func (r *Radio) StopScanning() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.scanning {
		r.stats.ScanStops++
	}
	r.scanning = false
	return nil
}

// IsScanning implements central.Scanner.
func (r *Radio) IsScanning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanning
}

// Connect implements central.RadioLink.
func (r *Radio) Connect(a central.Addr, h central.LinkHandler) (central.Handle, error) {
	if h == nil {
		return nil, errors.New("nil link handler")
	}

	r.mu.Lock()
	p, ok := r.peripherals[central.AddrKey(a)]
	if !ok {
		r.mu.Unlock()
		return nil, errors.Wrapf(ErrUnknownPeripheral, "%v", a)
	}
	r.nextID++
	c := &Conn{id: r.nextID, p: p, addr: a, handler: h}
	r.conns[c.id] = c
	r.stats.Connects++
	r.stats.Live++
	if r.stats.Live > r.stats.MaxLive {
		r.stats.MaxLive = r.stats.Live
	}
	r.mu.Unlock()

	if p.FailConnect {
		r.q.push(func() { h.OnConnectionStateChange(c, StatusGattError, central.StateDisconnected) })
	} else {
		r.q.push(func() { h.OnConnectionStateChange(c, central.StatusSuccess, central.StateConnected) })
	}
	return c, nil
}

func (r *Radio) conn(h central.Handle) (*Conn, bool) {
	c, ok := h.(*Conn)
	if !ok || c == nil {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return c, !c.closed && !c.dropped
}

func (r *Radio) disconnected(c *Conn, status int) {
	r.q.push(func() { c.handler.OnConnectionStateChange(c, status, central.StateDisconnected) })
}

// Disconnect implements central.RadioLink.
func (r *Radio) Disconnect(h central.Handle) error {
	c, live := r.conn(h)
	if c == nil {
		return errors.New("foreign handle")
	}
	if !live {
		return nil
	}

	r.mu.Lock()
	c.dropped = true
	r.stats.Disconnects++
	r.mu.Unlock()

	r.disconnected(c, StatusLocalTerminated)
	return nil
}

// Close implements central.RadioLink.
func (r *Radio) Close(h central.Handle) error {
	c, ok := h.(*Conn)
	if !ok || c == nil {
		return errors.New("foreign handle")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c.closed {
		r.stats.DoubleCloses++
		return errors.Errorf("connection %d closed twice", c.id)
	}
	c.closed = true
	delete(r.conns, c.id)
	r.stats.Closes++
	r.stats.Live--
	return nil
}

// DiscoverServices implements central.RadioLink.
func (r *Radio) DiscoverServices(h central.Handle) bool {
	c, live := r.conn(h)
	if !live {
		return false
	}
	r.q.push(func() {
		status := central.StatusSuccess
		if c.p.Profile == nil {
			status = StatusGattError
		}
		c.handler.OnServicesDiscovered(c, c.p.Profile, status)
	})
	return true
}

// EnableNotifications implements central.RadioLink.
func (r *Radio) EnableNotifications(h central.Handle, ch *central.Characteristic) bool {
	c, live := r.conn(h)
	if !live || ch == nil || c.p.FailNotify {
		return false
	}

	status := central.StatusSuccess
	if c.p.FailDescriptor {
		status = central.StatusFailure
	} else {
		r.mu.Lock()
		c.notify = ch
		r.mu.Unlock()
	}
	r.q.push(func() { c.handler.OnDescriptorWrite(c, ch, status) })
	return true
}

// Write implements central.RadioLink. The peripheral answers its first
// write with its identity and messages.
func (r *Radio) Write(h central.Handle, ch *central.Characteristic, b []byte) bool {
	c, live := r.conn(h)
	if !live || ch == nil {
		return false
	}

	key := central.AddrKey(c.addr)
	r.mu.Lock()
	r.received[key] = append(r.received[key], append([]byte{}, b...))
	r.stats.Writes++
	first := !c.identified && c.notify != nil && c.p.Identity != ""
	if first {
		c.identified = true
	}
	r.mu.Unlock()

	r.q.push(func() { c.handler.OnCharacteristicWrite(c, ch, central.StatusSuccess) })
	if first {
		r.notifyValue(c, []byte(c.p.Identity), false)
		for _, m := range c.p.Messages {
			r.notifyValue(c, m, true)
		}
	}
	return true
}

func (r *Radio) notifyValue(c *Conn, v []byte, message bool) {
	v = append([]byte{}, v...)

	r.mu.Lock()
	if c.dropped || c.closed {
		r.mu.Unlock()
		return
	}
	ch := c.notify
	drop := false
	if ch != nil && message {
		c.sentMessages++
		drop = c.p.DisconnectAfter > 0 && c.sentMessages == c.p.DisconnectAfter
		if drop {
			c.dropped = true
		}
	}
	r.mu.Unlock()

	if ch == nil {
		return
	}
	r.q.push(func() { c.handler.OnCharacteristicChanged(c, ch, v) })
	if drop {
		r.disconnected(c, StatusRemoteTerminated)
	}
}
