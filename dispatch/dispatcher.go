// Package dispatch fans device events out to registered listeners.
package dispatch

import (
	"reflect"
	"sync"

	"go.uber.org/atomic"

	central "github.com/rigado/blecentral"
)

// Dispatcher delivers events synchronously to every listener, in
// registration order. A panicking listener is logged and skipped; the
// remaining listeners still get the event.
//
// Listeners are matched with == when their dynamic type is comparable.
// A listener of any other type can be registered but never unregistered,
// so register pointers.
type Dispatcher struct {
	mu        sync.Mutex
	listeners atomic.Pointer[[]central.Listener]
	log       central.Logger
}

// New returns a dispatcher without listeners. A nil log uses the package
// logger.
func New(log central.Logger) *Dispatcher {
	if log == nil {
		log = central.GetLogger()
	}
	d := &Dispatcher{log: log}
	d.listeners.Store(&[]central.Listener{})
	return d
}

func (d *Dispatcher) load() []central.Listener {
	return *d.listeners.Load()
}

// Register adds l. It reports false if l is nil or already registered.
func (d *Dispatcher) Register(l central.Listener) bool {
	if l == nil {
		return false
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.load()
	for _, x := range cur {
		if same(x, l) {
			return false
		}
	}
	next := make([]central.Listener, 0, len(cur)+1)
	next = append(next, cur...)
	next = append(next, l)
	d.listeners.Store(&next)
	return true
}

func same(a, b central.Listener) bool {
	ta := reflect.TypeOf(a)
	return ta == reflect.TypeOf(b) && ta.Comparable() && a == b
}

// Unregister removes l. It reports whether l was registered.
func (d *Dispatcher) Unregister(l central.Listener) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	cur := d.load()
	next := make([]central.Listener, 0, len(cur))
	for _, x := range cur {
		if !same(x, l) {
			next = append(next, x)
		}
	}
	if len(next) == len(cur) {
		return false
	}
	d.listeners.Store(&next)
	return true
}

// Len returns the number of listeners.
func (d *Dispatcher) Len() int {
	return len(d.load())
}

func (d *Dispatcher) each(event, identity string, fn func(l central.Listener)) {
	for _, l := range d.load() {
		d.call(event, identity, l, fn)
	}
}

func (d *Dispatcher) call(event, identity string, l central.Listener, fn func(l central.Listener)) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Errorf("listener %T panicked on %s for %q: %v", l, event, identity, r)
		}
	}()
	fn(l)
}

// DeviceConnected reports a newly identified device.
func (d *Dispatcher) DeviceConnected(identity string) {
	d.each("connected", identity, func(l central.Listener) {
		l.OnDeviceConnected(identity)
	})
}

// DeviceDisconnected reports the teardown of an identified device.
func (d *Dispatcher) DeviceDisconnected(identity string) {
	d.each("disconnected", identity, func(l central.Listener) {
		l.OnDeviceDisconnected(identity)
	})
}

// MessageReceived relays an application message.
func (d *Dispatcher) MessageReceived(identity string, msg []byte) {
	d.each("message", identity, func(l central.Listener) {
		l.OnMessageReceived(identity, msg)
	})
}

// SecureChannelEstablished forwards the secure channel provider's success.
func (d *Dispatcher) SecureChannelEstablished(identity string) {
	d.each("secure-channel", identity, func(l central.Listener) {
		l.OnSecureChannelEstablished(identity)
	})
}
