package sim_test

import (
	"fmt"
	"sort"
	"sync"
	"testing"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/manager"
	"github.com/rigado/blecentral/session"
	"github.com/rigado/blecentral/sim"
)

var (
	svc   = central.MustParseUUID("5e2a68a4-27be-43f9-8d1e-4546976fabd7")
	write = central.MustParseUUID("5e2a68a5-27be-43f9-8d1e-4546976fabd7")
	read  = central.MustParseUUID("5e2a68a6-27be-43f9-8d1e-4546976fabd7")
)

func config() manager.Config {
	return manager.Config{
		ServiceUUID:         svc.String(),
		WriteCharacteristic: write.String(),
		ReadCharacteristic:  read.String(),
	}
}

func phone(i int) *sim.Peripheral {
	return &sim.Peripheral{
		Addr:        fmt.Sprintf("aa:00:00:00:00:%02x", i),
		Connectable: true,
		Services:    []central.UUID{svc},
		Profile:     sim.NewProfile(svc, read, write),
		Identity:    fmt.Sprintf("phone-%d", i),
		Messages:    [][]byte{[]byte("hello")},
	}
}

type counter struct {
	mu       sync.Mutex
	messages map[string]int
	gone     []string
}

func (c *counter) listener() *central.ListenerFuncs {
	c.messages = map[string]int{}
	return &central.ListenerFuncs{
		MessageReceived: func(id string, _ []byte) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.messages[id]++
		},
		Disconnected: func(id string) {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.gone = append(c.gone, id)
		},
	}
}

func TestEightPhones(t *testing.T) {
	r := sim.NewRadio()
	defer r.Shutdown()
	for i := 0; i < 8; i++ {
		r.Advertise(phone(i))
	}

	m, err := manager.New(config(), r, r)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	c := &counter{}
	m.RegisterListener(c.listener())
	m.Start()
	r.Settle()

	if got := m.ConnectedDevices(); len(got) != session.MaxConnections {
		t.Fatalf("connected: %v", got)
	}
	if r.IsScanning() {
		t.Fatalf("scanning with a full pool")
	}
	for _, id := range m.ConnectedDevices() {
		if id == "phone-7" {
			t.Fatalf("eighth phone connected while full")
		}
	}

	r.Drop(phone(0).Addr)
	r.Settle()

	got := m.ConnectedDevices()
	sort.Strings(got)
	if len(got) != session.MaxConnections || got[len(got)-1] != "phone-7" {
		t.Fatalf("after drop: %v", got)
	}

	st := r.Stats()
	if st.ScanStarts != 2 || st.ScanStops != 2 || st.MaxLive != session.MaxConnections || st.DoubleCloses != 0 {
		t.Fatalf("stats: %+v", st)
	}

	m.Stop()
	r.Settle()

	st = r.Stats()
	if st.Closes != st.Connects || st.Live != 0 || st.DoubleCloses != 0 {
		t.Fatalf("after stop: %+v", st)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) != 8 || len(c.gone) != 8 {
		t.Fatalf("messages %v disconnects %v", c.messages, c.gone)
	}
	for id, n := range c.messages {
		if n != 1 {
			t.Fatalf("%s: %d messages", id, n)
		}
	}
}

func TestMissingServiceIgnored(t *testing.T) {
	r := sim.NewRadio()
	defer r.Shutdown()

	p := phone(1)
	p.Services = nil
	p.Profile = sim.NewProfile(central.UUID16(0x180d), read, write)
	r.Advertise(p)

	m, err := manager.New(config(), r, r, central.OptUnknownPolicy(central.AcceptUnknown))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.Start()
	r.Settle()

	if len(m.Ignored()) != 1 || len(m.Sessions()) != 0 {
		t.Fatalf("ignored %v sessions %v", m.Ignored(), m.Sessions())
	}

	r.Rescan()
	r.Settle()
	if st := r.Stats(); st.Connects != 1 || st.Closes != 1 {
		t.Fatalf("reconnected to ignored device: %+v", st)
	}
	m.Stop()
}

func TestTransientFaultRetried(t *testing.T) {
	r := sim.NewRadio()
	defer r.Shutdown()

	p := phone(1)
	p.FailDescriptor = true
	r.Advertise(p)

	m, err := manager.New(config(), r, r)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m.Start()
	r.Settle()

	if len(m.Ignored()) != 0 || len(m.Sessions()) != 0 {
		t.Fatalf("ignored %v sessions %v", m.Ignored(), m.Sessions())
	}

	fixed := phone(1)
	r.Advertise(fixed)
	r.Settle()
	if got := m.ConnectedDevices(); len(got) != 1 || got[0] != "phone-1" {
		t.Fatalf("retry: %v", got)
	}
	m.Stop()
}

func TestSendMessageReachesPeripheral(t *testing.T) {
	r := sim.NewRadio()
	defer r.Shutdown()
	p := phone(3)
	p.Messages = nil
	r.Advertise(p)

	m, _ := manager.New(config(), r, r)
	m.Start()
	r.Settle()

	if err := m.SendMessage("phone-3", []byte("unlock")); err != nil {
		t.Fatalf("send: %v", err)
	}
	r.Settle()

	got := r.Received(p.Addr)
	if len(got) != 2 || len(got[0]) != 16 || string(got[1]) != "unlock" {
		t.Fatalf("received: %q", got)
	}

	if err := m.Disconnect("phone-3"); err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	r.Settle()
	if len(m.Sessions()) != 0 {
		t.Fatalf("sessions: %v", m.Sessions())
	}

	// still on air, so the next advertisement reconnects it
	r.Rescan()
	r.Settle()
	if got := m.ConnectedDevices(); len(got) != 1 || got[0] != "phone-3" {
		t.Fatalf("reconnect: %v", got)
	}
	m.Stop()
}
