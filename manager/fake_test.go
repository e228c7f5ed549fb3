package manager

import (
	"sync"

	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
)

var (
	testService = central.MustParseUUID("5e2a68a4-27be-43f9-8d1e-4546976fabd7")
	testWrite   = central.MustParseUUID("5e2a68a5-27be-43f9-8d1e-4546976fabd7")
	testRead    = central.MustParseUUID("5e2a68a6-27be-43f9-8d1e-4546976fabd7")
	unrelated   = central.UUID16(0x180d)
)

func testConfig() Config {
	return Config{
		ServiceUUID:         testService.String(),
		BackgroundMask:      "00000000000000000000000000100000",
		WriteCharacteristic: testWrite.String(),
		ReadCharacteristic:  testRead.String(),
	}
}

func testProfile(service, read, write bool) *central.Profile {
	p := &central.Profile{}
	svc := central.NewService(unrelated)
	if service {
		svc = central.NewService(testService)
	}
	if read {
		svc.NewCharacteristic(testRead, central.CharNotify)
	}
	if write {
		svc.NewCharacteristic(testWrite, central.CharWrite|central.CharWriteNR)
	}
	p.Services = append(p.Services, svc)
	return p
}

type fakeHandle struct {
	a central.Addr
	n int
}

func (h *fakeHandle) Addr() central.Addr { return h.a }

type write struct {
	h *fakeHandle
	c central.UUID
	b []byte
}

// fakeRadio records every request and never calls back on its own.
type fakeRadio struct {
	mu sync.Mutex

	scanning bool
	starts   int
	stops    int
	handler  central.ScanHandler

	n           int
	latest      map[string]*fakeHandle
	connects    int
	closes      map[*fakeHandle]int
	disconnects map[*fakeHandle]int
	discovers   int
	notifies    int
	writes      []write

	connectErr error
	discoverOK bool
	notifyOK   bool
	writeOK    bool
}

func newFakeRadio() *fakeRadio {
	return &fakeRadio{
		latest:      map[string]*fakeHandle{},
		closes:      map[*fakeHandle]int{},
		disconnects: map[*fakeHandle]int{},
		discoverOK:  true,
		notifyOK:    true,
		writeOK:     true,
	}
}

func (f *fakeRadio) StartScanning(_ central.AdvFilter, h central.ScanHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanning = true
	f.starts++
	f.handler = h
	return nil
}

func (f *fakeRadio) StopScanning() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scanning = false
	f.stops++
	return nil
}

func (f *fakeRadio) IsScanning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.scanning
}

func (f *fakeRadio) Connect(a central.Addr, _ central.LinkHandler) (central.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.n++
	f.connects++
	h := &fakeHandle{a: a, n: f.n}
	f.latest[central.AddrKey(a)] = h
	return h, nil
}

func (f *fakeRadio) Disconnect(h central.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects[h.(*fakeHandle)]++
	return nil
}

func (f *fakeRadio) Close(h central.Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fh := h.(*fakeHandle)
	f.closes[fh]++
	if f.closes[fh] > 1 {
		return errors.New("double close")
	}
	return nil
}

func (f *fakeRadio) DiscoverServices(central.Handle) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discovers++
	return f.discoverOK
}

func (f *fakeRadio) EnableNotifications(_ central.Handle, c *central.Characteristic) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifies++
	return f.notifyOK
}

func (f *fakeRadio) Write(h central.Handle, c *central.Characteristic, b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes = append(f.writes, write{h.(*fakeHandle), c.UUID, append([]byte{}, b...)})
	return f.writeOK
}

func (f *fakeRadio) handle(a string) *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.latest[central.AddrKey(central.NewAddr(a))]
}

func (f *fakeRadio) closeCount(h *fakeHandle) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes[h]
}

func (f *fakeRadio) scanCounts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func (f *fakeRadio) set(fn func(f *fakeRadio)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

type events struct {
	mu  sync.Mutex
	log []string
}

func (e *events) add(s string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = append(e.log, s)
}

func (e *events) all() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string{}, e.log...)
}

func (e *events) listener() *central.ListenerFuncs {
	return &central.ListenerFuncs{
		Connected:              func(id string) { e.add("connected:" + id) },
		Disconnected:           func(id string) { e.add("disconnected:" + id) },
		MessageReceived:        func(id string, b []byte) { e.add("message:" + id + ":" + string(b)) },
		SecureChannelConnected: func(id string) { e.add("secure:" + id) },
	}
}

type fakeSecure struct {
	mu       sync.Mutex
	sessions map[string]central.Handle
}

func (f *fakeSecure) Establish(h central.Handle, identity string, cb central.SecureChannelCallback) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = map[string]central.Handle{}
	}
	f.sessions[identity] = h
}
