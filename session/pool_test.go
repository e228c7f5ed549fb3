package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
)

type fakeScanner struct {
	mu       sync.Mutex
	scanning bool
	starts   int
	stops    int
	onStart  func()
}

func (f *fakeScanner) control() ScanControl {
	return ScanControl{
		Start: func() error {
			f.mu.Lock()
			f.scanning = true
			f.starts++
			cb := f.onStart
			f.mu.Unlock()
			if cb != nil {
				cb()
			}
			return nil
		},
		Stop: func() error {
			f.mu.Lock()
			defer f.mu.Unlock()
			f.scanning = false
			f.stops++
			return nil
		},
		IsScanning: func() bool {
			f.mu.Lock()
			defer f.mu.Unlock()
			return f.scanning
		},
	}
}

func (f *fakeScanner) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts, f.stops
}

func newTestPool(t *testing.T, capacity int, f *fakeScanner) *Pool {
	p, err := NewPool(capacity, f.control(), nil, nil)
	if err != nil {
		t.Fatalf("new pool: %v", err)
	}
	return p
}

func addr(i int) central.Addr {
	return central.NewAddr(fmt.Sprintf("00:00:00:00:00:%02x", i))
}

func TestCapacity(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, MaxConnections, f)
	p.SetRunning(true)

	for i := 0; i < MaxConnections; i++ {
		if _, err := p.TryReserve(addr(i)); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}
	if _, err := p.TryReserve(addr(100)); err != central.ErrPoolFull {
		t.Fatalf("8th reserve: got %v", err)
	}
	if p.Count() != MaxConnections {
		t.Fatalf("count: got %v", p.Count())
	}

	starts, stops := f.counts()
	if starts != 1 || stops != 1 {
		t.Fatalf("scan toggles: starts %d stops %d", starts, stops)
	}
}

func TestDuplicate(t *testing.T) {
	p := newTestPool(t, 3, &fakeScanner{})

	if _, err := p.TryReserve(central.NewAddr("AA:BB")); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	_, err := p.TryReserve(central.NewAddr("aa:bb"))
	if errors.Cause(err) != central.ErrDuplicateSession {
		t.Fatalf("duplicate: got %v", err)
	}
}

func TestReleaseResumesScanOnce(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, 2, f)
	p.SetRunning(true)

	s1, _ := p.TryReserve(addr(1))
	s2, _ := p.TryReserve(addr(2))

	if !p.Release(s1) {
		t.Fatalf("release s1")
	}
	starts, stops := f.counts()
	if starts != 2 || stops != 1 {
		t.Fatalf("after full->free: starts %d stops %d", starts, stops)
	}

	// already non-full: no more toggles
	if !p.Release(s2) {
		t.Fatalf("release s2")
	}
	if p.Release(s2) {
		t.Fatalf("double release reported success")
	}
	starts, stops = f.counts()
	if starts != 2 || stops != 1 {
		t.Fatalf("after free->free: starts %d stops %d", starts, stops)
	}
}

func TestReleaseStaleSession(t *testing.T) {
	p := newTestPool(t, 2, &fakeScanner{})

	old, _ := p.TryReserve(addr(1))
	p.Release(old)
	cur, _ := p.TryReserve(addr(1))

	if p.Release(old) {
		t.Fatalf("stale release removed the new session")
	}
	if p.FindAddr(addr(1)) != cur {
		t.Fatalf("current session lost")
	}
}

func TestNotRunningNeverScans(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, 1, f)

	s, _ := p.TryReserve(addr(1))
	p.Release(s)

	if starts, stops := f.counts(); starts != 0 || stops != 0 {
		t.Fatalf("scanned while stopped: starts %d stops %d", starts, stops)
	}

	p.SetRunning(true)
	p.SetRunning(false)
	if starts, stops := f.counts(); starts != 1 || stops != 1 {
		t.Fatalf("start/stop: starts %d stops %d", starts, stops)
	}
}

func TestAlreadyScanning(t *testing.T) {
	f := &fakeScanner{scanning: true}
	p := newTestPool(t, 1, f)
	p.SetRunning(true)

	if starts, _ := f.counts(); starts != 0 {
		t.Fatalf("started an active scanner")
	}
}

func TestReentrantStart(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, 2, f)

	// a scanner that reports results from inside Start
	f.onStart = func() {
		p.TryReserve(addr(1))
		p.TryReserve(addr(2))
	}
	p.SetRunning(true)

	if p.Count() != 2 {
		t.Fatalf("count: got %v", p.Count())
	}
	starts, stops := f.counts()
	if starts != 1 || stops != 1 {
		t.Fatalf("starts %d stops %d", starts, stops)
	}
	if f.control().IsScanning() {
		t.Fatalf("full pool left scanning")
	}
}

func TestScanLost(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, 2, f)
	p.SetRunning(true)

	f.mu.Lock()
	f.scanning = false
	f.mu.Unlock()
	p.ScanLost()

	if starts, _ := f.counts(); starts != 1 {
		t.Fatalf("restarted immediately")
	}

	s, _ := p.TryReserve(addr(1))
	p.Release(s)
	if starts, _ := f.counts(); starts != 2 {
		t.Fatalf("starts: got %d", starts)
	}
}

func TestFind(t *testing.T) {
	p := newTestPool(t, 2, &fakeScanner{})
	s, _ := p.TryReserve(addr(1))

	h := &testHandle{addr(1)}
	if p.Find(h) != s {
		t.Fatalf("find by handle")
	}
	if p.Find(nil) != nil || p.Find(&testHandle{addr(9)}) != nil {
		t.Fatalf("unexpected match")
	}

	s.Lock()
	s.Bind(h)
	s.Advance(AwaitingServices)
	s.Advance(Ready)
	s.Identify("phone")
	s.Unlock()

	if p.FindByIdentity("phone") != s || p.FindByIdentity("other") != nil {
		t.Fatalf("find by identity")
	}
	if snap := p.Snapshot(); len(snap) != 1 || snap[0].Identity != "phone" || snap[0].State != "identified" {
		t.Fatalf("snapshot: %+v", snap)
	}
}

func TestConcurrentReserveRelease(t *testing.T) {
	f := &fakeScanner{}
	p := newTestPool(t, MaxConnections, f)
	p.SetRunning(true)

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				s, err := p.TryReserve(addr(g*200 + i))
				if n := p.Count(); n > MaxConnections {
					t.Errorf("count %d over capacity", n)
				}
				if err == nil {
					p.Release(s)
				}
			}
		}(g)
	}
	wg.Wait()

	if p.Count() != 0 {
		t.Fatalf("count: got %v", p.Count())
	}
	if !f.control().IsScanning() {
		t.Fatalf("empty running pool not scanning")
	}
	starts, stops := f.counts()
	if starts != stops+1 {
		t.Fatalf("unbalanced toggles: starts %d stops %d", starts, stops)
	}
}

func TestInvalidCapacity(t *testing.T) {
	if _, err := NewPool(0, ScanControl{}, nil, nil); errors.Cause(err) != central.ErrInvalidConfig {
		t.Fatalf("got %v", err)
	}
}
