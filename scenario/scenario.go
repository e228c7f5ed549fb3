// Package scenario describes simulated drives: which peripherals are on
// air, how they behave, and what happens along a timeline.
package scenario

import (
	"encoding/hex"
	"os"
	"sort"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/sim"
)

// Timeline actions.
const (
	ActionAdvertise  = "advertise"
	ActionDrop       = "drop"
	ActionRescan     = "rescan"
	ActionNotify     = "notify"
	ActionSend       = "send"
	ActionDisconnect = "disconnect"
)

// Scenario is the file format.
type Scenario struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Peripherals []Peripheral `json:"peripherals"`
	Timeline    []Event      `json:"timeline,omitempty"`
}

// Peripheral describes one simulated device. Peripherals with Delayed set
// stay off air until an advertise action names them.
type Peripheral struct {
	Addr        string   `json:"addr"`
	Name        string   `json:"name,omitempty"`
	Connectable *bool    `json:"connectable,omitempty"`
	RSSI        int      `json:"rssi,omitempty"`
	Services    []string `json:"services,omitempty"`
	Overflow    string   `json:"overflow,omitempty"`

	// GATT replaces the default profile. An empty list means the device
	// exposes no services at all.
	GATT []Service `json:"gatt,omitempty"`

	Identity string   `json:"identity,omitempty"`
	Messages []string `json:"messages,omitempty"`

	FailConnect     bool `json:"fail_connect,omitempty"`
	FailNotify      bool `json:"fail_notify,omitempty"`
	FailDescriptor  bool `json:"fail_descriptor,omitempty"`
	DisconnectAfter int  `json:"disconnect_after,omitempty"`
	Delayed         bool `json:"delayed,omitempty"`
}

// Service is a GATT service in a scenario file.
type Service struct {
	UUID            string   `json:"uuid"`
	Characteristics []string `json:"characteristics"`
}

// Event is one timeline step.
type Event struct {
	AtMs     int    `json:"at_ms"`
	Action   string `json:"action"`
	Device   string `json:"device,omitempty"`
	Identity string `json:"identity,omitempty"`
	Data     string `json:"data,omitempty"`
}

// At returns the offset of e from the start of the run.
func (e Event) At() time.Duration {
	return time.Duration(e.AtMs) * time.Millisecond
}

// Defaults are the UUIDs the default GATT profile is built from.
type Defaults struct {
	Service central.UUID
	Read    central.UUID
	Write   central.UUID
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	in, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read scenario")
	}
	return Parse(in)
}

// Parse decodes and validates a scenario.
func Parse(in []byte) (*Scenario, error) {
	var s Scenario
	if err := jsoniter.Unmarshal(in, &s); err != nil {
		return nil, errors.Wrap(err, "decode scenario")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	sort.SliceStable(s.Timeline, func(i, j int) bool { return s.Timeline[i].AtMs < s.Timeline[j].AtMs })
	return &s, nil
}

// Validate checks that every event names a known device and action.
func (s *Scenario) Validate() error {
	addrs := make(map[string]bool, len(s.Peripherals))
	for _, p := range s.Peripherals {
		if p.Addr == "" {
			return errors.New("peripheral without address")
		}
		k := central.AddrKey(central.NewAddr(p.Addr))
		if addrs[k] {
			return errors.Errorf("duplicate peripheral %s", p.Addr)
		}
		addrs[k] = true
	}

	for i, e := range s.Timeline {
		if e.AtMs < 0 {
			return errors.Errorf("event %d: negative time", i)
		}
		switch e.Action {
		case ActionAdvertise, ActionDrop, ActionNotify:
			if !addrs[central.AddrKey(central.NewAddr(e.Device))] {
				return errors.Errorf("event %d: unknown device %q", i, e.Device)
			}
		case ActionSend, ActionDisconnect:
			if e.Identity == "" {
				return errors.Errorf("event %d: %s needs an identity", i, e.Action)
			}
		case ActionRescan:
		default:
			return errors.Errorf("event %d: unknown action %q", i, e.Action)
		}
	}
	return nil
}

// Duration returns the time of the last event.
func (s *Scenario) Duration() time.Duration {
	var d time.Duration
	for _, e := range s.Timeline {
		if e.At() > d {
			d = e.At()
		}
	}
	return d
}

// Find returns the peripheral with address addr.
func (s *Scenario) Find(addr string) *Peripheral {
	for i := range s.Peripherals {
		if central.SameAddr(central.NewAddr(s.Peripherals[i].Addr), central.NewAddr(addr)) {
			return &s.Peripherals[i]
		}
	}
	return nil
}

// Build converts p into a simulated peripheral.
func (p *Peripheral) Build(d Defaults) (*sim.Peripheral, error) {
	out := &sim.Peripheral{
		Addr:            p.Addr,
		Name:            p.Name,
		Connectable:     p.Connectable == nil || *p.Connectable,
		RSSI:            p.RSSI,
		Identity:        p.Identity,
		FailConnect:     p.FailConnect,
		FailNotify:      p.FailNotify,
		FailDescriptor:  p.FailDescriptor,
		DisconnectAfter: p.DisconnectAfter,
	}

	for _, s := range p.Services {
		u, err := central.ParseUUID(s)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: service", p.Addr)
		}
		out.Services = append(out.Services, u)
	}

	if p.Overflow != "" {
		b, err := hex.DecodeString(p.Overflow)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: overflow", p.Addr)
		}
		out.Overflow = b
	}

	for _, m := range p.Messages {
		out.Messages = append(out.Messages, []byte(m))
	}

	if p.GATT == nil {
		out.Profile = sim.NewProfile(d.Service, d.Read, d.Write)
		return out, nil
	}
	out.Profile = &central.Profile{}
	for _, gs := range p.GATT {
		u, err := central.ParseUUID(gs.UUID)
		if err != nil {
			return nil, errors.Wrapf(err, "%s: gatt service", p.Addr)
		}
		svc := central.NewService(u)
		for _, gc := range gs.Characteristics {
			cu, err := central.ParseUUID(gc)
			if err != nil {
				return nil, errors.Wrapf(err, "%s: gatt characteristic", p.Addr)
			}
			svc.NewCharacteristic(cu, central.CharNotify|central.CharWrite)
		}
		out.Profile.Services = append(out.Profile.Services, svc)
	}
	return out, nil
}
