package sim

import (
	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
)

// Peripheral is a scripted remote device.
type Peripheral struct {
	Addr        string
	Name        string
	Connectable bool
	RSSI        int

	// Services are advertised unless Overflow is set, in which case the
	// advertisement carries only the overflow area.
	Services []central.UUID
	Overflow []byte

	// Profile is the GATT database found by service discovery.
	Profile *central.Profile

	// Identity is notified after the peripheral receives its first write.
	// Messages follow it in order. An empty Identity never identifies.
	Identity string
	Messages [][]byte

	// Faults.
	FailConnect     bool
	FailNotify      bool
	FailDescriptor  bool
	DisconnectAfter int // drop the link after this many messages, 0 never
}

func (p *Peripheral) validate() error {
	if p.Addr == "" {
		return errors.New("peripheral without address")
	}
	if p.Overflow != nil && len(p.Overflow) != central.OverflowMaskLen {
		return errors.Errorf("%s: overflow area is %d bytes", p.Addr, len(p.Overflow))
	}
	return nil
}

// NewProfile returns a profile with one service holding a notify and a
// write characteristic.
func NewProfile(service, read, write central.UUID) *central.Profile {
	s := central.NewService(service)
	s.NewCharacteristic(read, central.CharNotify)
	s.NewCharacteristic(write, central.CharWrite|central.CharWriteNR)
	return &central.Profile{Services: []*central.Service{s}}
}
