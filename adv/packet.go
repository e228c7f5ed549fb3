package adv

import (
	central "github.com/rigado/blecentral"
)

// Packet is an advertising packet or scan response under construction.
type Packet struct {
	b []byte
}

// Bytes returns the bytes of the packet.
func (p *Packet) Bytes() []byte {
	return p.b
}

// Len returns the length of the packet.
func (p *Packet) Len() int {
	return len(p.b)
}

// NewPacket returns a new advertising Packet.
func NewPacket(fields ...Field) (*Packet, error) {
	p := &Packet{b: make([]byte, 0, MaxEIRPacketLength)}
	for _, f := range fields {
		if err := f(p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// Field is an advertising field which can be appended to a packet.
type Field func(p *Packet) error

// Append appends a field to the packet. It returns ErrNotFit if the field
// doesn't fit into the packet, and leaves the packet intact.
func (p *Packet) Append(f Field) error {
	return f(p)
}

func (p *Packet) append(typ byte, b []byte) error {
	if p.Len()+1+1+len(b) > MaxEIRPacketLength {
		return ErrNotFit
	}
	p.b = append(p.b, byte(len(b)+1))
	p.b = append(p.b, typ)
	p.b = append(p.b, b...)
	return nil
}

// Flags is a flags.
func Flags(f byte) Field {
	return func(p *Packet) error {
		return p.append(flags, []byte{f})
	}
}

// ShortName is a short local name.
func ShortName(n string) Field {
	return func(p *Packet) error {
		return p.append(shortName, []byte(n))
	}
}

// CompleteName is a complete local name.
func CompleteName(n string) Field {
	return func(p *Packet) error {
		return p.append(completeName, []byte(n))
	}
}

// ManufacturerData is manufacturer specific data.
func ManufacturerData(id uint16, b []byte) Field {
	return func(p *Packet) error {
		d := append([]byte{uint8(id), uint8(id >> 8)}, b...)
		return p.append(manufacturerData, d)
	}
}

// Overflow is the iOS background overflow area carrying mask.
func Overflow(mask []byte) Field {
	return func(p *Packet) error {
		if len(mask) != central.OverflowMaskLen {
			return ErrInvalid
		}
		return ManufacturerData(AppleCompanyID, append([]byte{overflowAreaType}, mask...))(p)
	}
}

func uuidType(u central.UUID, complete bool) (byte, []byte) {
	b := central.UUIDToLE(u)
	switch len(b) {
	case 2:
		if complete {
			return allUUID16, b
		}
		return someUUID16, b
	case 4:
		if complete {
			return allUUID32, b
		}
		return someUUID32, b
	}
	if complete {
		return allUUID128, b
	}
	return someUUID128, b
}

// AllUUID is one of the complete service UUID list.
func AllUUID(u central.UUID) Field {
	return func(p *Packet) error {
		typ, b := uuidType(u, true)
		return p.append(typ, b)
	}
}

// SomeUUID is one of the incomplete service UUID list.
func SomeUUID(u central.UUID) Field {
	return func(p *Packet) error {
		typ, b := uuidType(u, false)
		return p.append(typ, b)
	}
}

// Build lays out a peripheral's advertisement. Services go into the
// advertising packet while they fit, the rest are dropped and the list is
// marked incomplete. The name goes into the scan response. A non-nil
// overflow mask replaces the service list the way iOS does in the
// background.
func Build(name string, overflow []byte, uu ...central.UUID) (ad, sr []byte, err error) {
	p, err := NewPacket(Flags(FlagGeneralDiscoverable | FlagLEOnly))
	if err != nil {
		return nil, nil, err
	}

	if overflow != nil {
		if err := p.Append(Overflow(overflow)); err != nil {
			return nil, nil, err
		}
	} else {
		for i, u := range uu {
			if p.Append(AllUUID(u)) == ErrNotFit {
				// rewrite what fits as incomplete
				q, _ := NewPacket(Flags(FlagGeneralDiscoverable | FlagLEOnly))
				for _, v := range uu[:i] {
					if q.Append(SomeUUID(v)) != nil {
						break
					}
				}
				p = q
				break
			}
		}
	}

	s, err := NewPacket()
	if err != nil {
		return nil, nil, err
	}
	if name != "" {
		if s.Append(CompleteName(name)) == ErrNotFit {
			if err := s.Append(ShortName(name[:MaxEIRPacketLength-2])); err != nil {
				return nil, nil, err
			}
		}
	}

	return p.Bytes(), s.Bytes(), nil
}
