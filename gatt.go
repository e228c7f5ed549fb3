package central

// Property is the characteristic property bitfield.
type Property int

// Characteristic property flags.
const (
	CharBroadcast   Property = 0x01
	CharRead        Property = 0x02
	CharWriteNR     Property = 0x04
	CharWrite       Property = 0x08
	CharNotify      Property = 0x10
	CharIndicate    Property = 0x20
	CharSignedWrite Property = 0x40
	CharExtended    Property = 0x80
)

// Profile is the GATT database discovered on a peripheral.
type Profile struct {
	Services []*Service
}

// FindService returns the service with the given UUID, or nil.
func (p *Profile) FindService(u UUID) *Service {
	if p == nil {
		return nil
	}
	for _, s := range p.Services {
		if s.UUID == u {
			return s
		}
	}
	return nil
}

// Service is a GATT service.
type Service struct {
	UUID            UUID
	Handle          uint16
	Characteristics []*Characteristic
}

// NewService creates and initialize a new Service using specified UUID.
func NewService(u UUID) *Service {
	return &Service{UUID: u}
}

// NewCharacteristic adds a characteristic to the service.
func (s *Service) NewCharacteristic(u UUID, p Property) *Characteristic {
	c := &Characteristic{UUID: u, Property: p}
	s.Characteristics = append(s.Characteristics, c)
	return c
}

// FindCharacteristic returns the characteristic with the given UUID, or nil.
func (s *Service) FindCharacteristic(u UUID) *Characteristic {
	if s == nil {
		return nil
	}
	for _, c := range s.Characteristics {
		if c.UUID == u {
			return c
		}
	}
	return nil
}

// Characteristic is a GATT characteristic. The core treats characteristics
// as opaque channel handles and only compares UUIDs.
type Characteristic struct {
	UUID        UUID
	Property    Property
	Handle      uint16
	ValueHandle uint16
}
