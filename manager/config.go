package manager

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
)

// Config holds the required construction inputs.
type Config struct {
	// ServiceUUID is the service a peripheral must expose.
	ServiceUUID string

	// BackgroundMask is the iOS overflow bitmask of ServiceUUID as a hex
	// string of at most 32 digits. Empty disables overflow matching.
	BackgroundMask string

	// WriteCharacteristic carries outbound data.
	WriteCharacteristic string

	// ReadCharacteristic notifies inbound data.
	ReadCharacteristic string
}

type parsedConfig struct {
	service central.UUID
	mask    []byte
	write   central.UUID
	read    central.UUID
}

func (c Config) parse() (*parsedConfig, error) {
	var err error
	p := &parsedConfig{}

	if p.service, err = central.ParseUUID(c.ServiceUUID); err != nil {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "service uuid: %v", err)
	}
	if p.write, err = central.ParseUUID(c.WriteCharacteristic); err != nil {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "write characteristic: %v", err)
	}
	if p.read, err = central.ParseUUID(c.ReadCharacteristic); err != nil {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "read characteristic: %v", err)
	}
	if p.read == p.write {
		return nil, errors.Wrap(central.ErrInvalidConfig, "read and write characteristics must differ")
	}
	if p.mask, err = ParseMask(c.BackgroundMask); err != nil {
		return nil, err
	}
	return p, nil
}

// ParseMask converts a hex bitmask into the 16 byte big-endian form found
// in the overflow area. An empty string yields nil.
func ParseMask(s string) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if s == "" {
		return nil, nil
	}

	v, ok := new(big.Int).SetString(s, 16)
	if !ok || v.Sign() < 0 {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "background mask %q is not hex", s)
	}
	if v.BitLen() > central.OverflowMaskLen*8 {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "background mask %q exceeds %d bits", s, central.OverflowMaskLen*8)
	}
	return v.FillBytes(make([]byte, central.OverflowMaskLen)), nil
}
