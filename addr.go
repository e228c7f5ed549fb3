package central

import (
	"encoding/hex"
	"strings"
)

// Addr represents a peripheral's radio address.
// It's MAC address on Linux or Device UUID on OS X.
type Addr interface {
	String() string
	Bytes() []byte
}

// NewAddr creates an Addr from string
func NewAddr(s string) Addr {
	return addr(strings.ToLower(s))
}

type addr string

func (a addr) String() string {
	return string(a)
}

// Bytes returns the decoded address, or nil when the address is not hex.
func (a addr) Bytes() []byte {
	hexStr := strings.Replace(a.String(), ":", "", -1)

	out, err := hex.DecodeString(hexStr)
	if err != nil {
		GetLogger().Debugf("error decoding address %s: %v", a.String(), err)
		return nil
	}

	return out
}

// SameAddr reports whether a and b refer to the same device.
func SameAddr(a, b Addr) bool {
	if a == nil || b == nil {
		return false
	}
	return strings.EqualFold(a.String(), b.String())
}

// AddrKey returns the normalised map key for a.
func AddrKey(a Addr) string {
	if a == nil {
		return ""
	}
	return strings.ToLower(a.String())
}
