package central

import (
	"encoding/hex"
	"strings"

	"github.com/rigado/blecentral/sliceops"
)

// OverflowMaskLen is the size of the iOS background overflow area.
const OverflowMaskLen = 16

// AdvFilter returns true if the advertisement matches specified condition.
// It is handed to the Scanner as an optional hardware-level filter.
type AdvFilter func(a Advertisement) bool

// Advertisement is a single discovery event. It is a value type: the scanner
// hands over a fresh one per result and nothing in this module mutates it.
type Advertisement struct {
	Addr        Addr
	Connectable bool
	LocalName   string
	RSSI        int

	// Services lists every service UUID found in the complete and incomplete
	// lists of the advertising data and scan response.
	Services []UUID

	// ManufacturerData includes the two byte company identifier.
	ManufacturerData []byte

	// OverflowMask is the 128-bit background overflow area advertised by iOS
	// peripherals in place of their service UUIDs. Nil if absent.
	OverflowMask []byte

	// PayloadLen is the raw length of advertising data plus scan response.
	PayloadLen int
}

// HasService reports whether u is among the advertised service UUIDs.
func (a Advertisement) HasService(u UUID) bool {
	for _, s := range a.Services {
		if s == u {
			return true
		}
	}
	return false
}

// OverflowContains reports whether every bit of mask is set in the overflow
// area. An empty or all-zero mask never matches.
func (a Advertisement) OverflowContains(mask []byte) bool {
	if len(mask) == 0 || sliceops.IsZero(mask) || len(a.OverflowMask) != len(mask) {
		return false
	}
	for i := range mask {
		if a.OverflowMask[i]&mask[i] != mask[i] {
			return false
		}
	}
	return true
}

// AdvertisementMapKeys are the keys used by ToMap.
var AdvertisementMapKeys = struct {
	MAC         string
	RSSI        string
	Name        string
	MFG         string
	Services    string
	Overflow    string
	Connectable string
	Length      string
}{
	MAC:         "mac",
	RSSI:        "rssi",
	Name:        "name",
	MFG:         "mfg",
	Services:    "services",
	Overflow:    "overflow",
	Connectable: "connectable",
	Length:      "length",
}

// ToMap flattens the advertisement for logging and JSON output.
func (a Advertisement) ToMap() map[string]interface{} {
	keys := AdvertisementMapKeys
	m := map[string]interface{}{
		keys.Connectable: a.Connectable,
		keys.Length:      a.PayloadLen,
	}

	if a.Addr != nil {
		m[keys.MAC] = strings.Replace(a.Addr.String(), ":", "", -1)
	}
	if a.RSSI != 0 {
		m[keys.RSSI] = a.RSSI
	} else {
		m[keys.RSSI] = -128
	}
	if len(a.LocalName) != 0 {
		m[keys.Name] = a.LocalName
	}
	if a.ManufacturerData != nil {
		m[keys.MFG] = hex.EncodeToString(a.ManufacturerData)
	}
	if len(a.Services) != 0 {
		ss := make([]string, 0, len(a.Services))
		for _, s := range a.Services {
			ss = append(ss, s.String())
		}
		m[keys.Services] = ss
	}
	if a.OverflowMask != nil {
		m[keys.Overflow] = hex.EncodeToString(a.OverflowMask)
	}

	return m
}
