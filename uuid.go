package central

import (
	"encoding/binary"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/rigado/blecentral/sliceops"
)

// UUID identifies a GATT service or characteristic. 16 and 32-bit
// identifiers are held in their expanded 128-bit form so that equality does
// not depend on how a peripheral chose to advertise them.
type UUID = uuid.UUID

// BaseUUID is the Bluetooth base UUID onto which short identifiers expand.
var BaseUUID = uuid.MustParse("00000000-0000-1000-8000-00805f9b34fb")

// ClientCharacteristicConfigUUID is the descriptor written to enable notifications.
var ClientCharacteristicConfigUUID = UUID16(0x2902)

// UUID16 expands a 16-bit identifier.
func UUID16(v uint16) UUID {
	return UUID32(uint32(v))
}

// UUID32 expands a 32-bit identifier.
func UUID32(v uint32) UUID {
	u := BaseUUID
	binary.BigEndian.PutUint32(u[:4], v)
	return u
}

// ParseUUID parses "180d", "0000180d" or a full 128-bit string, with or
// without dashes.
func ParseUUID(s string) (UUID, error) {
	s = strings.TrimSpace(s)
	compact := strings.Replace(s, "-", "", -1)

	switch len(compact) {
	case 4, 8:
		v, err := strconv.ParseUint(compact, 16, 32)
		if err != nil {
			return uuid.Nil, errors.Wrapf(err, "invalid short uuid %q", s)
		}
		return UUID32(uint32(v)), nil
	case 32:
		u, err := uuid.Parse(compact)
		if err != nil {
			return uuid.Nil, errors.Wrapf(err, "invalid uuid %q", s)
		}
		return u, nil
	}

	return uuid.Nil, errors.Errorf("invalid uuid %q: unexpected length %d", s, len(compact))
}

// MustParseUUID is like ParseUUID but panics on error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// UUIDFromLE converts the little-endian on-air encoding used in advertising
// data and ATT PDUs.
func UUIDFromLE(b []byte) (UUID, error) {
	switch len(b) {
	case 2:
		return UUID16(binary.LittleEndian.Uint16(b)), nil
	case 4:
		return UUID32(binary.LittleEndian.Uint32(b)), nil
	case 16:
		return uuid.FromBytes(sliceops.SwapBuf(b))
	}
	return uuid.Nil, errors.Errorf("invalid uuid length %d", len(b))
}

// UUIDToLE returns the shortest little-endian on-air encoding of u.
func UUIDToLE(u UUID) []byte {
	if v, ok := ShortUUID(u); ok {
		if v <= 0xffff {
			b := make([]byte, 2)
			binary.LittleEndian.PutUint16(b, uint16(v))
			return b
		}
		b := make([]byte, 4)
		binary.LittleEndian.PutUint32(b, v)
		return b
	}
	return sliceops.SwapBuf(u[:])
}

// ShortUUID returns the 32-bit value of u when u lies on the base UUID.
func ShortUUID(u UUID) (uint32, bool) {
	for i := 4; i < 16; i++ {
		if u[i] != BaseUUID[i] {
			return 0, false
		}
	}
	return binary.BigEndian.Uint32(u[:4]), true
}
