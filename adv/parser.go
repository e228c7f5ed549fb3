package adv

import (
	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
)

// Fields is the decoded content of one or more EIR style payloads.
type Fields struct {
	Flags      byte
	HasFlags   bool
	Services   []central.UUID
	LocalName  string
	TxPower    int8
	HasTxPower bool

	// ManufacturerData keeps the company identifier of the first record.
	ManufacturerData []byte
}

type record struct {
	elemSz int
	minSz  int
}

var records = map[byte]record{
	flags:            {0, 1},
	someUUID16:       {2, 2},
	allUUID16:        {2, 2},
	someUUID32:       {4, 4},
	allUUID32:        {4, 4},
	someUUID128:      {16, 16},
	allUUID128:       {16, 16},
	shortName:        {0, 1},
	completeName:     {0, 1},
	txPower:          {0, 1},
	manufacturerData: {0, 2},
}

func splitUUIDs(size int, b []byte) ([]central.UUID, error) {
	if size <= 0 {
		return nil, errors.New("invalid size")
	}
	count := len(b) / size
	if len(b)%size != 0 || count == 0 {
		return nil, errors.New("incorrect size")
	}

	out := make([]central.UUID, 0, count)
	for j := 0; j < len(b); j += size {
		u, err := central.UUIDFromLE(b[j : j+size])
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, nil
}

// Parse decodes the records of pdu. A zero length byte ends the significant
// part of the payload; anything after it is padding.
func Parse(pdu []byte) (*Fields, error) {
	if len(pdu) == 0 {
		return nil, ErrEmptyPDU
	}

	f := &Fields{}
	for i := 0; i < len(pdu); {
		length := int(pdu[i])
		if length == 0 {
			break
		}

		if i+length >= len(pdu) {
			return f, errors.Errorf("buffer overflow: want %v, have %v, idx %v", i+length, len(pdu), i)
		}

		typ := pdu[i+1]
		data := pdu[i+2 : i+1+length]
		i += length + 1

		rec, ok := records[typ]
		if !ok || len(data) == 0 {
			continue
		}
		if rec.minSz > len(data) {
			return f, errors.Errorf("adv type %#x: min length %v, have %v", typ, rec.minSz, len(data))
		}

		if rec.elemSz > 0 {
			uu, err := splitUUIDs(rec.elemSz, data)
			if err != nil {
				return f, errors.Wrapf(err, "adv type %#x", typ)
			}
			f.Services = appendUnique(f.Services, uu...)
			continue
		}

		switch typ {
		case flags:
			f.Flags, f.HasFlags = data[0], true
		case shortName:
			if f.LocalName == "" {
				f.LocalName = string(data)
			}
		case completeName:
			f.LocalName = string(data)
		case txPower:
			f.TxPower, f.HasTxPower = int8(data[0]), true
		case manufacturerData:
			if f.ManufacturerData == nil {
				f.ManufacturerData = append([]byte{}, data...)
			} else {
				// the scan response repeats the company id
				f.ManufacturerData = append(f.ManufacturerData, data[2:]...)
			}
		}
	}

	return f, nil
}

func appendUnique(dst []central.UUID, uu ...central.UUID) []central.UUID {
next:
	for _, u := range uu {
		for _, d := range dst {
			if d == u {
				continue next
			}
		}
		dst = append(dst, u)
	}
	return dst
}

// OverflowArea extracts the 16 byte background overflow bitmask from Apple
// manufacturer data, or returns nil.
func OverflowArea(md []byte) []byte {
	if len(md) != 3+central.OverflowMaskLen {
		return nil
	}
	if md[0] != byte(AppleCompanyID) || md[1] != byte(AppleCompanyID>>8) || md[2] != overflowAreaType {
		return nil
	}
	return append([]byte{}, md[3:]...)
}

// Decode builds an Advertisement out of the advertising data and an optional
// scan response. Empty payloads are allowed and decode to an advertisement
// carrying only the address.
func Decode(a central.Addr, connectable bool, rssi int, data ...[]byte) (central.Advertisement, error) {
	out := central.Advertisement{
		Addr:        a,
		Connectable: connectable,
		RSSI:        rssi,
	}

	for _, pdu := range data {
		out.PayloadLen += len(pdu)
		if len(pdu) == 0 {
			continue
		}

		f, err := Parse(pdu)
		if err != nil {
			return out, errors.Wrapf(err, "decode %v", a)
		}

		out.Services = appendUnique(out.Services, f.Services...)
		if f.LocalName != "" {
			out.LocalName = f.LocalName
		}
		if f.ManufacturerData != nil {
			if out.ManufacturerData == nil {
				out.ManufacturerData = f.ManufacturerData
			} else {
				out.ManufacturerData = append(out.ManufacturerData, f.ManufacturerData[2:]...)
			}
		}
	}

	out.OverflowMask = OverflowArea(out.ManufacturerData)
	return out, nil
}
