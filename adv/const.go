package adv

import "errors"

// MaxEIRPacketLength is the maximum allowed AdvertisingPacket
// and ScanResponsePacket length.
const MaxEIRPacketLength = 31

// ErrNotFit indicates that the field doesn't fit into the packet.
var ErrNotFit = errors.New("field doesn't fit into the packet")

// ErrInvalid indicates that the field is malformed.
var ErrInvalid = errors.New("invalid field")

// ErrEmptyPDU is returned when there are no bytes to decode.
var ErrEmptyPDU = errors.New("nil/empty pdu")

// Advertising flags.
const (
	FlagLimitedDiscoverable = 0x01
	FlagGeneralDiscoverable = 0x02
	FlagLEOnly              = 0x04
)

// Advertising data types.
// https://www.bluetooth.org/en-us/specification/assigned-numbers/generic-access-profile
const (
	flags            = 0x01
	someUUID16       = 0x02
	allUUID16        = 0x03
	someUUID32       = 0x04
	allUUID32        = 0x05
	someUUID128      = 0x06
	allUUID128       = 0x07
	shortName        = 0x08
	completeName     = 0x09
	txPower          = 0x0a
	manufacturerData = 0xff
)

// AppleCompanyID prefixes the manufacturer data that carries the iOS
// background overflow area.
const AppleCompanyID = 0x004C

// overflowAreaType is the first byte of Apple manufacturer data when the
// remaining 16 bytes are a hashed service UUID bitmask.
const overflowAreaType = 0x01
