package central

// ConnState is a link state reported by the radio, numbered as on Android.
type ConnState int

// Link states.
const (
	StateDisconnected  ConnState = 0
	StateConnecting    ConnState = 1
	StateConnected     ConnState = 2
	StateDisconnecting ConnState = 3
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDisconnecting:
		return "disconnecting"
	}
	return "unknown"
}

// GATT status codes carried by link events.
const (
	StatusSuccess = 0x00
	StatusFailure = 0x101
)

// Handle is a radio-layer connection to one peripheral. Handles are compared
// with ==, so implementations must be comparable (pointers in practice).
type Handle interface {
	Addr() Addr
}

// RadioLink issues GATT requests. Every request is fire-and-forget: results
// arrive later on the LinkHandler passed to Connect. An implementation must
// never invoke the LinkHandler from inside one of these calls.
type RadioLink interface {
	// Connect starts a connection attempt and returns its handle.
	Connect(a Addr, h LinkHandler) (Handle, error)

	// Disconnect asks the radio to drop the link.
	Disconnect(h Handle) error

	// Close releases the handle. It is called exactly once per handle.
	Close(h Handle) error

	// DiscoverServices starts service discovery.
	DiscoverServices(h Handle) bool

	// EnableNotifications writes the client configuration descriptor of c.
	// Completion is reported by OnDescriptorWrite.
	EnableNotifications(h Handle, c *Characteristic) bool

	// Write queues a write to c.
	Write(h Handle, c *Characteristic, b []byte) bool
}

// LinkHandler receives the events of every connection made through a
// RadioLink. Each event carries the originating handle.
type LinkHandler interface {
	OnConnectionStateChange(h Handle, status int, state ConnState)
	OnServicesDiscovered(h Handle, p *Profile, status int)
	OnDescriptorWrite(h Handle, c *Characteristic, status int)
	OnCharacteristicChanged(h Handle, c *Characteristic, value []byte)
	OnCharacteristicWrite(h Handle, c *Characteristic, status int)
}
