package central

// Listener is notified of device lifecycle and message events. Identity is
// the string the peripheral declared during identification.
type Listener interface {
	OnDeviceConnected(identity string)
	OnDeviceDisconnected(identity string)
	OnMessageReceived(identity string, message []byte)
	OnSecureChannelEstablished(identity string)
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are skipped.
// Register it by pointer so that it can be unregistered again.
type ListenerFuncs struct {
	Connected              func(identity string)
	Disconnected           func(identity string)
	MessageReceived        func(identity string, message []byte)
	SecureChannelConnected func(identity string)
}

// OnDeviceConnected implements Listener.
func (l *ListenerFuncs) OnDeviceConnected(identity string) {
	if l.Connected != nil {
		l.Connected(identity)
	}
}

// OnDeviceDisconnected implements Listener.
func (l *ListenerFuncs) OnDeviceDisconnected(identity string) {
	if l.Disconnected != nil {
		l.Disconnected(identity)
	}
}

// OnMessageReceived implements Listener.
func (l *ListenerFuncs) OnMessageReceived(identity string, message []byte) {
	if l.MessageReceived != nil {
		l.MessageReceived(identity, message)
	}
}

// OnSecureChannelEstablished implements Listener.
func (l *ListenerFuncs) OnSecureChannelEstablished(identity string) {
	if l.SecureChannelConnected != nil {
		l.SecureChannelConnected(identity)
	}
}
