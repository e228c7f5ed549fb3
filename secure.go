package central

// SecureChannelProvider negotiates an encrypted channel with a peripheral
// once it has identified itself.
type SecureChannelProvider interface {
	Establish(h Handle, identity string, cb SecureChannelCallback)
}

// SecureChannelCallback receives the outcome of a secure channel negotiation.
type SecureChannelCallback interface {
	OnSecureChannelEstablished(h Handle)
	OnMessageReceivedError(h Handle, err error)
	OnEstablishSecureChannelFailure(h Handle)
}
