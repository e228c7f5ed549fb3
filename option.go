package central

// UnknownPolicy decides admission for connectable advertisements that carry
// no service information at all. It must be pure: the admission filter
// relies on identical inputs producing identical decisions.
type UnknownPolicy func(a Advertisement) bool

// RejectUnknown never connects to devices of unknown interest. Connecting
// to them quickly exhausts the bounded pool, so it is the default.
func RejectUnknown(Advertisement) bool { return false }

// AcceptUnknown connects to any connectable device that advertises nothing.
func AcceptUnknown(Advertisement) bool { return true }

// ManagerOption is an interface which the session manager implements to
// allow using configuration options
type ManagerOption interface {
	SetUnknownPolicy(UnknownPolicy) error
	SetSecureChannel(SecureChannelProvider) error
	SetObserver(Observer) error
	SetNonceFunc(func() []byte) error
	SetLogger(Logger) error
}

// An Option is a configuration function, which configures the manager.
type Option func(ManagerOption) error

// OptUnknownPolicy overrides the policy for advertisements without services.
func OptUnknownPolicy(p UnknownPolicy) Option {
	return func(opt ManagerOption) error {
		return opt.SetUnknownPolicy(p)
	}
}

// OptSecureChannel hands identified sessions to p.
func OptSecureChannel(p SecureChannelProvider) Option {
	return func(opt ManagerOption) error {
		return opt.SetSecureChannel(p)
	}
}

// OptObserver reports counters to o.
func OptObserver(o Observer) Option {
	return func(opt ManagerOption) error {
		return opt.SetObserver(o)
	}
}

// OptNonce overrides the generator of the identification nonce.
func OptNonce(f func() []byte) Option {
	return func(opt ManagerOption) error {
		return opt.SetNonceFunc(f)
	}
}

// OptLogger makes the manager log through l instead of the package logger.
func OptLogger(l Logger) Option {
	return func(opt ManagerOption) error {
		return opt.SetLogger(l)
	}
}
