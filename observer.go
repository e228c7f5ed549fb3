package central

// Observer receives counters from the session manager. Implementations must
// be safe for concurrent use and must not block.
type Observer interface {
	AdmissionDecided(decision string, accepted bool)
	SessionOpened()
	SessionClosed(reason string)
	MessageReceived(n int)
	ScanToggled(scanning bool)
}

// NopObserver discards everything.
type NopObserver struct{}

func (NopObserver) AdmissionDecided(string, bool) {}
func (NopObserver) SessionOpened()                {}
func (NopObserver) SessionClosed(string)          {}
func (NopObserver) MessageReceived(int)           {}
func (NopObserver) ScanToggled(bool)              {}
