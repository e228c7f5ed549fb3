package central

// Scanner drives discovery. At most one scan is active at any given time.
type Scanner interface {
	// StartScanning starts delivering advertisements to h. A nil filter
	// reports every result.
	StartScanning(f AdvFilter, h ScanHandler) error

	// StopScanning stops scanning.
	StopScanning() error

	// IsScanning reports whether a scan is active.
	IsScanning() bool
}

// ScanHandler receives scan results.
type ScanHandler interface {
	OnAdvertisement(a Advertisement)
	OnScanFailed(code int)
}
