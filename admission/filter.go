// Package admission decides which advertisements are worth a connection
// attempt. Decisions depend only on their inputs.
package admission

import (
	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/sliceops"
)

// Decision is the outcome of Decide, one value per rule.
type Decision int

// Decisions in evaluation order. The first matching rule wins.
const (
	RejectNotConnectable Decision = iota
	RejectPoolFull
	RejectDuplicate
	AcceptService
	RejectIgnored
	RejectUnrecognized
	RejectUnknown
	AcceptUnknown
)

var decisionNames = map[Decision]string{
	RejectNotConnectable: "not-connectable",
	RejectPoolFull:       "pool-full",
	RejectDuplicate:      "duplicate",
	AcceptService:        "service",
	RejectIgnored:        "ignored",
	RejectUnrecognized:   "unrecognized",
	RejectUnknown:        "unknown-rejected",
	AcceptUnknown:        "unknown-accepted",
}

func (d Decision) String() string {
	if s, ok := decisionNames[d]; ok {
		return s
	}
	return "invalid"
}

// Accepted reports whether d allows a connection attempt.
func (d Decision) Accepted() bool {
	return d == AcceptService || d == AcceptUnknown
}

// PoolView is the part of the session pool the filter reads.
type PoolView interface {
	Count() int
	Capacity() int
	Has(a central.Addr) bool
}

// IgnoreView is the part of the ignore registry the filter reads.
type IgnoreView interface {
	Contains(a central.Addr) bool
}

// Filter holds the immutable matching configuration.
type Filter struct {
	service central.UUID
	mask    []byte
	unknown central.UnknownPolicy
}

// New returns a filter for service. mask is the 16 byte overflow bitmask; a
// nil or all-zero mask never matches. A nil policy rejects unknown devices.
func New(service central.UUID, mask []byte, unknown central.UnknownPolicy) (*Filter, error) {
	if mask != nil && len(mask) != central.OverflowMaskLen {
		return nil, errors.Wrapf(central.ErrInvalidConfig, "overflow mask is %d bytes, want %d", len(mask), central.OverflowMaskLen)
	}
	if unknown == nil {
		unknown = central.RejectUnknown
	}
	f := &Filter{service: service, unknown: unknown}
	if mask != nil && !sliceops.IsZero(mask) {
		f.mask = append([]byte{}, mask...)
	}
	return f, nil
}

// Recognized reports whether a carries the target service, either in its
// service list or in the overflow area.
func (f *Filter) Recognized(a central.Advertisement) bool {
	if a.HasService(f.service) {
		return true
	}
	return f.mask != nil && a.OverflowContains(f.mask)
}

// Decide runs the admission rules against a.
func (f *Filter) Decide(a central.Advertisement, pool PoolView, ignored IgnoreView) Decision {
	switch {
	case !a.Connectable:
		return RejectNotConnectable
	case pool.Count() >= pool.Capacity():
		return RejectPoolFull
	case pool.Has(a.Addr):
		return RejectDuplicate
	case f.Recognized(a):
		return AcceptService
	case ignored.Contains(a.Addr):
		return RejectIgnored
	case len(a.Services) > 0:
		return RejectUnrecognized
	case f.unknown(a):
		return AcceptUnknown
	}
	return RejectUnknown
}

// ShouldConnect reports whether a connection attempt should be made.
func (f *Filter) ShouldConnect(a central.Advertisement, pool PoolView, ignored IgnoreView) bool {
	return f.Decide(a, pool, ignored).Accepted()
}
