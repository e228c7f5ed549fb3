package scenario

import (
	"context"
	"time"

	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/sim"
)

// Controller is the part of the session manager a timeline drives.
type Controller interface {
	SendMessage(identity string, payload []byte) error
	Disconnect(identity string) error
}

// Setup puts every peripheral that is not delayed on air.
func (s *Scenario) Setup(r *sim.Radio, d Defaults) error {
	for i := range s.Peripherals {
		p := &s.Peripherals[i]
		if p.Delayed {
			continue
		}
		if err := advertise(r, p, d); err != nil {
			return err
		}
	}
	return nil
}

func advertise(r *sim.Radio, p *Peripheral, d Defaults) error {
	sp, err := p.Build(d)
	if err != nil {
		return err
	}
	return r.Advertise(sp)
}

// Play runs the timeline against r and c, starting now. Failed sends and
// disconnects are logged; the timeline goes on. It returns when the last
// event has run or ctx is done.
func (s *Scenario) Play(ctx context.Context, r *sim.Radio, c Controller, d Defaults) error {
	log := central.GetLogger().ChildLogger(map[string]interface{}{"scenario": s.Name})
	start := time.Now()

	for _, e := range s.Timeline {
		if wait := time.Until(start.Add(e.At())); wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		log.Debugf("%v %s %s%s", e.At(), e.Action, e.Device, e.Identity)
		switch e.Action {
		case ActionAdvertise:
			if err := advertise(r, s.Find(e.Device), d); err != nil {
				return errors.Wrapf(err, "advertise %s", e.Device)
			}
		case ActionDrop:
			r.Drop(e.Device)
		case ActionRescan:
			r.Rescan()
		case ActionNotify:
			if !r.Notify(e.Device, []byte(e.Data)) {
				log.Warnf("notify %s: no link", e.Device)
			}
		case ActionSend:
			if err := c.SendMessage(e.Identity, []byte(e.Data)); err != nil {
				log.Warnf("send to %s: %v", e.Identity, err)
			}
		case ActionDisconnect:
			if err := c.Disconnect(e.Identity); err != nil {
				log.Warnf("disconnect %s: %v", e.Identity, err)
			}
		}
		r.Settle()
	}
	return nil
}
