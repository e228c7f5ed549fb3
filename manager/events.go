package manager

import (
	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/session"
)

// Teardown reasons reported to the observer and the log.
const (
	reasonConnectFailed   = "connect-failed"
	reasonRemote          = "remote-disconnect"
	reasonDiscoveryFailed = "discovery-failed"
	reasonServiceMissing  = "service-missing"
	reasonCharMissing     = "characteristic-missing"
	reasonNotifyFailed    = "notify-failed"
	reasonDescriptor      = "descriptor-failed"
	reasonStopped         = "stopped"
)

func nop() {}

// OnAdvertisement implements central.ScanHandler.
func (m *Manager) OnAdvertisement(a central.Advertisement) {
	if !m.running.Load() || a.Addr == nil {
		return
	}

	d := m.filter.Decide(a, m.pool, m.ignored)
	m.observer.AdmissionDecided(d.String(), d.Accepted())
	if !d.Accepted() {
		m.log.Debugf("%v: %v", a.Addr, d)
		return
	}

	s, err := m.pool.TryReserve(a.Addr)
	if err != nil {
		// lost a race with another advertisement
		m.log.Debugf("%v: %v", a.Addr, err)
		return
	}
	m.observer.SessionOpened()
	s.Log().Infof("connecting (%v, rssi %d)", d, a.RSSI)

	s.Lock()
	var after func()
	if h, err := m.link.Connect(a.Addr, m); err != nil {
		s.Log().Warnf("connect: %v", err)
		after = m.terminate(s, reasonConnectFailed, false, false)
	} else if err := s.Bind(h); err != nil {
		s.Log().Errorf("bind: %v", err)
		after = m.terminate(s, reasonConnectFailed, false, false)
		after = chain(after, func() { m.link.Close(h) })
	} else if !m.running.Load() {
		after = m.terminate(s, reasonStopped, false, true)
	}
	s.Unlock()

	if after != nil {
		after()
	}
}

// OnScanFailed implements central.ScanHandler. Scanning is not retried
// until the next change in pool occupancy.
func (m *Manager) OnScanFailed(code int) {
	m.log.Errorf("scan failed with code %d", code)
	m.pool.ScanLost()
}

// withSession resolves h and runs fn under the session lock. The returned
// func runs after the lock is released.
func (m *Manager) withSession(h central.Handle, event string, fn func(s *session.Session) func()) {
	s := m.pool.Find(h)
	if s == nil {
		if h == nil {
			m.log.Warnf("%s: nil handle", event)
		} else {
			m.log.Debugf("%s: no session for %v", event, h.Addr())
		}
		return
	}

	s.Lock()
	if !s.Owns(h) {
		s.Unlock()
		s.Log().Debugf("%s: stale handle", event)
		return
	}
	after := fn(s)
	s.Unlock()

	if after != nil {
		after()
	}
}

// terminate moves s to Disconnecting. The caller holds the session lock
// and must run the returned func after releasing it. Only the first call
// for a session has any effect.
func (m *Manager) terminate(s *session.Session, reason string, ignoreDevice, disconnect bool) func() {
	identified := s.State() == session.Identified
	h, first := s.Terminate()
	if !first {
		return nop
	}
	identity := s.Identity()
	if ignoreDevice && m.ignored.Add(s.Addr()) {
		s.Log().Infof("ignoring device for the rest of the session")
	}
	s.Log().Infof("session closed: %s", reason)

	return func() {
		if h != nil {
			if disconnect {
				if err := m.link.Disconnect(h); err != nil {
					s.Log().Debugf("disconnect: %v", err)
				}
			}
			if err := m.link.Close(h); err != nil {
				s.Log().Warnf("close: %v", err)
			}
		}
		m.pool.Release(s)
		m.observer.SessionClosed(reason)
		if identified {
			m.dispatcher.DeviceDisconnected(identity)
		}
	}
}

func chain(fns ...func()) func() {
	return func() {
		for _, f := range fns {
			f()
		}
	}
}

// OnConnectionStateChange implements central.LinkHandler.
func (m *Manager) OnConnectionStateChange(h central.Handle, status int, state central.ConnState) {
	m.withSession(h, "connection state", func(s *session.Session) func() {
		switch state {
		case central.StateConnected:
			if s.State() != session.Connecting {
				s.Log().Debugf("connected again in %v", s.State())
				return nil
			}
			if status != central.StatusSuccess {
				s.Log().Warnf("connected with status %#x", status)
				return m.terminate(s, reasonConnectFailed, false, true)
			}
			if err := s.Advance(session.AwaitingServices); err != nil {
				s.Log().Error(err)
				return nil
			}
			if !m.link.DiscoverServices(h) {
				s.Log().Warn("service discovery request failed")
				return m.terminate(s, reasonDiscoveryFailed, false, true)
			}
			return nil

		case central.StateDisconnected:
			reason := reasonRemote
			if s.State() == session.Connecting {
				reason = reasonConnectFailed
			}
			s.Log().Infof("disconnected with status %#x", status)
			return m.terminate(s, reason, false, false)
		}

		s.Log().Debugf("connection state %v, status %#x", state, status)
		return nil
	})
}

// OnServicesDiscovered implements central.LinkHandler.
func (m *Manager) OnServicesDiscovered(h central.Handle, p *central.Profile, status int) {
	m.withSession(h, "services discovered", func(s *session.Session) func() {
		if s.State() != session.AwaitingServices {
			s.Log().Debugf("services discovered in %v", s.State())
			return nil
		}
		if status != central.StatusSuccess {
			s.Log().Warnf("service discovery status %#x", status)
			return m.terminate(s, reasonDiscoveryFailed, false, true)
		}

		svc := p.FindService(m.cfg.service)
		if svc == nil {
			s.Log().Warnf("service %v not found", m.cfg.service)
			return m.terminate(s, reasonServiceMissing, true, true)
		}
		read := svc.FindCharacteristic(m.cfg.read)
		write := svc.FindCharacteristic(m.cfg.write)
		if read == nil || write == nil {
			s.Log().Warn("unable to find expected characteristics on peripheral")
			return m.terminate(s, reasonCharMissing, true, true)
		}

		if err := s.SetChannels(read, write); err != nil {
			s.Log().Error(err)
			return nil
		}
		if !m.link.EnableNotifications(h, read) {
			s.Log().Warn("enable notifications failed")
			return m.terminate(s, reasonNotifyFailed, false, true)
		}
		s.Log().Debug("service and characteristics discovered")
		return nil
	})
}

// OnDescriptorWrite implements central.LinkHandler. A successful write of
// the read channel's configuration descriptor makes the session Ready and
// sends the identification nonce.
func (m *Manager) OnDescriptorWrite(h central.Handle, c *central.Characteristic, status int) {
	m.withSession(h, "descriptor write", func(s *session.Session) func() {
		read, write := s.Channels()
		if s.State() != session.AwaitingServices || read == nil || c == nil || c.UUID != read.UUID {
			s.Log().Debugf("unexpected descriptor write in %v", s.State())
			return nil
		}
		if status != central.StatusSuccess {
			s.Log().Warnf("descriptor write status %#x", status)
			return m.terminate(s, reasonDescriptor, false, true)
		}
		if err := s.Advance(session.Ready); err != nil {
			s.Log().Error(err)
			return nil
		}

		// the outcome of this write does not affect the session
		if !m.link.Write(h, write, m.nonce()) {
			s.Log().Warn("nonce write failed")
		}
		return nil
	})
}

// OnCharacteristicChanged implements central.LinkHandler. The first
// notification after Ready is the peripheral's identity; later ones are
// relayed as messages.
func (m *Manager) OnCharacteristicChanged(h central.Handle, c *central.Characteristic, value []byte) {
	if c == nil || c.UUID != m.cfg.read {
		return
	}

	m.withSession(h, "characteristic changed", func(s *session.Session) func() {
		switch s.State() {
		case session.Ready:
			identity := string(value)
			if err := s.Identify(identity); err != nil {
				s.Log().Error(err)
				return nil
			}
			s.Log().Infof("device identified as %q", identity)
			return func() {
				m.dispatcher.DeviceConnected(identity)
				if m.secure != nil {
					m.secure.Establish(h, identity, m)
				}
			}

		case session.Identified:
			identity := s.Identity()
			msg := append([]byte{}, value...)
			return func() {
				m.observer.MessageReceived(len(msg))
				m.dispatcher.MessageReceived(identity, msg)
			}
		}

		s.Log().Debugf("notification dropped in %v", s.State())
		return nil
	})
}

// OnCharacteristicWrite implements central.LinkHandler.
func (m *Manager) OnCharacteristicWrite(h central.Handle, c *central.Characteristic, status int) {
	if status != central.StatusSuccess && h != nil {
		m.log.Debugf("%v: write status %#x", h.Addr(), status)
	}
}

// OnSecureChannelEstablished implements central.SecureChannelCallback. The
// event is dropped if the session is not identified.
func (m *Manager) OnSecureChannelEstablished(h central.Handle) {
	m.withSession(h, "secure channel", func(s *session.Session) func() {
		if s.State() != session.Identified {
			s.Log().Debug("secure channel before identification")
			return nil
		}
		identity := s.Identity()
		return func() {
			m.dispatcher.SecureChannelEstablished(identity)
		}
	})
}

// OnMessageReceivedError implements central.SecureChannelCallback.
func (m *Manager) OnMessageReceivedError(h central.Handle, err error) {
	m.withSession(h, "secure message error", func(s *session.Session) func() {
		s.Log().Warnf("secure channel message error for %q: %v", s.Identity(), err)
		return nil
	})
}

// OnEstablishSecureChannelFailure implements central.SecureChannelCallback.
func (m *Manager) OnEstablishSecureChannelFailure(h central.Handle) {
	m.withSession(h, "secure channel failure", func(s *session.Session) func() {
		s.Log().Warnf("secure channel failed for %q", s.Identity())
		return nil
	})
}
