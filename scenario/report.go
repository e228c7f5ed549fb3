package scenario

import (
	"os"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	central "github.com/rigado/blecentral"
	"github.com/rigado/blecentral/session"
	"github.com/rigado/blecentral/sim"
)

// Recorded event kinds.
const (
	KindConnected     = "connected"
	KindDisconnected  = "disconnected"
	KindMessage       = "message"
	KindSecureChannel = "secure-channel"
)

// Record is one listener event.
type Record struct {
	AtMs     int64  `json:"at_ms"`
	Kind     string `json:"kind"`
	Identity string `json:"identity"`
	Message  string `json:"message,omitempty"`
}

// Recorder is a central.Listener that keeps every event in order.
type Recorder struct {
	mu      sync.Mutex
	start   time.Time
	records []Record
}

// NewRecorder starts the recorder's clock.
func NewRecorder() *Recorder {
	return &Recorder{start: time.Now()}
}

func (r *Recorder) add(kind, identity string, msg []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, Record{
		AtMs:     time.Since(r.start).Milliseconds(),
		Kind:     kind,
		Identity: identity,
		Message:  string(msg),
	})
}

// OnDeviceConnected implements central.Listener.
func (r *Recorder) OnDeviceConnected(identity string) { r.add(KindConnected, identity, nil) }

// OnDeviceDisconnected implements central.Listener.
func (r *Recorder) OnDeviceDisconnected(identity string) { r.add(KindDisconnected, identity, nil) }

// OnMessageReceived implements central.Listener.
func (r *Recorder) OnMessageReceived(identity string, msg []byte) {
	r.add(KindMessage, identity, msg)
}

// OnSecureChannelEstablished implements central.Listener.
func (r *Recorder) OnSecureChannelEstablished(identity string) {
	r.add(KindSecureChannel, identity, nil)
}

// Records returns a copy of the events so far.
func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Record{}, r.records...)
}

// Count returns how many events of kind were recorded.
func (r *Recorder) Count(kind string) int {
	n := 0
	for _, rec := range r.Records() {
		if rec.Kind == kind {
			n++
		}
	}
	return n
}

// Report summarises a run.
type Report struct {
	Scenario  string         `json:"scenario"`
	Started   time.Time      `json:"started"`
	Elapsed   string         `json:"elapsed"`
	Events    []Record       `json:"events"`
	Connected []string       `json:"connected"`
	Sessions  []session.Info `json:"sessions"`
	Ignored   []string       `json:"ignored"`
	Radio     sim.Stats      `json:"radio"`
}

// State is what a report is built from.
type State interface {
	ConnectedDevices() []string
	Sessions() []session.Info
	Ignored() []central.Addr
}

// NewReport captures the current state of a run.
func NewReport(name string, rec *Recorder, st State, r *sim.Radio) *Report {
	rep := &Report{
		Scenario:  name,
		Started:   rec.start,
		Elapsed:   time.Since(rec.start).Round(time.Millisecond).String(),
		Events:    rec.Records(),
		Connected: st.ConnectedDevices(),
		Sessions:  st.Sessions(),
		Radio:     r.Stats(),
	}
	for _, a := range st.Ignored() {
		rep.Ignored = append(rep.Ignored, a.String())
	}
	return rep
}

// Save writes the report as indented JSON.
func (r *Report) Save(path string) error {
	out, err := jsoniter.MarshalIndent(r, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode report")
	}
	return errors.Wrap(os.WriteFile(path, out, 0644), "write report")
}

// LoadReport reads a report written by Save.
func LoadReport(path string) (*Report, error) {
	in, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read report")
	}
	var r Report
	if err := jsoniter.Unmarshal(in, &r); err != nil {
		return nil, errors.Wrap(err, "decode report")
	}
	return &r, nil
}
