package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	central "github.com/rigado/blecentral"
)

var _ central.Observer = (*Collector)(nil)

func TestCounters(t *testing.T) {
	c := New()

	c.AdmissionDecided("service", true)
	c.AdmissionDecided("service", true)
	c.AdmissionDecided("pool-full", false)
	c.SessionOpened()
	c.SessionOpened()
	c.SessionClosed("remote-disconnect")
	c.MessageReceived(5)
	c.MessageReceived(3)
	c.ScanToggled(true)
	c.ScanToggled(false)
	c.ScanToggled(true)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"service decisions", testutil.ToFloat64(c.decisions.WithLabelValues("service")), 2},
		{"pool-full decisions", testutil.ToFloat64(c.decisions.WithLabelValues("pool-full")), 1},
		{"active", testutil.ToFloat64(c.active), 1},
		{"terminations", testutil.ToFloat64(c.terminations.WithLabelValues("remote-disconnect")), 1},
		{"messages", testutil.ToFloat64(c.messages), 2},
		{"bytes", testutil.ToFloat64(c.messageBytes), 8},
		{"starts", testutil.ToFloat64(c.scans.WithLabelValues("start")), 2},
		{"stops", testutil.ToFloat64(c.scans.WithLabelValues("stop")), 1},
		{"scanning", testutil.ToFloat64(c.scanning), 1},
	}
	for _, ch := range checks {
		if ch.got != ch.want {
			t.Fatalf("%s: got %v, want %v", ch.name, ch.got, ch.want)
		}
	}
}

func TestHandler(t *testing.T) {
	c := New()
	c.SessionOpened()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "blecentral_sessions_active 1") {
		t.Fatalf("unexpected body:\n%s", rec.Body.String())
	}
}
