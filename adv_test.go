package central

import "testing"

func TestAdvertisementOverflowContains(t *testing.T) {
	mask := make([]byte, OverflowMaskLen)
	mask[15] = 0x04

	a := Advertisement{OverflowMask: make([]byte, OverflowMaskLen)}
	if a.OverflowContains(mask) {
		t.Fatalf("empty overflow area should not match")
	}

	a.OverflowMask[15] = 0x06
	if !a.OverflowContains(mask) {
		t.Fatalf("expected overflow area to contain mask")
	}

	if a.OverflowContains(make([]byte, OverflowMaskLen)) {
		t.Fatalf("zero mask must never match")
	}
	if a.OverflowContains(nil) {
		t.Fatalf("nil mask must never match")
	}
	if (Advertisement{}).OverflowContains(mask) {
		t.Fatalf("advertisement without overflow area must not match")
	}
}

func TestAdvertisementHasService(t *testing.T) {
	a := Advertisement{Services: []UUID{UUID16(0x180f), MustParseUUID("5e2a68a8-27be-43f9-8d1e-4546976fabd7")}}
	if !a.HasService(MustParseUUID("5e2a68a8-27be-43f9-8d1e-4546976fabd7")) {
		t.Fatalf("expected service to be found")
	}
	if a.HasService(UUID16(0x180d)) {
		t.Fatalf("unexpected service match")
	}
}

func TestAdvertisementToMap(t *testing.T) {
	a := Advertisement{
		Addr:        NewAddr("AA:BB:CC:DD:EE:FF"),
		Connectable: true,
		Services:    []UUID{UUID16(0x180d)},
	}
	m := a.ToMap()
	if m[AdvertisementMapKeys.MAC] != "aabbccddeeff" {
		t.Fatalf("unexpected mac %v", m[AdvertisementMapKeys.MAC])
	}
	if m[AdvertisementMapKeys.RSSI] != -128 {
		t.Fatalf("expected placeholder rssi, got %v", m[AdvertisementMapKeys.RSSI])
	}
	ss, ok := m[AdvertisementMapKeys.Services].([]string)
	if !ok || len(ss) != 1 {
		t.Fatalf("unexpected services %v", m[AdvertisementMapKeys.Services])
	}
}
