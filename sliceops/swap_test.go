package sliceops

import (
	"bytes"
	"testing"
)

func TestSwapBuf(t *testing.T) {
	in := []byte{1, 2, 3, 4, 5}
	out := SwapBuf(in)
	if !bytes.Equal(out, []byte{5, 4, 3, 2, 1}) {
		t.Fatalf("unexpected swap result %v", out)
	}
	if !bytes.Equal(in, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("input modified: %v", in)
	}
	if len(SwapBuf(nil)) != 0 {
		t.Fatalf("expected empty result for nil input")
	}
}

func TestIsZero(t *testing.T) {
	if !IsZero(make([]byte, 16)) {
		t.Fatalf("expected zero buffer")
	}
	if IsZero([]byte{0, 0, 1}) {
		t.Fatalf("expected non-zero buffer")
	}
}
