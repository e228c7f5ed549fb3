// Package sliceops holds byte slice helpers shared by the advertisement
// decoder and the UUID conversions.
package sliceops

// SwapBuf returns a reversed copy of in. The input is left untouched, so it
// is safe to call on buffers owned by the radio layer.
func SwapBuf(in []byte) []byte {
	a := make([]byte, len(in))
	for i, b := range in {
		a[len(in)-1-i] = b
	}
	return a
}

// IsZero reports whether every byte of b is zero.
func IsZero(b []byte) bool {
	for _, v := range b {
		if v != 0 {
			return false
		}
	}
	return true
}
