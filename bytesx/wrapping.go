package bytesx

// WrappingU32 is a counter that lives on a 32-bit circle, as used for RTP
// sequence numbers and RTP timestamps (spec §3 "Wrapping 32-bit counter").
type WrappingU32 uint32

// DiffU32 returns the signed distance from b to a, i.e. the value d such that
// d+b == a (mod 2^32), interpreting both as points on a 32-bit circle. The
// result is always in [-2^31, 2^31].
func DiffU32(a, b uint32) int32 {
	return int32(a - b)
}

// Diff is the method form of DiffU32.
func (a WrappingU32) Diff(b WrappingU32) int32 {
	return DiffU32(uint32(a), uint32(b))
}

// Add advances a wrapping counter by a signed delta.
func (a WrappingU32) Add(delta int32) WrappingU32 {
	return WrappingU32(uint32(a) + uint32(delta))
}

// After reports whether a is ahead of b on the 32-bit circle, i.e.
// Diff(a, b) > 0.
func (a WrappingU32) After(b WrappingU32) bool {
	return a.Diff(b) > 0
}
