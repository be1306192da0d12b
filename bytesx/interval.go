package bytesx

import "math"

// PtpTimeInterval is a signed fixed-point nanosecond value with a 16-bit
// sub-nanosecond fraction, matching the PTP TimeInterval/correctionField
// wire representation (spec §3/§4.1): wire = round(seconds*1e9+ns) << 16 |
// fraction, saturating at int64 bounds on overflow.
type PtpTimeInterval int64

const subNanoBits = 16

// NewPtpTimeIntervalNanoseconds builds a PtpTimeInterval from a nanosecond
// value, saturating on overflow.
func NewPtpTimeIntervalNanoseconds(ns float64) PtpTimeInterval {
	scaled := ns * float64(int64(1)<<subNanoBits)
	if scaled >= math.MaxInt64 {
		return PtpTimeInterval(math.MaxInt64)
	}
	if scaled <= math.MinInt64 {
		return PtpTimeInterval(math.MinInt64)
	}
	return PtpTimeInterval(scaled)
}

// Nanoseconds returns the interval as a floating point nanosecond value.
func (t PtpTimeInterval) Nanoseconds() float64 {
	return float64(t) / float64(int64(1)<<subNanoBits)
}

// ToWire returns the signed 64-bit scaled-nanosecond wire representation.
// This is the identity function on the underlying int64: the type already
// stores the wire format.
func (t PtpTimeInterval) ToWire() int64 {
	return int64(t)
}

// FromWire builds a PtpTimeInterval from its wire representation.
func FromWire(wire int64) PtpTimeInterval {
	return PtpTimeInterval(wire)
}

// Add returns t+u, saturating on overflow.
func (t PtpTimeInterval) Add(u PtpTimeInterval) PtpTimeInterval {
	sum := int64(t) + int64(u)
	if (u > 0 && sum < int64(t)) || (u < 0 && sum > int64(t)) {
		if u > 0 {
			return math.MaxInt64
		}
		return math.MinInt64
	}
	return PtpTimeInterval(sum)
}

// Sub returns t-u, saturating on overflow.
func (t PtpTimeInterval) Sub(u PtpTimeInterval) PtpTimeInterval {
	return t.Add(-u)
}

// MulScalar returns t*scalar, saturating on overflow.
func (t PtpTimeInterval) MulScalar(scalar float64) PtpTimeInterval {
	product := float64(t) * scalar
	if product >= math.MaxInt64 {
		return math.MaxInt64
	}
	if product <= math.MinInt64 {
		return math.MinInt64
	}
	return PtpTimeInterval(product)
}

// DivScalar returns t/scalar, saturating on overflow. Dividing by zero
// saturates to the sign of t (or MaxInt64 for a zero dividend).
func (t PtpTimeInterval) DivScalar(scalar float64) PtpTimeInterval {
	if scalar == 0 {
		if t < 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	return t.MulScalar(1 / scalar)
}
