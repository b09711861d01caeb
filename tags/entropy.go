package tags

import (
	"math"
	"math/bits"

	"github.com/spacemeshos/fixed"
)

// EntropyScale is the fixed-point denominator for entropy values: entropy is
// expressed in milli-bits (1000 = 1.0 bit).
const EntropyScale uint64 = 1000

// entropyFracBits is the number of fractional bits extracted by the
// square-and-shift log2 loop. 16 bits is ample for milli-bit output.
const entropyFracBits = 16

// CollisionSum returns the pair (sum of squared weights, squared total) over
// the stored entries. Both fit in uint64 because weights are bounded by
// Scale. The pair form is division-free, which keeps it usable inside
// arithmetic circuits later.
func (v TagVector) CollisionSum() (sumSq, totalSq uint64) {
	var total uint64
	for _, w := range v.weights {
		sumSq += uint64(w) * uint64(w)
		total += uint64(w)
	}
	return sumSq, total * total
}

// ClusterEntropy returns the collision entropy of the attributed mass in
// milli-bits: log2(total^2 / sum(w^2)) over stored weights renormalized to
// sum to one. Background is excluded by construction, so decay and the mere
// passage of time never change the result; only genuine mixing with new
// clusters raises it. An all-background vector has entropy zero.
//
// The computation is pure integer/fixed-point and deterministic across
// platforms.
func (v TagVector) ClusterEntropy() uint64 {
	sumSq, totalSq := v.CollisionSum()
	if sumSq == 0 {
		return 0
	}
	return log2Millibits(totalSq, sumSq)
}

// log2Millibits computes log2(num/den) in milli-bits for num >= den > 0.
// The ratio is loaded into a Q32.32 value and the fractional bits are
// extracted by repeated squaring.
func log2Millibits(num, den uint64) uint64 {
	// keep the numerator inside the fixed-point range; the ratio is
	// preserved up to truncation well below milli-bit resolution
	if shift := bits.Len64(num) - 31; shift > 0 {
		num >>= uint(shift)
		den >>= uint(shift)
		if den == 0 {
			den = 1
		}
	}
	if num <= den {
		return 0
	}

	x := fixed.DivUint64(num, den)
	two := fixed.New(2)

	var intPart uint64
	for !x.LessThan(two) {
		x = x.Div(two)
		intPart++
	}

	var frac uint64
	for i := 0; i < entropyFracBits; i++ {
		x = x.Mul(x)
		frac <<= 1
		if !x.LessThan(two) {
			x = x.Div(two)
			frac |= 1
		}
	}

	return intPart*EntropyScale + (frac*EntropyScale)>>entropyFracBits
}

// ShannonEntropyBits is a float64 diagnostic over the full distribution
// including background as a pseudo-source. It rewards passive aging and MUST
// NOT be used for decay credit or any consensus decision; it exists only for
// simulation output and analysis.
func (v TagVector) ShannonEntropyBits() float64 {
	var entropy float64
	count := func(w uint32) {
		if w == 0 {
			return
		}
		p := float64(w) / float64(Scale)
		entropy -= p * math.Log2(p)
	}
	for _, w := range v.weights {
		count(w)
	}
	count(v.Background())
	return entropy
}
