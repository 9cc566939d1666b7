package dsv

import (
	"math"

	"golang.org/x/crypto/blake2b"
)

// NumDimensions is the number of independent obfuscation dimensions a
// Coordinate carries: routing slot, temporal delay, transmission
// frequency, protocol skin, fragmentation shape, AEAD nonce derivation,
// and metadata padding.
const NumDimensions = 7

// DimensionSize is the number of distinguishable values each dimension can
// take.
const DimensionSize = 128

// Coordinate is the seven-tuple of small integers that jointly determine
// how a packet is fragmented, encrypted, padded, and delayed. It is a pure
// value type: never stored long-term, derived deterministically from a
// packet digest and a session seed.
type Coordinate struct {
	Routing       uint8 // D1: routing slot
	Temporal      uint8 // D2: transmission delay
	Frequency     uint8 // D3: transmission frequency / jitter
	Protocol      uint8 // D4: protocol skin
	Fragmentation uint8 // D5: fragmentation shape
	Crypto        uint8 // D6: AEAD nonce derivation
	Metadata      uint8 // D7: metadata padding
}

// Digest computes the 32-byte packet digest fed into DeriveCoordinate.
// BLAKE2b-256 covers both the packet digest and the coordinate hash
// itself, keeping a single modern hash primitive on the dependency
// surface (see DESIGN.md for why the original BLAKE3 choice was not
// carried forward).
func Digest(packet []byte) [32]byte {
	return blake2b.Sum256(packet)
}

// DeriveCoordinate computes the scattering Coordinate for a packet digest
// and session seed. It concatenates digest and seed, hashes with
// BLAKE2b-256, and assigns byte i (0..6) mod 128 to the i-th coordinate
// field.
//
// Deterministic: identical (digest, seed) pairs always yield an identical
// Coordinate, bit-exact, on both endpoints.
func DeriveCoordinate(digest, seed [32]byte) Coordinate {
	h, err := blake2b.New256(nil)
	if err != nil {
		// blake2b.New256 only errors on an invalid key length, and we pass
		// no key. This branch is unreachable in practice.
		panic("dsv: blake2b.New256: " + err.Error())
	}

	h.Write(digest[:])
	h.Write(seed[:])
	sum := h.Sum(nil)

	return Coordinate{
		Routing:       sum[0] % DimensionSize,
		Temporal:      sum[1] % DimensionSize,
		Frequency:     sum[2] % DimensionSize,
		Protocol:      sum[3] % DimensionSize,
		Fragmentation: sum[4] % DimensionSize,
		Crypto:        sum[5] % DimensionSize,
		Metadata:      sum[6] % DimensionSize,
	}
}

// LinearIndex maps the seven-dimensional Coordinate to a single integer
// using a generalized Cantor pairing function folded left to right over
// the fields. Its purpose is metric and testing observability only; it is
// never used for dispatch.
func (c Coordinate) LinearIndex() uint64 {
	fields := [NumDimensions]uint64{
		uint64(c.Routing),
		uint64(c.Temporal),
		uint64(c.Frequency),
		uint64(c.Protocol),
		uint64(c.Fragmentation),
		uint64(c.Crypto),
		uint64(c.Metadata),
	}

	index := fields[0]
	for _, f := range fields[1:] {
		index = cantorPair(index, f)
	}

	return index
}

// cantorPair is the Cantor pairing function, used here to fold seven
// dimensions into one index. It is computed in uint64 arithmetic that
// wraps on overflow, which the seven-field fold reaches for most
// coordinates, so distinct coordinates are not guaranteed distinct
// indexes.
func cantorPair(x, y uint64) uint64 {
	return (x+y)*(x+y+1)/2 + y
}

// ScatteringEntropy computes a normalized Shannon entropy across the seven
// coordinate dimensions. It is an estimate of distributional uniformity
// for a single coordinate, not a confidentiality measure; see Stats'
// average-entropy sampling for how it is aggregated across sessions.
func (c Coordinate) ScatteringEntropy() float64 {
	fields := [NumDimensions]float64{
		float64(c.Routing) / (DimensionSize - 1),
		float64(c.Temporal) / (DimensionSize - 1),
		float64(c.Frequency) / (DimensionSize - 1),
		float64(c.Protocol) / (DimensionSize - 1),
		float64(c.Fragmentation) / (DimensionSize - 1),
		float64(c.Crypto) / (DimensionSize - 1),
		float64(c.Metadata) / (DimensionSize - 1),
	}

	var entropy float64
	for _, p := range fields {
		entropy += binaryEntropyTerm(p)
	}

	return entropy / NumDimensions
}

// binaryEntropyTerm computes -p*log2(p) - (1-p)*log2(1-p), the binary
// entropy function, returning 0 at the boundary values where the
// logarithm would be undefined.
func binaryEntropyTerm(p float64) float64 {
	if p <= 0 || p >= 1 {
		return 0
	}

	return -(p*math.Log2(p) + (1-p)*math.Log2(1-p))
}
