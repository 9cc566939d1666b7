package dsv_test

import (
	"crypto/rand"
	"math"
	"testing"

	"github.com/phantommesh/dsv/internal/dsv"
)

// TestDeriveCoordinateDeterministic verifies that identical (digest, seed)
// pairs always yield an identical Coordinate.
func TestDeriveCoordinateDeterministic(t *testing.T) {
	digest := dsv.Digest([]byte("hello, dimensional scattering"))
	seed := [32]byte{1, 2, 3, 4, 5}

	a := dsv.DeriveCoordinate(digest, seed)
	b := dsv.DeriveCoordinate(digest, seed)

	if a != b {
		t.Fatalf("DeriveCoordinate not deterministic: %+v != %+v", a, b)
	}
}

// TestDeriveCoordinateDiffersAcrossSeeds verifies that two different
// session seeds produce different coordinates for the same packet with
// overwhelming probability (scenario S3).
func TestDeriveCoordinateDiffersAcrossSeeds(t *testing.T) {
	digest := dsv.Digest(make([]byte, 100))

	var seedA, seedB [32]byte
	seedA[0] = 0x01
	seedB[0] = 0x02

	a := dsv.DeriveCoordinate(digest, seedA)
	b := dsv.DeriveCoordinate(digest, seedB)

	if a == b {
		t.Fatalf("coordinates from distinct seeds collided: %+v", a)
	}
}

// TestCoordinateFieldsBounded verifies every field stays within [0,127].
func TestCoordinateFieldsBounded(t *testing.T) {
	digest := dsv.Digest([]byte("bounds check"))
	seed := [32]byte{9, 9, 9}
	c := dsv.DeriveCoordinate(digest, seed)

	fields := []uint8{c.Routing, c.Temporal, c.Frequency, c.Protocol, c.Fragmentation, c.Crypto, c.Metadata}
	for i, f := range fields {
		if f >= dsv.DimensionSize {
			t.Errorf("field %d = %d, want < %d", i, f, dsv.DimensionSize)
		}
	}
}

// TestCoordinateFieldsChiSquareUniform samples coordinates over many
// random digests under a fixed seed and checks each field's empirical
// distribution over [0,127] against a chi-square uniformity test at
// alpha = 0.05 (invariant 2).
func TestCoordinateFieldsChiSquareUniform(t *testing.T) {
	const n = 10000
	const buckets = int(dsv.DimensionSize)

	seed := [32]byte{0x42}

	counts := make([][]int, 7)
	for i := range counts {
		counts[i] = make([]int, buckets)
	}

	for i := 0; i < n; i++ {
		var packet [32]byte
		if _, err := rand.Read(packet[:]); err != nil {
			t.Fatalf("rand.Read: %v", err)
		}

		digest := dsv.Digest(packet[:])
		c := dsv.DeriveCoordinate(digest, seed)

		fields := []uint8{c.Routing, c.Temporal, c.Frequency, c.Protocol, c.Fragmentation, c.Crypto, c.Metadata}
		for dim, f := range fields {
			counts[dim][f]++
		}
	}

	// Critical chi-square value for 127 degrees of freedom at alpha=0.05
	// is approximately 154.3. We use a generous threshold to keep this
	// test robust against hash noise while still catching a badly skewed
	// derivation.
	const criticalValue = 170.0
	expected := float64(n) / float64(buckets)

	for dim, dimCounts := range counts {
		var chiSquare float64
		for _, observed := range dimCounts {
			diff := float64(observed) - expected
			chiSquare += diff * diff / expected
		}

		if chiSquare > criticalValue {
			t.Errorf("dimension %d chi-square = %.2f, want <= %.2f (non-uniform)", dim, chiSquare, criticalValue)
		}
	}
}

// TestLinearIndexDeterministic verifies LinearIndex is a pure function of
// the coordinate's fields.
func TestLinearIndexDeterministic(t *testing.T) {
	c := dsv.Coordinate{Routing: 1, Temporal: 2, Frequency: 3, Protocol: 4, Fragmentation: 5, Crypto: 6, Metadata: 7}

	if c.LinearIndex() != c.LinearIndex() {
		t.Fatal("LinearIndex not stable across calls")
	}

	other := dsv.Coordinate{Routing: 7, Temporal: 6, Frequency: 5, Protocol: 4, Fragmentation: 3, Crypto: 2, Metadata: 1}
	if c.LinearIndex() == other.LinearIndex() {
		t.Fatal("distinct coordinates produced the same LinearIndex")
	}
}

// TestScatteringEntropyRange verifies ScatteringEntropy stays within
// [0,1] and that the all-zero coordinate (minimum entropy) scores lower
// than a mixed coordinate.
func TestScatteringEntropyRange(t *testing.T) {
	zero := dsv.Coordinate{}
	mixed := dsv.Coordinate{Routing: 64, Temporal: 32, Frequency: 96, Protocol: 1, Fragmentation: 127, Crypto: 50, Metadata: 80}

	if e := zero.ScatteringEntropy(); e < 0 || e > 1 {
		t.Fatalf("zero coordinate entropy out of range: %f", e)
	}

	if e := mixed.ScatteringEntropy(); e < 0 || e > 1 {
		t.Fatalf("mixed coordinate entropy out of range: %f", e)
	}

	if zero.ScatteringEntropy() >= mixed.ScatteringEntropy() {
		t.Errorf("expected all-zero coordinate to have lower entropy than a mixed one")
	}
}

// TestScatteringEntropyNotNaN guards against the log2(0) edge case the
// binary entropy term must special-case.
func TestScatteringEntropyNotNaN(t *testing.T) {
	edge := dsv.Coordinate{Routing: 0, Temporal: dsv.DimensionSize - 1}

	e := edge.ScatteringEntropy()
	if math.IsNaN(e) || math.IsInf(e, 0) {
		t.Fatalf("ScatteringEntropy produced non-finite value: %v", e)
	}
}
