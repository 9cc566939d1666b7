package dsv

// CoordinateTrailerSize is the number of bytes the serialized, masked
// Coordinate occupies at the tail of a skinned fragment.
const CoordinateTrailerSize = NumDimensions

// coordinateMask is XORed over the serialized Coordinate trailer. This is
// obfuscation against casual inspection, not a confidentiality mechanism:
// the trailer sits outside the AEAD ciphertext and anyone who knows the
// mask (or brute-forces one byte) recovers the coordinate.
const coordinateMask = 0x5A

// paddingStrategy describes one metadata padding shape.
type paddingStrategy struct {
	minPadding int
	maxPadding int
	pattern    []byte
}

var paddingStrategies = [...]paddingStrategy{
	// Random-length padding of zero bytes.
	{minPadding: 0, maxPadding: 100, pattern: []byte{0x00}},
	// Patterned padding that repeats a four-byte alternation.
	{minPadding: 10, maxPadding: 200, pattern: []byte{0xFF, 0x00, 0xFF, 0x00}},
	// Fixed-length padding, always exactly 50 bytes of 0xAA.
	{minPadding: 50, maxPadding: 50, pattern: []byte{0xAA}},
}

// MetadataSkin appends a padding run and a masked Coordinate trailer to an
// encrypted fragment, and reverses the process on receive. The padding
// strategy and its length are both selected by coordinate.Metadata. The
// skin is a fingerprint break only: anyone who unmasks the trailer learns
// the coordinate and therefore the padding length.
type MetadataSkin struct{}

// NewMetadataSkin creates a MetadataSkin. It holds no state: every
// decision is a pure function of the Coordinate passed in.
func NewMetadataSkin() *MetadataSkin {
	return &MetadataSkin{}
}

// Apply appends padding (shape and length chosen by c.Metadata) followed
// by the masked, fixed-width Coordinate trailer.
func (MetadataSkin) Apply(fragment []byte, c Coordinate) []byte {
	strategy := paddingStrategies[int(c.Metadata)%len(paddingStrategies)]

	span := strategy.maxPadding - strategy.minPadding + 1
	paddingSize := strategy.minPadding + int(c.Metadata)%span

	out := make([]byte, 0, len(fragment)+paddingSize+CoordinateTrailerSize)
	out = append(out, fragment...)

	for i := 0; i < paddingSize; i++ {
		out = append(out, strategy.pattern[i%len(strategy.pattern)])
	}

	out = append(out, maskCoordinate(c)...)

	return out
}

// Strip removes and decodes the masked Coordinate trailer from a skinned
// fragment, returning the fragment with trailer and padding removed
// alongside the decoded Coordinate. It does not need to know which
// padding strategy was used: the trailer's fixed width and the decoded
// coordinate.Metadata value are sufficient to locate where padding begins,
// since padding length is a deterministic function of that same
// coordinate.
func (MetadataSkin) Strip(skinned []byte) ([]byte, Coordinate, error) {
	if len(skinned) < CoordinateTrailerSize {
		return nil, Coordinate{}, ErrCoordinateTrailerMissing
	}

	trailerStart := len(skinned) - CoordinateTrailerSize
	c := unmaskCoordinate(skinned[trailerStart:])

	strategy := paddingStrategies[int(c.Metadata)%len(paddingStrategies)]
	span := strategy.maxPadding - strategy.minPadding + 1
	paddingSize := strategy.minPadding + int(c.Metadata)%span

	fragmentEnd := trailerStart - paddingSize
	if fragmentEnd < 0 {
		return nil, Coordinate{}, ErrCoordinateTrailerMissing
	}

	fragment := make([]byte, fragmentEnd)
	copy(fragment, skinned[:fragmentEnd])

	return fragment, c, nil
}

// maskCoordinate serializes c as CoordinateTrailerSize raw bytes, one per
// dimension, each XORed with coordinateMask.
func maskCoordinate(c Coordinate) []byte {
	raw := [CoordinateTrailerSize]byte{
		c.Routing, c.Temporal, c.Frequency, c.Protocol,
		c.Fragmentation, c.Crypto, c.Metadata,
	}

	out := make([]byte, CoordinateTrailerSize)
	for i, b := range raw {
		out[i] = b ^ coordinateMask
	}

	return out
}

// unmaskCoordinate is the inverse of maskCoordinate. trailer must be at
// least CoordinateTrailerSize bytes; only the first CoordinateTrailerSize
// bytes are consulted.
func unmaskCoordinate(trailer []byte) Coordinate {
	return Coordinate{
		Routing:       trailer[0] ^ coordinateMask,
		Temporal:      trailer[1] ^ coordinateMask,
		Frequency:     trailer[2] ^ coordinateMask,
		Protocol:      trailer[3] ^ coordinateMask,
		Fragmentation: trailer[4] ^ coordinateMask,
		Crypto:        trailer[5] ^ coordinateMask,
		Metadata:      trailer[6] ^ coordinateMask,
	}
}
