package dsv

import "errors"

// Sentinel errors for the DSV error taxonomy. Scatter surfaces only
// ErrQueueOverflow, Accept never surfaces an error (drops silently,
// incrementing a counter), and CollectCompleted never fails.
var (
	// ErrFragmentationEmpty indicates a fragmenter produced zero fragments
	// for a packet, or reassembly was attempted against an empty fragment
	// set.
	ErrFragmentationEmpty = errors.New("dsv: fragmentation produced no fragments")

	// ErrFragmentationMismatch indicates a reassembly bin observed
	// inconsistent total_fragments values across its fragments.
	ErrFragmentationMismatch = errors.New("dsv: inconsistent total_fragments across fragment bin")

	// ErrAeadFailure indicates an AEAD tag verification failed during
	// decryption.
	ErrAeadFailure = errors.New("dsv: aead authentication failed")

	// ErrCoordinateTrailerMissing indicates a fragment was too short to
	// contain a serialized coordinate trailer.
	ErrCoordinateTrailerMissing = errors.New("dsv: coordinate trailer missing")

	// ErrSessionUnknown indicates an operation referenced a session id that
	// has never been seen by the Session Table.
	ErrSessionUnknown = errors.New("dsv: session unknown")

	// ErrFragmentExpired indicates a fragment or reassembly bin exceeded
	// its maximum age before it could be delivered.
	ErrFragmentExpired = errors.New("dsv: fragment expired")

	// ErrQueueOverflow indicates the Delay Queue reached its configured
	// size bound and dropped the newest fragment.
	ErrQueueOverflow = errors.New("dsv: delay queue overflow")

	// ErrEmptyPacket indicates Scatter was called with a zero-length
	// packet, which is rejected upstream of the Coordinate Deriver.
	ErrEmptyPacket = errors.New("dsv: packet must not be empty")
)
