package dsv

import "time"

// SessionID identifies one scattering session, derived by the caller from
// whatever endpoint identity the surrounding transport already has (a
// tunnel id, a peer address hash, and so on). The Vault treats it as an
// opaque 32-byte key.
type SessionID [32]byte

// Fragment is one scattered, encrypted, skinned piece of an original
// packet, plus the bookkeeping the Reassembly Buffers need to put it back
// together. Everything but Payload travels alongside the wire payload as
// the masked Coordinate trailer and the caller's own session framing;
// Fragment itself is never serialized as a unit.
type Fragment struct {
	Session        SessionID
	SequenceID     uint64
	FragmentIndex  uint32
	TotalFragments uint32
	Coordinate     Coordinate
	Payload        []byte // encrypted, skinned bytes ready for the wire
	CreatedAt      time.Time
}
