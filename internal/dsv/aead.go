package dsv

import (
	"encoding/binary"
	"sync"
	"time"

	"golang.org/x/crypto/chacha20poly1305"
)

// NonceSize is the ChaCha20-Poly1305 nonce length in bytes.
const NonceSize = chacha20poly1305.NonceSize

// DefaultKeyRotationInterval is how long an AEAD key stays active before
// the Background Maintainer rotates it.
const DefaultKeyRotationInterval = 5 * time.Minute

// deriveNonce builds the 12-byte AEAD nonce for a fragment. The original
// construction (sequence id plus coordinate.crypto only) could repeat
// across fragments of one packet; this strengthens it so the nonce is
// unique over every (sequence_id, fragment_index, coordinate.crypto)
// triple ever encrypted under one key: bytes 0..7 are the little-endian
// sequence id, bytes 8..11 fold in both fragment_index and
// coordinate.crypto.
func deriveNonce(sequenceID uint64, fragmentIndex uint32, cryptoCoord uint8) [NonceSize]byte {
	var nonce [NonceSize]byte

	binary.LittleEndian.PutUint64(nonce[0:8], sequenceID)

	// cryptoCoord occupies [0,128) and sits in the low byte; fragmentIndex
	// is bounded to [0, MaxFragments) by the Fragmenter and is shifted
	// clear of it into the upper bits, keeping both components visible
	// (and distinct) in the remaining 4 bytes.
	tail := uint32(fragmentIndex)<<8 | uint32(cryptoCoord)
	binary.LittleEndian.PutUint32(nonce[8:12], tail)

	return nonce
}

// aeadKey is one generation of AEAD key material with its installation
// time, used to support the retain-old-key-briefly rotation policy.
type aeadKey struct {
	aead        cipherAEAD
	installedAt time.Time
}

// cipherAEAD is the subset of cipher.AEAD used here; declared locally so
// tests can substitute a fake without pulling in crypto/cipher directly.
type cipherAEAD interface {
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}

// CryptoState holds the session-independent process-lifetime AEAD key
// material, with in-place rotation. The key lives behind a single
// RWMutex shared by reference rather than being deep-copied on every
// clone.
type CryptoState struct {
	mu       sync.RWMutex
	current  aeadKey
	previous *aeadKey // key replaced by the last rotation, kept for in-flight fragments; nil until the first rotation
	interval time.Duration
}

// NewCryptoState creates a CryptoState from a 32-byte master key. interval
// is the key rotation interval; a non-positive value falls back to
// DefaultKeyRotationInterval.
func NewCryptoState(masterKey [32]byte, interval time.Duration) (*CryptoState, error) {
	if interval <= 0 {
		interval = DefaultKeyRotationInterval
	}

	aead, err := chacha20poly1305.New(masterKey[:])
	if err != nil {
		return nil, err
	}

	return &CryptoState{
		current:  aeadKey{aead: aead, installedAt: time.Now()},
		interval: interval,
	}, nil
}

// Encrypt seals fragment under the current key with the nonce derived from
// (sequenceID, fragmentIndex, coordinate.Crypto).
func (cs *CryptoState) Encrypt(fragment []byte, sequenceID uint64, fragmentIndex uint32, c Coordinate) []byte {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	nonce := deriveNonce(sequenceID, fragmentIndex, c.Crypto)

	return cs.current.aead.Seal(nil, nonce[:], fragment, nil)
}

// Decrypt opens encrypted under the current key, falling back to the
// previous key (if one is retained) so that in-flight fragments encrypted
// just before a rotation still decrypt.
func (cs *CryptoState) Decrypt(encrypted []byte, sequenceID uint64, fragmentIndex uint32, c Coordinate) ([]byte, error) {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	nonce := deriveNonce(sequenceID, fragmentIndex, c.Crypto)

	plaintext, err := cs.current.aead.Open(nil, nonce[:], encrypted, nil)
	if err == nil {
		return plaintext, nil
	}

	if cs.previous != nil {
		if pt, prevErr := cs.previous.aead.Open(nil, nonce[:], encrypted, nil); prevErr == nil {
			return pt, nil
		}
	}

	return nil, ErrAeadFailure
}

// NeedsRotation reports whether the current key has been active at least
// interval.
func (cs *CryptoState) NeedsRotation() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()

	return time.Since(cs.current.installedAt) >= cs.interval
}

// Rotate installs a fresh key generated from masterKey, demoting the
// current key to "previous" so in-flight fragments encrypted under it
// still decrypt until the next rotation discards it. Callers (the
// Background Maintainer) must ensure at least the maximum fragment age
// elapses between rotations so every in-flight fragment gets one grace
// rotation window.
func (cs *CryptoState) Rotate(masterKey [32]byte) error {
	aead, err := chacha20poly1305.New(masterKey[:])
	if err != nil {
		return err
	}

	cs.mu.Lock()
	defer cs.mu.Unlock()

	prev := cs.current
	cs.previous = &prev
	cs.current = aeadKey{aead: aead, installedAt: time.Now()}

	return nil
}
