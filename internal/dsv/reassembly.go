package dsv

import (
	"sync"
	"time"
)

// DefaultMaxFragmentAge bounds how long a reassembly bin waits for its
// remaining fragments before the Background Maintainer evicts it.
const DefaultMaxFragmentAge = 30 * time.Second

// binKey identifies one reassembly bin: a session plus the sequence id of
// the packet it is reassembling.
type binKey struct {
	session    SessionID
	sequenceID uint64
}

// reassemblyBin accumulates fragments for one (session, sequence) pair.
// Each bin has its own mutex so that concurrent Accept calls for different
// packets never contend on a single table-wide lock.
type reassemblyBin struct {
	mu             sync.Mutex
	byIndex        map[uint32][]byte
	totalFragments uint32
	firstSeen      time.Time
}

// ReassemblyBuffers holds one bin per in-flight (session, sequence) pair
// and assembles a packet once CollectCompleted finds its bin complete.
// Duplicate fragment indexes are idempotent: accepting the same
// (session, sequence, fragment_index) twice does not count twice toward
// completion.
//
// ReassemblyBuffers is safe for concurrent use.
type ReassemblyBuffers struct {
	mu   sync.Mutex
	bins map[binKey]*reassemblyBin

	fragmenter *Fragmenter
	skin       *MetadataSkin
	crypto     *CryptoState
	metrics    MetricsReporter
}

// NewReassemblyBuffers creates an empty ReassemblyBuffers using fragmenter
// to reverse fragment splits, skin to strip padding/coordinate trailers,
// and crypto to authenticate and decrypt. A nil metrics reporter is
// replaced with a no-op.
func NewReassemblyBuffers(fragmenter *Fragmenter, skin *MetadataSkin, crypto *CryptoState, metrics MetricsReporter) *ReassemblyBuffers {
	if metrics == nil {
		metrics = noopMetrics{}
	}

	return &ReassemblyBuffers{
		bins:       make(map[binKey]*reassemblyBin),
		fragmenter: fragmenter,
		skin:       skin,
		crypto:     crypto,
		metrics:    metrics,
	}
}

// Accept strips the metadata skin, decrypts, and admits one wire fragment
// into its reassembly bin. It never returns an error: a fragment that
// fails to authenticate or carries an inconsistent total_fragments is
// dropped silently with a MetricsReporter.FragmentRejected call, and a
// duplicate of an index already in its bin is discarded. No record of
// collected sequences is kept: a fragment that arrives after its
// sequence's bin was collected opens a new bin, which for a
// single-fragment packet completes and delivers that packet again.
func (b *ReassemblyBuffers) Accept(session SessionID, sequenceID uint64, fragmentIndex, totalFragments uint32, wireFragment []byte, now time.Time) {
	stripped, c, err := b.skin.Strip(wireFragment)
	if err != nil {
		b.metrics.FragmentRejected("skin")
		return
	}

	plaintext, err := b.crypto.Decrypt(stripped, sequenceID, fragmentIndex, c)
	if err != nil {
		b.metrics.FragmentRejected("aead")
		return
	}

	key := binKey{session: session, sequenceID: sequenceID}

	b.mu.Lock()
	bin, ok := b.bins[key]
	if !ok {
		bin = &reassemblyBin{
			byIndex:        make(map[uint32][]byte),
			totalFragments: totalFragments,
			firstSeen:      now,
		}
		b.bins[key] = bin
	}
	b.mu.Unlock()

	bin.mu.Lock()
	if bin.totalFragments != totalFragments {
		bin.mu.Unlock()
		b.metrics.FragmentRejected("mismatch")
		return
	}
	_, dup := bin.byIndex[fragmentIndex]
	if !dup {
		bin.byIndex[fragmentIndex] = plaintext
	}
	bin.mu.Unlock()

	if !dup {
		b.metrics.FragmentAccepted()
	}
}

// CollectCompleted reassembles and removes every bin whose fragment count
// has reached its total_fragments, returning the recovered packets. Bins
// that fail to reassemble (an internal inconsistency, never expected in
// practice) are dropped rather than retried.
func (b *ReassemblyBuffers) CollectCompleted() [][]byte {
	b.mu.Lock()
	ready := make([]binKey, 0)
	for key, bin := range b.bins {
		bin.mu.Lock()
		done := uint32(len(bin.byIndex)) == bin.totalFragments
		bin.mu.Unlock()
		if done {
			ready = append(ready, key)
		}
	}

	bins := make([]*reassemblyBin, 0, len(ready))
	for _, key := range ready {
		bins = append(bins, b.bins[key])
		delete(b.bins, key)
	}
	b.mu.Unlock()

	packets := make([][]byte, 0, len(bins))
	for _, bin := range bins {
		bin.mu.Lock()
		ordered := make([][]byte, bin.totalFragments)
		for idx, data := range bin.byIndex {
			ordered[idx] = data
		}
		bin.mu.Unlock()

		packet, err := b.fragmenter.Reassemble(ordered)
		if err != nil {
			continue
		}

		packets = append(packets, packet)
		b.metrics.PacketReassembled()
	}

	return packets
}

// Len returns the number of in-flight reassembly bins.
func (b *ReassemblyBuffers) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.bins)
}

// EvictExpired removes every bin whose first fragment arrived more than
// maxAge before now, returning the number evicted.
func (b *ReassemblyBuffers) EvictExpired(now time.Time, maxAge time.Duration) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	evicted := 0
	for key, bin := range b.bins {
		bin.mu.Lock()
		expired := now.Sub(bin.firstSeen) > maxAge
		bin.mu.Unlock()

		if expired {
			delete(b.bins, key)
			evicted++
			b.metrics.BinExpired()
		}
	}

	return evicted
}
