package dsv

import (
	"context"
	"crypto/rand"
	"log/slog"
	"sync"
	"time"
)

// DefaultMaxDelay bounds the scheduled release delay a Delay Queue entry
// may be assigned.
const DefaultMaxDelay = 5 * time.Second

// DefaultMaxFragmentSize is the default for VaultConfig.MaxFragmentSize.
// The value is carried in the configuration only: Scatter and the
// Fragmenter do not read it, and packets of any length are split.
const DefaultMaxFragmentSize = 1400

// entropySamplesPerSession bounds how many recent coordinate entropy
// values are retained per session for Stats.AverageScatteringEntropy. This
// is a rough estimate, not a population statistic.
const entropySamplesPerSession = 10

// VaultConfig bundles every tunable the Vault and its collaborators need.
type VaultConfig struct {
	MaxSessionAge          time.Duration
	MaxFragmentAge         time.Duration
	MaxDelay               time.Duration
	CryptoRotationInterval time.Duration
	FragmentOverlapBytes   int
	MaxFragmentSize        int
	MaxQueueSize           int
	CleanupInterval        time.Duration
}

func (c VaultConfig) withDefaults() VaultConfig {
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = DefaultMaxSessionAge
	}
	if c.MaxFragmentAge <= 0 {
		c.MaxFragmentAge = DefaultMaxFragmentAge
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.CryptoRotationInterval <= 0 {
		c.CryptoRotationInterval = DefaultKeyRotationInterval
	}
	if c.FragmentOverlapBytes <= 0 {
		c.FragmentOverlapBytes = DefaultOverlapBytes
	}
	if c.MaxFragmentSize <= 0 {
		c.MaxFragmentSize = DefaultMaxFragmentSize
	}
	if c.MaxQueueSize <= 0 {
		c.MaxQueueSize = DefaultMaxQueueSize
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Stats is a snapshot of Vault-wide observability counters, returned by
// Vault.Stats.
type Stats struct {
	ActiveSessions           int
	QueueLength              int
	ReassemblyBinCount       int
	TotalScattered           uint64
	AverageScatteringEntropy float64
}

// Vault is the top-level DSV library surface: a passive, dependency-free
// composition of the Coordinate Deriver, Fragmenter, AEAD Stage, Metadata
// Skin, Delay Queue, Session Table, and Reassembly Buffers. It owns no
// socket, file, or clock beyond the Delay Queue's release scheduling, and
// every method is callable from any concurrency primitive the caller
// chooses.
type Vault struct {
	cfg VaultConfig

	sessions   *SessionTable
	queue      *DelayQueue
	reassembly *ReassemblyBuffers
	fragmenter *Fragmenter
	skin       *MetadataSkin
	crypto     *CryptoState

	metrics MetricsReporter
	logger  *slog.Logger

	statsMu        sync.Mutex
	totalScattered uint64
	entropySamples map[SessionID][]float64
}

// VaultOption configures optional Vault parameters.
type VaultOption func(*Vault)

// WithVaultMetrics sets the MetricsReporter shared by the Vault and all of
// its collaborators. If mr is nil, a no-op reporter is used.
func WithVaultMetrics(mr MetricsReporter) VaultOption {
	return func(v *Vault) {
		if mr != nil {
			v.metrics = mr
		}
	}
}

// WithVaultLogger sets the *slog.Logger used for Vault-level log lines.
func WithVaultLogger(logger *slog.Logger) VaultOption {
	return func(v *Vault) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVault creates a Vault seeded with masterKey for AEAD encryption.
// cfg's zero-valued fields fall back to package defaults.
func NewVault(masterKey [32]byte, cfg VaultConfig, opts ...VaultOption) (*Vault, error) {
	cfg = cfg.withDefaults()

	crypto, err := NewCryptoState(masterKey, cfg.CryptoRotationInterval)
	if err != nil {
		return nil, err
	}

	v := &Vault{
		cfg:            cfg,
		fragmenter:     NewFragmenter(cfg.FragmentOverlapBytes),
		skin:           NewMetadataSkin(),
		crypto:         crypto,
		metrics:        noopMetrics{},
		logger:         slog.Default().With(slog.String("component", "dsv.vault")),
		entropySamples: make(map[SessionID][]float64),
	}

	for _, opt := range opts {
		opt(v)
	}

	v.sessions = NewSessionTable(v.logger, WithSessionTableMetrics(v.metrics), WithSessionTableMaxAge(cfg.MaxSessionAge))
	v.queue = NewDelayQueue(cfg.MaxQueueSize, v.metrics)
	v.reassembly = NewReassemblyBuffers(v.fragmenter, v.skin, v.crypto, v.metrics)

	return v, nil
}

// Scatter derives a coordinate for packet under session, fragments and
// encrypts and skins it, and enqueues the resulting fragments for delayed
// release. It rejects an empty packet and propagates ErrQueueOverflow if
// the Delay Queue is at capacity; all other errors are unreachable in
// practice and indicate a programming defect.
func (v *Vault) Scatter(packet []byte, session SessionID) error {
	if len(packet) == 0 {
		return ErrEmptyPacket
	}

	now := time.Now()

	seed, sequenceID, _ := v.sessions.GetOrCreate(session, now, randomSeed)

	digest := Digest(packet)
	coordinate := DeriveCoordinate(digest, seed)

	v.recordEntropy(session, coordinate.ScatteringEntropy())

	fragments, err := v.fragmenter.Split(packet, coordinate)
	if err != nil {
		return err
	}

	total := uint32(len(fragments))

	for i, plaintext := range fragments {
		idx := uint32(i)

		encrypted := v.crypto.Encrypt(plaintext, sequenceID, idx, coordinate)
		skinned := v.skin.Apply(encrypted, coordinate)

		releaseAt := v.scheduleRelease(now, coordinate)

		fragment := Fragment{
			Session:        session,
			SequenceID:     sequenceID,
			FragmentIndex:  idx,
			TotalFragments: total,
			Coordinate:     coordinate,
			Payload:        skinned,
			CreatedAt:      now,
		}

		if err := v.queue.Enqueue(fragment, releaseAt); err != nil {
			return err
		}
	}

	v.statsMu.Lock()
	v.totalScattered++
	v.statsMu.Unlock()

	v.metrics.PacketScattered()

	return nil
}

// scheduleRelease computes a fragment's scheduled release instant:
// now + base_delay + jitter, clamped to cfg.MaxDelay. base_delay is
// coordinate.Temporal * 10ms; jitter is (coordinate.Frequency mod 100)ms.
func (v *Vault) scheduleRelease(now time.Time, c Coordinate) time.Time {
	baseDelay := time.Duration(c.Temporal) * 10 * time.Millisecond
	jitter := time.Duration(c.Frequency%100) * time.Millisecond

	delay := baseDelay + jitter
	if delay > v.cfg.MaxDelay {
		delay = v.cfg.MaxDelay
	}

	return now.Add(delay)
}

// DrainReady returns every fragment whose scheduled release instant has
// passed, in non-decreasing release order. The caller is expected to emit
// these fragments on the wire.
func (v *Vault) DrainReady() []Fragment {
	return v.queue.DequeueReady(time.Now())
}

// Accept feeds one received fragment into the Reassembly Buffers. It never
// returns an error: fragments that fail authentication or skin-stripping,
// or that carry an inconsistent total_fragments, are dropped silently
// with a counter increment.
func (v *Vault) Accept(fragment Fragment) {
	v.sessions.Touch(fragment.Session, time.Now())
	v.reassembly.Accept(fragment.Session, fragment.SequenceID, fragment.FragmentIndex, fragment.TotalFragments, fragment.Payload, time.Now())
}

// CollectCompleted returns every packet whose reassembly bin has received
// all of its fragments, removing those bins.
func (v *Vault) CollectCompleted() [][]byte {
	return v.reassembly.CollectCompleted()
}

// Cleanup forces an out-of-band maintenance pass: eviction of expired
// sessions and reassembly bins. It does not rotate the AEAD key; key
// rotation is driven by the Background Maintainer's own ticker so that
// rotations happen no more often than CryptoRotationInterval regardless of
// how often Cleanup is called.
func (v *Vault) Cleanup() {
	now := time.Now()
	evicted := v.sessions.EvictExpired(now, v.cfg.MaxSessionAge)
	v.reassembly.EvictExpired(now, v.cfg.MaxFragmentAge)
	v.pruneEntropySamples(evicted)
}

// RunMaintainer starts the Background Maintainer's cleanup and key
// rotation loops and blocks until ctx is canceled.
func (v *Vault) RunMaintainer(ctx context.Context) error {
	maintainerCfg := MaintainerConfig{
		CleanupInterval:     v.cfg.CleanupInterval,
		MaxSessionAge:       v.cfg.MaxSessionAge,
		MaxFragmentAge:      v.cfg.MaxFragmentAge,
		KeyRotationInterval: v.cfg.CryptoRotationInterval,
	}

	m := NewMaintainer(v.sessions, v.reassembly, v.crypto, maintainerCfg, v.metrics, v.logger, v.refreshGauges, v.pruneEntropySamples)

	return m.Run(ctx)
}

// refreshGauges pushes current session/queue/bin counts to the metrics
// sink, invoked by the Background Maintainer after each cleanup sweep.
func (v *Vault) refreshGauges() {
	v.metrics.SetGauges(v.sessions.Len(), v.queue.Len(), v.reassembly.Len())
}

// Stats returns a point-in-time snapshot of Vault-wide counters.
func (v *Vault) Stats() Stats {
	v.statsMu.Lock()
	total := v.totalScattered
	avgEntropy := v.averageEntropyLocked()
	v.statsMu.Unlock()

	return Stats{
		ActiveSessions:           v.sessions.Len(),
		QueueLength:              v.queue.Len(),
		ReassemblyBinCount:       v.reassembly.Len(),
		TotalScattered:           total,
		AverageScatteringEntropy: avgEntropy,
	}
}

// recordEntropy appends e to session's sample ring, keeping at most
// entropySamplesPerSession most-recent values.
func (v *Vault) recordEntropy(session SessionID, e float64) {
	v.statsMu.Lock()
	defer v.statsMu.Unlock()

	samples := v.entropySamples[session]
	samples = append(samples, e)
	if len(samples) > entropySamplesPerSession {
		samples = samples[len(samples)-entropySamplesPerSession:]
	}
	v.entropySamples[session] = samples
}

// pruneEntropySamples discards the retained entropy samples for sessions
// the SessionTable has evicted, so the sample map is bounded by the
// SessionTable's live session count rather than every session ever seen.
func (v *Vault) pruneEntropySamples(evicted []SessionID) {
	v.statsMu.Lock()
	defer v.statsMu.Unlock()

	for _, id := range evicted {
		delete(v.entropySamples, id)
	}
}

// averageEntropyLocked averages every retained sample across every
// session. Caller must hold statsMu.
func (v *Vault) averageEntropyLocked() float64 {
	var sum float64
	var count int

	for _, samples := range v.entropySamples {
		for _, s := range samples {
			sum += s
			count++
		}
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// randomSeed generates a fresh 32-byte session seed using the operating
// system's CSPRNG.
func randomSeed() [32]byte {
	var seed [32]byte
	if _, err := rand.Read(seed[:]); err != nil {
		// crypto/rand.Read only fails if the OS entropy source is
		// unavailable, which is treated as fatal rather than silently
		// falling back to a weaker source.
		panic("dsv: crypto/rand unavailable: " + err.Error())
	}
	return seed
}
