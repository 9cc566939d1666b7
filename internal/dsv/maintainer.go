package dsv

import (
	"context"
	"crypto/rand"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultCleanupInterval is how often the Background Maintainer sweeps for
// expired sessions and reassembly bins.
const DefaultCleanupInterval = 5 * time.Second

// MaintainerConfig bundles the tunables the Background Maintainer needs to
// run its sweep and rotation loops.
type MaintainerConfig struct {
	CleanupInterval     time.Duration
	MaxSessionAge       time.Duration
	MaxFragmentAge      time.Duration
	KeyRotationInterval time.Duration
}

// withDefaults fills unset fields with package defaults.
func (c MaintainerConfig) withDefaults() MaintainerConfig {
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.MaxSessionAge <= 0 {
		c.MaxSessionAge = DefaultMaxSessionAge
	}
	if c.MaxFragmentAge <= 0 {
		c.MaxFragmentAge = DefaultMaxFragmentAge
	}
	if c.KeyRotationInterval <= 0 {
		c.KeyRotationInterval = DefaultKeyRotationInterval
	}
	return c
}

// Maintainer runs the two periodic background loops a Vault needs: expiry
// sweeps over sessions and reassembly bins, and AEAD key rotation. Both
// loops are supervised by one errgroup sharing a single cancellation
// context, so a caller gets one Wait call for clean shutdown instead of
// juggling two independent goroutines.
type Maintainer struct {
	sessions          *SessionTable
	reassembly        *ReassemblyBuffers
	crypto            *CryptoState
	cfg               MaintainerConfig
	metrics           MetricsReporter
	logger            *slog.Logger
	onGaugeTick       func()
	onSessionsEvicted func([]SessionID)
}

// NewMaintainer creates a Maintainer over the given collaborators. A nil
// metrics reporter is replaced with a no-op; a nil logger falls back to
// slog.Default. onGaugeTick, if non-nil, is invoked after every cleanup
// sweep so the caller can refresh point-in-time gauges. onSessionsEvicted,
// if non-nil, is invoked with the ids evicted by each sweep so the caller
// can prune any session-keyed state it keeps outside the SessionTable.
func NewMaintainer(sessions *SessionTable, reassembly *ReassemblyBuffers, crypto *CryptoState, cfg MaintainerConfig, metrics MetricsReporter, logger *slog.Logger, onGaugeTick func(), onSessionsEvicted func([]SessionID)) *Maintainer {
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Maintainer{
		sessions:          sessions,
		reassembly:        reassembly,
		crypto:            crypto,
		cfg:               cfg.withDefaults(),
		metrics:           metrics,
		logger:            logger.With(slog.String("component", "dsv.maintainer")),
		onGaugeTick:       onGaugeTick,
		onSessionsEvicted: onSessionsEvicted,
	}
}

// Run starts the cleanup and rotation loops and blocks until ctx is
// canceled or one of the loops returns an error. Both loops return nil on
// clean cancellation.
func (m *Maintainer) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return m.runCleanupLoop(gCtx)
	})

	g.Go(func() error {
		return m.runRotationLoop(gCtx)
	})

	return g.Wait()
}

func (m *Maintainer) runCleanupLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			evictedSessions := m.sessions.EvictExpired(now, m.cfg.MaxSessionAge)
			evictedBins := m.reassembly.EvictExpired(now, m.cfg.MaxFragmentAge)

			if len(evictedSessions) > 0 || evictedBins > 0 {
				m.logger.Debug("eviction sweep",
					slog.Int("sessions_evicted", len(evictedSessions)),
					slog.Int("bins_evicted", evictedBins),
				)
			}

			if len(evictedSessions) > 0 && m.onSessionsEvicted != nil {
				m.onSessionsEvicted(evictedSessions)
			}

			if m.onGaugeTick != nil {
				m.onGaugeTick()
			}
		}
	}
}

func (m *Maintainer) runRotationLoop(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.KeyRotationInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var masterKey [32]byte
			if _, err := rand.Read(masterKey[:]); err != nil {
				m.logger.Warn("key rotation skipped: random source unavailable", slog.String("error", err.Error()))
				continue
			}

			if err := m.crypto.Rotate(masterKey); err != nil {
				m.logger.Warn("key rotation failed", slog.String("error", err.Error()))
				continue
			}

			m.logger.Info("rotated AEAD key")
		}
	}
}
