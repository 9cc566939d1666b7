package dsv

import (
	"log/slog"
	"sync"
	"time"

	"github.com/rs/xid"
)

// DefaultMaxSessionAge is how long after its creation a session is
// replaced by GetOrCreate or evicted by the Background Maintainer,
// regardless of activity.
const DefaultMaxSessionAge = 1 * time.Hour

// sessionState is the Session Table's per-session bookkeeping: the seed
// that feeds Coordinate derivation, a monotonic sequence counter, and the
// correlation id attached to this session's log lines.
type sessionState struct {
	seed          [32]byte
	sequenceID    uint64
	correlationID xid.ID
	lastActivity  time.Time
	createdAt     time.Time
}

// SessionTable tracks per-session scattering seeds and sequence counters
// in a single sync.RWMutex-guarded map.
//
// SessionTable is safe for concurrent use.
type SessionTable struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionState

	maxAge  time.Duration
	metrics MetricsReporter
	logger  *slog.Logger
}

// SessionTableOption configures optional SessionTable parameters.
type SessionTableOption func(*SessionTable)

// WithSessionTableMetrics sets the MetricsReporter for the table. If mr is
// nil, a no-op reporter is used.
func WithSessionTableMetrics(mr MetricsReporter) SessionTableOption {
	return func(t *SessionTable) {
		if mr != nil {
			t.metrics = mr
		}
	}
}

// WithSessionTableMaxAge sets the age, measured from session creation, past
// which GetOrCreate and EvictExpired treat a session as stale. If maxAge is
// non-positive, DefaultMaxSessionAge is used.
func WithSessionTableMaxAge(maxAge time.Duration) SessionTableOption {
	return func(t *SessionTable) {
		if maxAge > 0 {
			t.maxAge = maxAge
		}
	}
}

// NewSessionTable creates an empty SessionTable.
func NewSessionTable(logger *slog.Logger, opts ...SessionTableOption) *SessionTable {
	if logger == nil {
		logger = slog.Default()
	}

	t := &SessionTable{
		sessions: make(map[SessionID]*sessionState),
		maxAge:   DefaultMaxSessionAge,
		metrics:  noopMetrics{},
		logger:   logger.With(slog.String("component", "dsv.session")),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// GetOrCreate returns the session state for id if it exists and is younger
// than the table's max age; otherwise it replaces the entry (evicting any
// expired prior state) with a fresh random seed and correlation id. This is
// what forces a long-lived session's scattering seed to rotate rather than
// stay fixed for the session's entire lifetime. It also advances and
// returns the per-session sequence id for this call, for use as the AEAD
// nonce's sequence component.
func (t *SessionTable) GetOrCreate(id SessionID, now time.Time, seedSource func() [32]byte) (seed [32]byte, sequenceID uint64, correlationID xid.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	st, ok := t.sessions[id]
	if ok && now.Sub(st.createdAt) >= t.maxAge {
		delete(t.sessions, id)
		t.metrics.SessionExpired()
		ok = false
	}

	if !ok {
		st = &sessionState{
			seed:          seedSource(),
			correlationID: xid.New(),
			createdAt:     now,
		}
		t.sessions[id] = st
		t.metrics.SessionCreated()
		t.logger.Debug("session created", slog.String("correlation_id", st.correlationID.String()))
	}

	st.lastActivity = now
	st.sequenceID++

	return st.seed, st.sequenceID, st.correlationID
}

// Touch refreshes id's last-activity time without allocating a sequence
// id, used when a fragment for an existing session arrives on the receive
// path.
func (t *SessionTable) Touch(id SessionID, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if st, ok := t.sessions[id]; ok {
		st.lastActivity = now
	}
}

// Len returns the number of active sessions.
func (t *SessionTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.sessions)
}

// EvictExpired removes every session created more than maxAge ago,
// returning the evicted session ids. Age is measured from creation, not
// last activity, so that a continuously-active session still rotates its
// scattering seed on the schedule max_session_age defines — mirroring the
// replacement path in GetOrCreate.
func (t *SessionTable) EvictExpired(now time.Time, maxAge time.Duration) []SessionID {
	t.mu.Lock()
	defer t.mu.Unlock()

	var evicted []SessionID
	for id, st := range t.sessions {
		if now.Sub(st.createdAt) > maxAge {
			delete(t.sessions, id)
			evicted = append(evicted, id)
			t.metrics.SessionExpired()
		}
	}

	return evicted
}
