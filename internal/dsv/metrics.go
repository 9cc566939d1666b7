package dsv

// MetricsReporter receives event and gauge updates from the Vault and its
// collaborators. The zero value of every implementation must be safe to
// call (see noopMetrics) so that metrics remain an optional collaborator:
// the core accepts a metrics sink rather than reaching for a package-level
// registry.
type MetricsReporter interface {
	// SessionCreated is called each time the Session Table creates a new
	// session (first scatter for an id, or replacement of an expired one).
	SessionCreated()

	// SessionExpired is called each time a session past its maximum age is
	// removed, whether by the Background Maintainer's sweep or by
	// GetOrCreate replacing a stale entry on access.
	SessionExpired()

	// PacketScattered is called once per successful Scatter call.
	PacketScattered()

	// FragmentQueued is called each time a fragment is admitted to the
	// Delay Queue.
	FragmentQueued()

	// FragmentDropped is called when the Delay Queue is full and drops the
	// newest fragment.
	FragmentDropped()

	// FragmentReleased is called each time DrainReady releases a fragment.
	FragmentReleased()

	// FragmentAccepted is called each time Accept successfully admits a
	// fragment into a reassembly bin.
	FragmentAccepted()

	// FragmentRejected is called when Accept silently drops a fragment,
	// labeled with the rejection reason.
	FragmentRejected(reason string)

	// PacketReassembled is called each time a reassembly bin completes and
	// delivers a packet.
	PacketReassembled()

	// BinExpired is called each time a reassembly bin past its maximum age
	// is evicted, whether by the Background Maintainer's sweep or by
	// Vault.Cleanup.
	BinExpired()

	// SetGauges refreshes point-in-time gauges: active session count,
	// delay queue length, and reassembly bin count.
	SetGauges(sessions, queueLen, bins int)
}

// noopMetrics is the default MetricsReporter used when the caller does not
// supply one.
type noopMetrics struct{}

func (noopMetrics) SessionCreated()         {}
func (noopMetrics) SessionExpired()         {}
func (noopMetrics) PacketScattered()        {}
func (noopMetrics) FragmentQueued()         {}
func (noopMetrics) FragmentDropped()        {}
func (noopMetrics) FragmentReleased()       {}
func (noopMetrics) FragmentAccepted()       {}
func (noopMetrics) FragmentRejected(string) {}
func (noopMetrics) PacketReassembled()      {}
func (noopMetrics) BinExpired()             {}
func (noopMetrics) SetGauges(int, int, int) {}
