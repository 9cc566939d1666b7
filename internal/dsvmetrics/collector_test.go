package dsvmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/phantommesh/dsv/internal/dsvmetrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dsvmetrics.NewCollector(reg)

	if c.Sessions == nil {
		t.Error("Sessions is nil")
	}
	if c.FragmentsRejectedTotal == nil {
		t.Error("FragmentsRejectedTotal is nil")
	}

	if _, err := reg.Gather(); err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
}

func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetGauge().GetValue()
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()

	var m dto.Metric
	if err := c.Write(&m); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return m.GetCounter().GetValue()
}

func TestCollectorEventCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dsvmetrics.NewCollector(reg)

	c.SessionCreated()
	c.SessionCreated()
	c.SessionExpired()
	c.PacketScattered()
	c.FragmentQueued()
	c.FragmentDropped()
	c.FragmentReleased()
	c.FragmentAccepted()
	c.PacketReassembled()
	c.BinExpired()

	if v := counterValue(t, c.SessionsCreatedTotal); v != 2 {
		t.Errorf("SessionsCreatedTotal = %v, want 2", v)
	}
	if v := counterValue(t, c.SessionsExpiredTotal); v != 1 {
		t.Errorf("SessionsExpiredTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.PacketsScatteredTotal); v != 1 {
		t.Errorf("PacketsScatteredTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.FragmentsQueuedTotal); v != 1 {
		t.Errorf("FragmentsQueuedTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.FragmentsDroppedTotal); v != 1 {
		t.Errorf("FragmentsDroppedTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.FragmentsReleasedTotal); v != 1 {
		t.Errorf("FragmentsReleasedTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.FragmentsAcceptedTotal); v != 1 {
		t.Errorf("FragmentsAcceptedTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.PacketsReassembledTotal); v != 1 {
		t.Errorf("PacketsReassembledTotal = %v, want 1", v)
	}
	if v := counterValue(t, c.BinsExpiredTotal); v != 1 {
		t.Errorf("BinsExpiredTotal = %v, want 1", v)
	}
}

func TestCollectorFragmentRejectedByReason(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dsvmetrics.NewCollector(reg)

	c.FragmentRejected("aead")
	c.FragmentRejected("aead")
	c.FragmentRejected("skin")

	aead := c.FragmentsRejectedTotal.WithLabelValues("aead")
	skin := c.FragmentsRejectedTotal.WithLabelValues("skin")

	if v := counterValue(t, aead); v != 2 {
		t.Errorf("aead rejections = %v, want 2", v)
	}
	if v := counterValue(t, skin); v != 1 {
		t.Errorf("skin rejections = %v, want 1", v)
	}
}

func TestCollectorSetGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dsvmetrics.NewCollector(reg)

	c.SetGauges(3, 7, 2)

	if v := gaugeValue(t, c.Sessions); v != 3 {
		t.Errorf("Sessions gauge = %v, want 3", v)
	}
	if v := gaugeValue(t, c.QueueLength); v != 7 {
		t.Errorf("QueueLength gauge = %v, want 7", v)
	}
	if v := gaugeValue(t, c.ReassemblyBins); v != 2 {
		t.Errorf("ReassemblyBins gauge = %v, want 2", v)
	}
}
