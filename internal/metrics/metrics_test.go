package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_NoPanic(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := New()
	if err := s.Register(reg); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestRegister_DuplicateCollectorFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, b := New(), New()
	if err := a.Register(reg); err != nil {
		t.Fatalf("Register a: %v", err)
	}
	if err := b.Register(reg); err == nil {
		t.Fatal("expected duplicate registration to fail on a shared registry")
	}
}

func TestObserveCoordinate(t *testing.T) {
	s := New()
	s.ObserveCoordinate("r1", "default", "ipv4", 42, 7)

	if got := testutil.ToFloat64(s.routeCount.WithLabelValues("r1", "default", "ipv4")); got != 42 {
		t.Errorf("routeCount = %v, want 42", got)
	}
	if got := testutil.ToFloat64(s.bgpBestCount.WithLabelValues("r1", "default", "ipv4")); got != 7 {
		t.Errorf("bgpBestCount = %v, want 7", got)
	}
}

func TestObserveRIBDiff(t *testing.T) {
	s := New()
	s.ObserveRIBDiff("r1", "default", "ipv4", 3, 1)
	s.ObserveRIBDiff("r1", "default", "ipv4", 2, 0)

	if got := testutil.ToFloat64(s.ribAddsTotal.WithLabelValues("r1", "default", "ipv4")); got != 5 {
		t.Errorf("ribAddsTotal = %v, want 5", got)
	}
	if got := testutil.ToFloat64(s.ribRemovesTotal.WithLabelValues("r1", "default", "ipv4")); got != 1 {
		t.Errorf("ribRemovesTotal = %v, want 1", got)
	}
}

func TestObserveBGPChange(t *testing.T) {
	s := New()
	s.ObserveBGPChange("r1", "default", "ipv4", "as_path")
	s.ObserveBGPChange("r1", "default", "ipv4", "as_path")
	s.ObserveBGPChange("r1", "default", "ipv4", "med")

	if got := testutil.ToFloat64(s.bgpAttrChangesTotal.WithLabelValues("r1", "default", "ipv4", "as_path")); got != 2 {
		t.Errorf("as_path count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.bgpAttrChangesTotal.WithLabelValues("r1", "default", "ipv4", "med")); got != 1 {
		t.Errorf("med count = %v, want 1", got)
	}
}

func TestObserveDefaultNextHopChange(t *testing.T) {
	s := New()
	s.ObserveDefaultNextHopChange("r1", "default", "ipv4")

	if got := testutil.ToFloat64(s.defaultNexthopChangeTotal.WithLabelValues("r1", "default", "ipv4")); got != 1 {
		t.Errorf("defaultNexthopChangeTotal = %v, want 1", got)
	}
}

func TestObserveUpstreamASChange(t *testing.T) {
	s := New()
	s.ObserveUpstreamASChange("r1", "default", "ipv4", "10.0.0.0/8")

	if got := testutil.ToFloat64(s.upstreamASChangeTotal.WithLabelValues("r1", "default", "ipv4", "10.0.0.0/8")); got != 1 {
		t.Errorf("upstreamASChangeTotal = %v, want 1", got)
	}
}

func TestObserveDiffPublish(t *testing.T) {
	s := New()
	s.ObserveDiffPublish("r1", "ok")
	s.ObserveDiffPublish("r1", "ok")
	s.ObserveDiffPublish("r1", "error")

	if got := testutil.ToFloat64(s.diffPublishTotal.WithLabelValues("r1", "ok")); got != 2 {
		t.Errorf("ok count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(s.diffPublishTotal.WithLabelValues("r1", "error")); got != 1 {
		t.Errorf("error count = %v, want 1", got)
	}
}
