// Package metrics implements scheduler.MetricsSink as a set of
// Prometheus collectors (spec §4.7 observability surface).
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Sink holds one set of collectors. Built as a constructed value rather
// than package-level vars (see internal/scheduler's DESIGN note) so
// multiple instances never share registration state.
type Sink struct {
	routeCount   *prometheus.GaugeVec
	bgpBestCount *prometheus.GaugeVec

	ribAddsTotal    *prometheus.CounterVec
	ribRemovesTotal *prometheus.CounterVec

	bgpAttrChangesTotal *prometheus.CounterVec

	defaultNexthopChangeTotal *prometheus.CounterVec
	upstreamASChangeTotal     *prometheus.CounterVec

	diffPublishTotal *prometheus.CounterVec
}

func New() *Sink {
	return &Sink{
		routeCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routecache_route_count",
				Help: "Routes held in the latest RIB snapshot for a coordinate.",
			},
			[]string{"device", "vrf", "afi"},
		),
		bgpBestCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "routecache_bgp_best_count",
				Help: "Best-path BGP routes held in the latest snapshot for a coordinate.",
			},
			[]string{"device", "vrf", "afi"},
		),
		ribAddsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_rib_adds_total",
				Help: "RIB rows added across diff cycles.",
			},
			[]string{"device", "vrf", "afi"},
		),
		ribRemovesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_rib_removes_total",
				Help: "RIB rows removed across diff cycles.",
			},
			[]string{"device", "vrf", "afi"},
		),
		bgpAttrChangesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_bgp_attr_changes_total",
				Help: "BGP attribute changes observed, by changed attribute.",
			},
			[]string{"device", "vrf", "afi", "attr"},
		),
		defaultNexthopChangeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_default_nexthop_change_total",
				Help: "Next-hop changes observed on a default route (0.0.0.0/0 or ::/0).",
			},
			[]string{"device", "vrf", "afi"},
		),
		upstreamASChangeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_upstream_as_change_total",
				Help: "Changes to the head AS of a prefix's AS_PATH.",
			},
			[]string{"device", "vrf", "afi", "prefix"},
		),
		diffPublishTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "routecache_diff_publish_total",
				Help: "Diff publish attempts, by outcome.",
			},
			[]string{"device", "result"},
		),
	}
}

// Register adds every collector to reg.
func (s *Sink) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		s.routeCount,
		s.bgpBestCount,
		s.ribAddsTotal,
		s.ribRemovesTotal,
		s.bgpAttrChangesTotal,
		s.defaultNexthopChangeTotal,
		s.upstreamASChangeTotal,
		s.diffPublishTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) ObserveCoordinate(device, vrf, afi string, routeCount, bgpBestCount int) {
	s.routeCount.WithLabelValues(device, vrf, afi).Set(float64(routeCount))
	s.bgpBestCount.WithLabelValues(device, vrf, afi).Set(float64(bgpBestCount))
}

func (s *Sink) ObserveRIBDiff(device, vrf, afi string, adds, rems int) {
	s.ribAddsTotal.WithLabelValues(device, vrf, afi).Add(float64(adds))
	s.ribRemovesTotal.WithLabelValues(device, vrf, afi).Add(float64(rems))
}

func (s *Sink) ObserveBGPChange(device, vrf, afi, attr string) {
	s.bgpAttrChangesTotal.WithLabelValues(device, vrf, afi, attr).Inc()
}

func (s *Sink) ObserveDefaultNextHopChange(device, vrf, afi string) {
	s.defaultNexthopChangeTotal.WithLabelValues(device, vrf, afi).Inc()
}

func (s *Sink) ObserveUpstreamASChange(device, vrf, afi, prefix string) {
	s.upstreamASChangeTotal.WithLabelValues(device, vrf, afi, prefix).Inc()
}

// ObserveDiffPublish records the outcome of one diffpublish.Publisher
// attempt. result is "ok" or "error".
func (s *Sink) ObserveDiffPublish(device, result string) {
	s.diffPublishTotal.WithLabelValues(device, result).Inc()
}
