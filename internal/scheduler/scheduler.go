package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/route-beacon/routecache/internal/deviceadapter"
	"github.com/route-beacon/routecache/internal/diffengine"
	"github.com/route-beacon/routecache/internal/reconcile"
	"github.com/route-beacon/routecache/internal/rowmodel"
	"github.com/route-beacon/routecache/internal/snapstore"
	"go.uber.org/zap"
)

// Config controls cycle timing and fan-out.
type Config struct {
	Interval       time.Duration // default 60s
	MaxConcurrency int           // default 16, clamped to len(devices)
}

func (c Config) withDefaults() Config {
	if c.Interval == 0 {
		c.Interval = 60 * time.Second
	}
	if c.MaxConcurrency == 0 {
		c.MaxConcurrency = 16
	}
	return c
}

// Scheduler owns one polling loop over an inventory of devices.
type Scheduler struct {
	cfg       Config
	inventory Inventory
	collector Collector
	store     snapstore.Store
	metrics   MetricsSink
	publisher Publisher
	logger    *zap.Logger
}

func New(cfg Config, inventory Inventory, collector Collector, store snapstore.Store, metrics MetricsSink, publisher Publisher, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cfg:       cfg.withDefaults(),
		inventory: inventory,
		collector: collector,
		store:     store,
		metrics:   metrics,
		publisher: publisher,
		logger:    logger,
	}
}

// Run executes cycles on the configured interval until ctx is
// cancelled. If a cycle overruns the interval, the next cycle starts
// immediately with no queuing beyond one (spec §4.6 cycle coalescing):
// after each cycle the loop waits only for what is left of the interval
// measured from that cycle's start, rather than firing on a fixed
// wall-clock grid.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		start := time.Now()
		cycleCtx, cancel := context.WithTimeout(ctx, 2*s.cfg.Interval)
		_, err := s.RunOnce(cycleCtx)
		cancel()
		if err != nil && s.logger != nil {
			s.logger.Error("cycle failed", zap.Error(err))
		}

		wait := s.cfg.Interval - time.Since(start)
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// RunOnce runs exactly one cycle over every device in the inventory and
// returns the combined report (spec §4.6 --once mode).
func (s *Scheduler) RunOnce(ctx context.Context) ([]DeviceResult, error) {
	devices, err := s.inventory.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("scheduler: fetch inventory: %w", err)
	}

	concurrency := s.cfg.MaxConcurrency
	if len(devices) < concurrency {
		concurrency = len(devices)
	}
	if concurrency < 1 {
		concurrency = 1
	}

	results := make([]DeviceResult, len(devices))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, dev := range devices {
		wg.Add(1)
		sem <- struct{}{}
		go func(i int, dev deviceadapter.Descriptor) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = s.runDevice(ctx, dev)
		}(i, dev)
	}
	wg.Wait()

	return results, nil
}

func (s *Scheduler) runDevice(ctx context.Context, dev deviceadapter.Descriptor) DeviceResult {
	tables, err := s.collector.Collect(ctx, dev)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("device collection failed", zap.String("device", dev.Name), zap.Error(err))
		}
		return DeviceResult{Device: dev.Name, Error: err.Error()}
	}

	ribByCoord := indexRIBTables(tables.RIB)
	bgpByCoord := indexBGPTables(tables.BGP)

	result := DeviceResult{Device: dev.Name}
	for _, vrf := range dev.VRFs {
		for _, afi := range dev.AFIs {
			cr := s.processCoordinate(ctx, dev.Name, vrf, afi, ribByCoord[coordKey(vrf, afi)], bgpByCoord[coordKey(vrf, afi)])
			result.Coordinates = append(result.Coordinates, cr)
		}
	}
	return result
}

func coordKey(vrf string, afi rowmodel.AFI) string { return vrf + "\x00" + string(afi) }

func indexRIBTables(tables []deviceadapter.RawTable) map[string]deviceadapter.RawTable {
	out := make(map[string]deviceadapter.RawTable, len(tables))
	for _, t := range tables {
		out[coordKey(t.VRF, t.AFI)] = t
	}
	return out
}

func indexBGPTables(tables []deviceadapter.RawTable) map[string]deviceadapter.RawTable {
	return indexRIBTables(tables)
}

func (s *Scheduler) processCoordinate(ctx context.Context, device, vrf string, afi rowmodel.AFI, ribTable, bgpTable deviceadapter.RawTable) CoordinateResult {
	cr := CoordinateResult{VRF: vrf, AFI: string(afi)}

	ribRows, ribOK, ribHadPrior, ribPrior := s.loadAndParseRIB(ctx, device, vrf, afi, ribTable)
	bgpRows, bgpOK, bgpHadPrior, bgpPrior := s.loadAndParseBGP(ctx, device, vrf, afi, bgpTable)

	if ribOK {
		s.persistRIB(ctx, device, vrf, afi, ribRows)
	}
	if bgpOK {
		s.persistBGP(ctx, device, vrf, afi, bgpRows)
	}

	haveDiff := (ribOK && ribHadPrior) || (bgpOK && bgpHadPrior)
	if !haveDiff {
		if ribOK && s.metrics != nil {
			s.metrics.ObserveCoordinate(device, vrf, string(afi), len(ribRows), bgpBestCount(bgpRows))
		}
		return cr
	}

	var ribDiff diffengine.RIBDiff
	if ribOK && ribHadPrior {
		ribDiff = diffengine.DiffRIB(vrf, afi, ribPrior, ribRows)
	} else {
		ribDiff = diffengine.RIBDiff{VRF: vrf, AFI: afi}
	}

	var bgpDiff diffengine.BGPDiff
	if bgpOK && bgpHadPrior {
		bgpDiff = diffengine.DiffBGP(vrf, afi, bgpPrior, bgpRows)
	} else {
		bgpDiff = diffengine.BGPDiff{VRF: vrf, AFI: afi}
	}

	report := diffengine.CoordinateReport{Device: device, VRF: vrf, AFI: afi, RIB: ribDiff, BGP: bgpDiff}
	cr.Diff = &report

	if s.metrics != nil {
		s.observeMetrics(device, vrf, afi, ribRows, bgpRows, report)
	}
	if !report.Empty() {
		s.persistDiff(ctx, device, vrf, afi, report)
		if s.publisher != nil {
			if err := s.publisher.Publish(ctx, device, report); err != nil && s.logger != nil {
				s.logger.Warn("diff publish failed", zap.String("device", device), zap.String("vrf", vrf), zap.String("afi", string(afi)), zap.Error(err))
			}
		}
	}
	return cr
}

func bgpBestCount(rows []rowmodel.BGPRow) int {
	n := 0
	for _, r := range rows {
		if r.Best {
			n++
		}
	}
	return n
}

func (s *Scheduler) observeMetrics(device, vrf string, afi rowmodel.AFI, ribRows []rowmodel.RIBRow, bgpRows []rowmodel.BGPRow, report diffengine.CoordinateReport) {
	s.metrics.ObserveCoordinate(device, vrf, string(afi), len(ribRows), bgpBestCount(bgpRows))
	if len(report.RIB.Adds) > 0 || len(report.RIB.Rems) > 0 {
		s.metrics.ObserveRIBDiff(device, vrf, string(afi), len(report.RIB.Adds), len(report.RIB.Rems))
	}
	for _, chg := range report.BGP.Chgs {
		for attr := range chg.Delta {
			s.metrics.ObserveBGPChange(device, vrf, string(afi), attr)
			if attr == "upstream_as" {
				s.metrics.ObserveUpstreamASChange(device, vrf, string(afi), chg.Prefix)
			}
		}
		if _, ok := chg.Delta["nh"]; ok && isDefaultRoute(chg.Prefix) {
			s.metrics.ObserveDefaultNextHopChange(device, vrf, string(afi))
		}
	}
}

func isDefaultRoute(prefix string) bool {
	return prefix == "0.0.0.0/0" || prefix == "::/0"
}

func (s *Scheduler) loadAndParseRIB(ctx context.Context, device, vrf string, afi rowmodel.AFI, table deviceadapter.RawTable) (rows []rowmodel.RIBRow, ok, hadPrior bool, prior []rowmodel.RIBRow) {
	if table.Err != nil || table.Body == nil {
		return nil, false, false, nil
	}
	parsed, err := reconcile.ParseRIB(table.Body, vrf, afi)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("rib parse failed; table omitted", zap.String("device", device), zap.String("vrf", vrf), zap.String("afi", string(afi)), zap.Error(err))
		}
		return nil, false, false, nil
	}

	body, exists, err := s.store.ReadLatest(ctx, device, snapstore.KindRIB, vrf, string(afi))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("read prior rib latest failed", zap.String("device", device), zap.Error(err))
		}
		return parsed, true, false, nil
	}
	if !exists {
		return parsed, true, false, nil
	}
	var priorRows []rowmodel.RIBRow
	if err := json.Unmarshal(body, &priorRows); err != nil {
		if s.logger != nil {
			s.logger.Warn("decode prior rib latest failed", zap.String("device", device), zap.Error(err))
		}
		return parsed, true, false, nil
	}
	return parsed, true, true, priorRows
}

func (s *Scheduler) loadAndParseBGP(ctx context.Context, device, vrf string, afi rowmodel.AFI, table deviceadapter.RawTable) (rows []rowmodel.BGPRow, ok, hadPrior bool, prior []rowmodel.BGPRow) {
	if table.Err != nil || table.Body == nil {
		return nil, false, false, nil
	}
	parsed, err := reconcile.ParseBGP(table.Body, vrf, afi)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("bgp parse failed; table omitted", zap.String("device", device), zap.String("vrf", vrf), zap.String("afi", string(afi)), zap.Error(err))
		}
		return nil, false, false, nil
	}

	body, exists, err := s.store.ReadLatest(ctx, device, snapstore.KindBGP, vrf, string(afi))
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("read prior bgp latest failed", zap.String("device", device), zap.Error(err))
		}
		return parsed, true, false, nil
	}
	if !exists {
		return parsed, true, false, nil
	}
	var priorRows []rowmodel.BGPRow
	if err := json.Unmarshal(body, &priorRows); err != nil {
		if s.logger != nil {
			s.logger.Warn("decode prior bgp latest failed", zap.String("device", device), zap.Error(err))
		}
		return parsed, true, false, nil
	}
	return parsed, true, true, priorRows
}

func (s *Scheduler) persistRIB(ctx context.Context, device, vrf string, afi rowmodel.AFI, rows []rowmodel.RIBRow) {
	sorted := append([]rowmodel.RIBRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Prefix != sorted[j].Prefix {
			return sorted[i].Prefix < sorted[j].Prefix
		}
		return sorted[i].Protocol < sorted[j].Protocol
	})
	latest, archive, err := marshalSnapshot(sorted)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("marshal rib snapshot failed", zap.String("device", device), zap.Error(err))
		}
		return
	}
	if err := s.store.WriteLatestAndArchive(ctx, device, snapstore.KindRIB, vrf, string(afi), latest, archive, now()); err != nil {
		if s.logger != nil {
			s.logger.Warn("persist rib snapshot failed", zap.String("device", device), zap.Error(err))
		}
	}
}

func (s *Scheduler) persistBGP(ctx context.Context, device, vrf string, afi rowmodel.AFI, rows []rowmodel.BGPRow) {
	sorted := append([]rowmodel.BGPRow(nil), rows...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Prefix < sorted[j].Prefix })
	latest, archive, err := marshalSnapshot(sorted)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("marshal bgp snapshot failed", zap.String("device", device), zap.Error(err))
		}
		return
	}
	if err := s.store.WriteLatestAndArchive(ctx, device, snapstore.KindBGP, vrf, string(afi), latest, archive, now()); err != nil {
		if s.logger != nil {
			s.logger.Warn("persist bgp snapshot failed", zap.String("device", device), zap.Error(err))
		}
	}
}

func (s *Scheduler) persistDiff(ctx context.Context, device, vrf string, afi rowmodel.AFI, report diffengine.CoordinateReport) {
	payload, err := json.Marshal(report)
	if err != nil {
		if s.logger != nil {
			s.logger.Warn("marshal diff failed", zap.String("device", device), zap.Error(err))
		}
		return
	}
	summary := snapstore.DiffSummary{
		Added:   len(report.RIB.Adds) + len(report.BGP.Adds),
		Removed: len(report.RIB.Rems) + len(report.BGP.Rems),
		Changed: len(report.RIB.Chgs) + len(report.BGP.Chgs),
	}
	if err := s.store.WriteDiff(ctx, device, vrf, string(afi), now(), payload, summary); err != nil {
		if s.logger != nil {
			s.logger.Warn("persist diff failed", zap.String("device", device), zap.Error(err))
		}
	}
}

// marshalSnapshot returns the 2-space-indented "latest" form and the
// compact "archive" form of the same sorted rows (spec §6).
func marshalSnapshot[T any](rows []T) (latest, archive []byte, err error) {
	latest, err = json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("marshal latest: %w", err)
	}
	archive, err = json.Marshal(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal archive: %w", err)
	}
	return latest, archive, nil
}

// now is a seam for time.Now so tests can be deterministic without
// injecting a clock through every call site.
var now = time.Now
