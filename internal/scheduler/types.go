// Package scheduler runs the periodic collect→diff→persist→emit cycle
// of spec §4.6: bounded per-device concurrency, device-serial command
// execution, cycle coalescing, and a --once one-shot mode.
package scheduler

import (
	"context"

	"github.com/route-beacon/routecache/internal/deviceadapter"
	"github.com/route-beacon/routecache/internal/diffengine"
)

// Inventory produces the device descriptors to poll this cycle. Two
// implementations exist in internal/inventory: a static list and a
// Netbox-backed fetch (spec §6).
type Inventory interface {
	Fetch(ctx context.Context) ([]deviceadapter.Descriptor, error)
}

// Collector fetches raw RIB/BGP tables for one device. *deviceadapter.Adapter
// implements this; tests substitute a fake.
type Collector interface {
	Collect(ctx context.Context, dev deviceadapter.Descriptor) (deviceadapter.Tables, error)
}

// MetricsSink receives per-cycle observations. Passed in as an explicit
// dependency rather than referenced through package-level globals, so
// the scheduler stays testable and multiple instances never share
// hidden state (spec §9 design note).
type MetricsSink interface {
	ObserveCoordinate(device, vrf, afi string, routeCount, bgpBestCount int)
	ObserveRIBDiff(device, vrf, afi string, adds, rems int)
	ObserveBGPChange(device, vrf, afi, attr string)
	ObserveDefaultNextHopChange(device, vrf, afi string)
	ObserveUpstreamASChange(device, vrf, afi, prefix string)
}

// Publisher optionally emits each cycle's per-coordinate diff to an
// external sink (internal/diffpublish, over Kafka). A nil Publisher
// disables publishing entirely.
type Publisher interface {
	Publish(ctx context.Context, device string, report diffengine.CoordinateReport) error
}

// DeviceResult is one device's outcome for the --once JSON report.
// Failures appear as {device, error} per spec §4.6.
type DeviceResult struct {
	Device      string             `json:"device"`
	Error       string             `json:"error,omitempty"`
	Coordinates []CoordinateResult `json:"coordinates,omitempty"`
}

// CoordinateResult is one (vrf, afi) pair's cycle outcome.
type CoordinateResult struct {
	VRF  string                      `json:"vrf"`
	AFI  string                      `json:"afi"`
	Diff *diffengine.CoordinateReport `json:"diff,omitempty"`
}
