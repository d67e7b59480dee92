// Package diffengine computes adds/removes/changes between two snapshots
// of the same coordinate. It is pure: no I/O and no notion of "latest".
// Callers (the scheduler, via internal/snapstore) decide whether a prior
// snapshot exists; Diff takes that answer as its havePrior flag and
// returns no report when it is false, so a cold start never yields a diff.
package diffengine

import "github.com/route-beacon/routecache/internal/rowmodel"

// Pair is a two-element [old, new] delta value, per spec §6's diff
// archive payload schema ("values are [old,new] pairs or scalars").
type Pair [2]any

// Delta maps watched attribute name to its [old, new] change.
type Delta map[string]Pair

// RIBChange is a current RIB row with its per-attribute delta against
// the prior row sharing the same equality key.
type RIBChange struct {
	rowmodel.RIBRow
	Delta Delta `json:"delta"`
}

// BGPChange is a current BGP row with its per-attribute delta against
// the prior row sharing the same equality key.
type BGPChange struct {
	rowmodel.BGPRow
	Delta Delta `json:"delta"`
}

// RIBDiff is the result of diffing two RIB snapshots for one coordinate.
type RIBDiff struct {
	VRF  string         `json:"vrf"`
	AFI  rowmodel.AFI   `json:"afi"`
	Adds []rowmodel.RIBRow `json:"adds"`
	Rems []rowmodel.RIBRow `json:"rems"`
	Chgs []RIBChange       `json:"chgs"`
}

// BGPDiff is the result of diffing two BGP snapshots for one coordinate.
type BGPDiff struct {
	VRF  string            `json:"vrf"`
	AFI  rowmodel.AFI      `json:"afi"`
	Adds []rowmodel.BGPRow `json:"adds"`
	Rems []rowmodel.BGPRow `json:"rems"`
	Chgs []BGPChange       `json:"chgs"`
}

// Empty reports whether the diff carries no adds, rems, or chgs, i.e.
// nothing would be worth persisting or emitting.
func (d RIBDiff) Empty() bool { return len(d.Adds) == 0 && len(d.Rems) == 0 && len(d.Chgs) == 0 }

// Empty reports whether the diff carries no adds, rems, or chgs.
func (d BGPDiff) Empty() bool { return len(d.Adds) == 0 && len(d.Rems) == 0 && len(d.Chgs) == 0 }
