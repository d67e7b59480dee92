package diffengine

import "github.com/route-beacon/routecache/internal/rowmodel"

// CoordinateReport bundles the RIB and BGP diffs for one (device, vrf,
// afi) coordinate, as persisted/emitted by the scheduler each cycle.
type CoordinateReport struct {
	Device string       `json:"device"`
	VRF    string       `json:"vrf"`
	AFI    rowmodel.AFI `json:"afi"`
	RIB    RIBDiff      `json:"rib"`
	BGP    BGPDiff      `json:"bgp"`
}

// Empty reports whether neither the RIB nor BGP diff carries any
// adds/rems/chgs.
func (r CoordinateReport) Empty() bool { return r.RIB.Empty() && r.BGP.Empty() }

// Diff computes both diffs for one coordinate. havePrior must reflect
// whether a prior snapshot exists for this exact coordinate; when
// false, Diff returns (zero-value, false) without inspecting prevRIB/
// prevBGP at all, implementing the cold-start silence rule of spec
// §4.5 step 1 ("if prior is absent... emit no diff").
func Diff(device, vrf string, afi rowmodel.AFI, havePrior bool, prevRIB, currRIB []rowmodel.RIBRow, prevBGP, currBGP []rowmodel.BGPRow) (CoordinateReport, bool) {
	if !havePrior {
		return CoordinateReport{}, false
	}
	return CoordinateReport{
		Device: device,
		VRF:    vrf,
		AFI:    afi,
		RIB:    DiffRIB(vrf, afi, prevRIB, currRIB),
		BGP:    DiffBGP(vrf, afi, prevBGP, currBGP),
	}, true
}
