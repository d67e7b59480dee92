package diffengine

import (
	"sort"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// DiffBGP computes adds/rems/chgs between two BGP snapshots for the same
// (vrf, afi) coordinate, per spec §4.5.
func DiffBGP(vrf string, afi rowmodel.AFI, prev, curr []rowmodel.BGPRow) BGPDiff {
	prevMap := collapseBGPRows(prev)
	currMap := collapseBGPRows(curr)

	diff := BGPDiff{VRF: vrf, AFI: afi}

	for k, row := range currMap {
		if _, ok := prevMap[k]; !ok {
			diff.Adds = append(diff.Adds, row)
		}
	}
	for k, row := range prevMap {
		if _, ok := currMap[k]; !ok {
			diff.Rems = append(diff.Rems, row)
		}
	}
	for k, currRow := range currMap {
		prevRow, ok := prevMap[k]
		if !ok {
			continue
		}
		if d := bgpAttrDelta(prevRow, currRow); len(d) > 0 {
			diff.Chgs = append(diff.Chgs, BGPChange{BGPRow: currRow, Delta: d})
		}
	}

	sortBGPRows(diff.Adds)
	sortBGPRows(diff.Rems)
	sort.Slice(diff.Chgs, func(i, j int) bool {
		return diff.Chgs[i].Prefix < diff.Chgs[j].Prefix
	})
	return diff
}

// collapseBGPRows picks one representative path per equality key: the
// first with best==true, else the first encountered (spec §4.5 "Best-
// path collapse for BGP").
func collapseBGPRows(rows []rowmodel.BGPRow) map[rowmodel.BGPKey]rowmodel.BGPRow {
	out := make(map[rowmodel.BGPKey]rowmodel.BGPRow, len(rows))
	hasBest := make(map[rowmodel.BGPKey]bool, len(rows))
	for _, row := range rows {
		k := row.Key()
		existing, ok := out[k]
		switch {
		case !ok:
			out[k] = row
			hasBest[k] = row.Best
		case row.Best && !hasBest[k]:
			out[k] = row
			hasBest[k] = true
		default:
			_ = existing
		}
	}
	return out
}

// bgpAttrDelta computes the per-attribute delta for the watched BGP
// attributes, plus the synthetic upstream_as entry when the AS_PATH's
// leftmost AS number changes.
func bgpAttrDelta(prev, curr rowmodel.BGPRow) Delta {
	delta := Delta{}
	if prev.Best != curr.Best {
		delta["best"] = Pair{prev.Best, curr.Best}
	}
	if prev.NH != curr.NH {
		delta["nh"] = Pair{prev.NH, curr.NH}
	}
	if prev.ASPath != curr.ASPath {
		delta["as_path"] = Pair{prev.ASPath, curr.ASPath}
	}
	if !intPtrEqual(prev.LocalPref, curr.LocalPref) {
		delta["local_pref"] = Pair{prev.LocalPref, curr.LocalPref}
	}
	if !intPtrEqual(prev.MED, curr.MED) {
		delta["med"] = Pair{prev.MED, curr.MED}
	}
	if prev.Origin != curr.Origin {
		delta["origin"] = Pair{prev.Origin, curr.Origin}
	}
	if prev.CommunitiesHash != curr.CommunitiesHash {
		delta["communities_hash"] = Pair{prev.CommunitiesHash, curr.CommunitiesHash}
	}
	if prev.Peer != curr.Peer {
		delta["peer"] = Pair{prev.Peer, curr.Peer}
	}

	oldHead := rowmodel.HeadAS(prev.ASPath)
	newHead := rowmodel.HeadAS(curr.ASPath)
	if oldHead != newHead {
		delta["upstream_as"] = Pair{oldHead, newHead}
	}
	return delta
}

func sortBGPRows(rows []rowmodel.BGPRow) {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Prefix < rows[j].Prefix })
}
