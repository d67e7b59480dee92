package diffengine

import (
	"sort"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// DiffRIB computes adds/rems/chgs between two RIB snapshots for the same
// (vrf, afi) coordinate, per spec §4.5. Duplicate equality keys within
// either slice are collapsed (unioned next-hops, OR'd best, first
// non-nil distance/metric) before comparison, matching the guarantee
// the parser already provides for well-formed input.
func DiffRIB(vrf string, afi rowmodel.AFI, prev, curr []rowmodel.RIBRow) RIBDiff {
	prevMap := collapseRIBRows(prev)
	currMap := collapseRIBRows(curr)

	diff := RIBDiff{VRF: vrf, AFI: afi}

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
		if d := ribAttrDelta(prevRow, currRow); len(d) > 0 {
			diff.Chgs = append(diff.Chgs, RIBChange{RIBRow: currRow, Delta: d})
		}
	}

	sortRIBRows(diff.Adds)
	sortRIBRows(diff.Rems)
	sort.Slice(diff.Chgs, func(i, j int) bool {
		return ribLess(diff.Chgs[i].RIBRow, diff.Chgs[j].RIBRow)
	})
	return diff
}

func collapseRIBRows(rows []rowmodel.RIBRow) map[rowmodel.RIBKey]rowmodel.RIBRow {
	out := make(map[rowmodel.RIBKey]rowmodel.RIBRow, len(rows))
	for _, row := range rows {
		k := row.Key()
		existing, ok := out[k]
		if !ok {
			out[k] = row
			continue
		}
		existing.NextHops = rowmodel.UnionNextHops(existing.NextHops, row.NextHops)
		existing.Best = existing.Best || row.Best
		if existing.Distance == nil {
			existing.Distance = row.Distance
		}
		if existing.Metric == nil {
			existing.Metric = row.Metric
		}
		out[k] = existing
	}
	return out
}

// ribAttrDelta computes the per-attribute delta for the watched RIB
// attributes: nexthops (multiset), distance, metric, best.
func ribAttrDelta(prev, curr rowmodel.RIBRow) Delta {
	delta := Delta{}
	if !rowmodel.NextHopsEqual(prev.NextHops, curr.NextHops) {
		delta["nexthops"] = Pair{rowmodel.SortNextHops(prev.NextHops), rowmodel.SortNextHops(curr.NextHops)}
	}
	if !intPtrEqual(prev.Distance, curr.Distance) {
		delta["distance"] = Pair{prev.Distance, curr.Distance}
	}
	if !intPtrEqual(prev.Metric, curr.Metric) {
		delta["metric"] = Pair{prev.Metric, curr.Metric}
	}
	if prev.Best != curr.Best {
		delta["best"] = Pair{prev.Best, curr.Best}
	}
	return delta
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func sortRIBRows(rows []rowmodel.RIBRow) {
	sort.Slice(rows, func(i, j int) bool { return ribLess(rows[i], rows[j]) })
}

// ribLess implements the spec's RIB tie-break: sort by prefix, then
// protocol.
func ribLess(a, b rowmodel.RIBRow) bool {
	if a.Prefix != b.Prefix {
		return a.Prefix < b.Prefix
	}
	return a.Protocol < b.Protocol
}
