package diffengine

import (
	"testing"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

func intp(v int) *int { return &v }

func TestECMPOrderFlipIsNotAChange(t *testing.T) {
	prev := []rowmodel.RIBRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf",
		Distance: intp(110), Metric: intp(20), Best: true,
		NextHops: []rowmodel.NextHop{{NH: "1.1.1.1", Iface: "Eth1/1"}, {NH: "2.2.2.2", Iface: "Eth1/2"}},
	}}
	curr := []rowmodel.RIBRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf",
		Distance: intp(110), Metric: intp(20), Best: true,
		NextHops: []rowmodel.NextHop{{NH: "2.2.2.2", Iface: "Eth1/2"}, {NH: "1.1.1.1", Iface: "Eth1/1"}},
	}}

	diff := DiffRIB("default", rowmodel.AFIv4, prev, curr)
	if !diff.Empty() {
		t.Fatalf("expected empty diff for reordered next-hops, got %+v", diff)
	}
}

func TestECMPAdd(t *testing.T) {
	prev := []rowmodel.RIBRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf",
		NextHops: []rowmodel.NextHop{{NH: "1.1.1.1", Iface: "Eth1/1"}},
	}}
	curr := []rowmodel.RIBRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf",
		NextHops: []rowmodel.NextHop{{NH: "1.1.1.1", Iface: "Eth1/1"}, {NH: "2.2.2.2", Iface: "Eth1/2"}},
	}}

	diff := DiffRIB("default", rowmodel.AFIv4, prev, curr)
	if len(diff.Chgs) != 1 {
		t.Fatalf("expected 1 change, got %d", len(diff.Chgs))
	}
	nhDelta, ok := diff.Chgs[0].Delta["nexthops"]
	if !ok {
		t.Fatalf("expected nexthops delta, got %+v", diff.Chgs[0].Delta)
	}
	newHops := nhDelta[1].([]rowmodel.NextHop)
	if len(newHops) != 2 {
		t.Fatalf("expected 2 current next-hops, got %d", len(newHops))
	}
}

func TestDefaultRouteNextHopChange(t *testing.T) {
	prev := []rowmodel.BGPRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "0.0.0.0/0", Best: true,
		NH: "3.3.3.3", ASPath: "65001 3356", Peer: "3.3.3.3",
	}}
	curr := []rowmodel.BGPRow{{
		VRF: "default", AFI: rowmodel.AFIv4, Prefix: "0.0.0.0/0", Best: true,
		NH: "4.4.4.4", ASPath: "65002 3356", Peer: "4.4.4.4",
	}}

	diff := DiffBGP("default", rowmodel.AFIv4, prev, curr)
	if len(diff.Chgs) != 1 {
		t.Fatalf("expected 1 bgp change, got %d", len(diff.Chgs))
	}
	d := diff.Chgs[0].Delta
	for _, attr := range []string{"nh", "as_path", "peer", "upstream_as"} {
		if _, ok := d[attr]; !ok {
			t.Errorf("expected delta[%q] to be present, got %+v", attr, d)
		}
	}
	up := d["upstream_as"]
	if up[0] != "65001" || up[1] != "65002" {
		t.Errorf("upstream_as = %+v, want old=65001 new=65002", up)
	}
}

func TestColdStartEmitsNoDiff(t *testing.T) {
	curr := []rowmodel.RIBRow{{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf"}}
	report, ok := Diff("leaf1", "default", rowmodel.AFIv4, false, nil, curr, nil, nil)
	if ok {
		t.Fatalf("expected ok=false on cold start, got report=%+v", report)
	}
}

func TestDiffSortsByPrefixThenProtocol(t *testing.T) {
	prev := []rowmodel.RIBRow{}
	curr := []rowmodel.RIBRow{
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "bgp"},
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf"},
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "1.0.0.0/24", Protocol: "static"},
	}
	diff := DiffRIB("default", rowmodel.AFIv4, prev, curr)
	if len(diff.Adds) != 3 {
		t.Fatalf("expected 3 adds, got %d", len(diff.Adds))
	}
	if diff.Adds[0].Prefix != "1.0.0.0/24" {
		t.Errorf("expected 1.0.0.0/24 first, got %s", diff.Adds[0].Prefix)
	}
	if diff.Adds[1].Protocol != "bgp" || diff.Adds[2].Protocol != "ospf" {
		t.Errorf("expected bgp before ospf at equal prefix, got %s then %s", diff.Adds[1].Protocol, diff.Adds[2].Protocol)
	}
}

func TestBestPathCollapsePicksBestOverFirst(t *testing.T) {
	rows := []rowmodel.BGPRow{
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Best: false, NH: "1.1.1.1"},
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Best: true, NH: "2.2.2.2"},
	}
	collapsed := collapseBGPRows(rows)
	row := collapsed[rowmodel.BGPKey{VRF: "default", AFI: "ipv4", Prefix: "10.0.0.0/24"}]
	if row.NH != "2.2.2.2" {
		t.Errorf("expected best path (2.2.2.2) representative, got %s", row.NH)
	}
}

func TestBestPathCollapseFallsBackToFirstEncountered(t *testing.T) {
	rows := []rowmodel.BGPRow{
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Best: false, NH: "1.1.1.1"},
		{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Best: false, NH: "2.2.2.2"},
	}
	collapsed := collapseBGPRows(rows)
	row := collapsed[rowmodel.BGPKey{VRF: "default", AFI: "ipv4", Prefix: "10.0.0.0/24"}]
	if row.NH != "1.1.1.1" {
		t.Errorf("expected first-encountered path (1.1.1.1), got %s", row.NH)
	}
}

func TestRemoveProducesRemsRow(t *testing.T) {
	prev := []rowmodel.RIBRow{{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf"}}
	diff := DiffRIB("default", rowmodel.AFIv4, prev, nil)
	if len(diff.Rems) != 1 || len(diff.Adds) != 0 || len(diff.Chgs) != 0 {
		t.Fatalf("expected 1 rem only, got %+v", diff)
	}
}

func TestDistanceNilEqualsNil(t *testing.T) {
	prev := []rowmodel.RIBRow{{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf"}}
	curr := []rowmodel.RIBRow{{VRF: "default", AFI: rowmodel.AFIv4, Prefix: "10.0.0.0/24", Protocol: "ospf"}}
	diff := DiffRIB("default", rowmodel.AFIv4, prev, curr)
	if !diff.Empty() {
		t.Fatalf("expected empty diff when both distances are nil, got %+v", diff)
	}
}
