package reconcile

import (
	"fmt"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// ribRowsShapeB extracts RIB rows from the vendor tabular dialect:
// TABLE_vrf.ROW_vrf[].TABLE_addrf.ROW_addrf[].TABLE_prefix.ROW_prefix[].TABLE_paths.ROW_paths[].
func ribRowsShapeB(root map[string]any, vrf string, afi rowmodel.AFI) ([]rowmodel.RIBRow, error) {
	vrfTable, ok := asMap(root["TABLE_vrf"])
	if !ok {
		return nil, fmt.Errorf("reconcile: shape B: missing TABLE_vrf")
	}

	byKey := make(map[rowmodel.RIBKey]*rowmodel.RIBRow)
	var order []rowmodel.RIBKey

	for _, vrfRowAny := range asList(vrfTable["ROW_vrf"]) {
		vrfRow, ok := asMap(vrfRowAny)
		if !ok {
			continue
		}
		if stringField(vrfRow, "vrf-name-out", "vrf-name") != vrf {
			continue
		}
		addrfTable, ok := asMap(vrfRow["TABLE_addrf"])
		if !ok {
			continue
		}
		for _, addrfRowAny := range asList(addrfTable["ROW_addrf"]) {
			addrfRow, ok := asMap(addrfRowAny)
			if !ok {
				continue
			}
			if !afiMatches(stringField(addrfRow, "addrf"), afi) {
				continue
			}
			prefixTable, ok := asMap(addrfRow["TABLE_prefix"])
			if !ok {
				continue
			}
			for _, prefixRowAny := range asList(prefixTable["ROW_prefix"]) {
				prefixRow, ok := asMap(prefixRowAny)
				if !ok {
					continue
				}
				prefix := stringField(prefixRow, "ipprefix", "prefix")
				pathsTable, ok := asMap(prefixRow["TABLE_paths"])
				if !ok {
					continue
				}
				for _, pathRowAny := range asList(pathsTable["ROW_paths"]) {
					pathRow, ok := asMap(pathRowAny)
					if !ok {
						continue
					}
					row := rowmodel.RIBRow{
						VRF:      vrf,
						AFI:      afi,
						Prefix:   rowmodel.NormalizePrefix(prefix, afi),
						Protocol: stringField(pathRow, "clientname", "protocol"),
						Distance: intPtrField(pathRow, "pref", "distance"),
						Metric:   intPtrField(pathRow, "metric"),
						Best:     boolField(pathRow, "ubest", "best"),
						NextHops: shapeBNextHops(pathRow),
					}
					collapseRIB(byKey, &order, row)
				}
			}
		}
	}

	out := make([]rowmodel.RIBRow, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

// shapeBNextHops builds the next-hop set for a single ROW_paths entry: a
// single next-hop object with IP-only becomes {nh, iface:nil}; presence of
// ifname/outgoing_interface populates iface.
func shapeBNextHops(pathRow map[string]any) []rowmodel.NextHop {
	ip := stringField(pathRow, "ipnexthop", "nexthop")
	if ip == "" {
		return nil
	}
	return []rowmodel.NextHop{{
		NH:    ip,
		Iface: stringField(pathRow, "ifname", "outgoing_interface"),
	}}
}

// bgpRowsShapeB extracts BGP rows from:
// TABLE_vrf.ROW_vrf[].TABLE_af.ROW_af[].TABLE_prefix.ROW_prefix[].TABLE_path.ROW_path[].
func bgpRowsShapeB(root map[string]any, vrf string, afi rowmodel.AFI) ([]rowmodel.BGPRow, error) {
	vrfTable, ok := asMap(root["TABLE_vrf"])
	if !ok {
		return nil, fmt.Errorf("reconcile: shape B: missing TABLE_vrf")
	}

	var rows []rowmodel.BGPRow

	for _, vrfRowAny := range asList(vrfTable["ROW_vrf"]) {
		vrfRow, ok := asMap(vrfRowAny)
		if !ok {
			continue
		}
		if stringField(vrfRow, "vrf-name-out", "vrf-name") != vrf {
			continue
		}
		afTable, ok := asMap(vrfRow["TABLE_af"])
		if !ok {
			continue
		}
		for _, afRowAny := range asList(afTable["ROW_af"]) {
			afRow, ok := asMap(afRowAny)
			if !ok {
				continue
			}
			if !afiMatches(stringField(afRow, "af-name", "afi"), afi) {
				continue
			}
			prefixTable, ok := asMap(afRow["TABLE_prefix"])
			if !ok {
				continue
			}
			for _, prefixRowAny := range asList(prefixTable["ROW_prefix"]) {
				prefixRow, ok := asMap(prefixRowAny)
				if !ok {
					continue
				}
				prefix := stringField(prefixRow, "ipprefix", "prefix")
				pathTable, ok := asMap(prefixRow["TABLE_path"])
				if !ok {
					continue
				}
				for _, pathRowAny := range asList(pathTable["ROW_path"]) {
					pathRow, ok := asMap(pathRowAny)
					if !ok {
						continue
					}
					rows = append(rows, buildBGPRowShapeB(vrf, afi, rowmodel.NormalizePrefix(prefix, afi), pathRow))
				}
			}
		}
	}

	return collapseBGP(rows), nil
}

func buildBGPRowShapeB(vrf string, afi rowmodel.AFI, prefix string, pathRow map[string]any) rowmodel.BGPRow {
	comms := rowmodel.NormalizeCommunities(pathRow["community"])
	return rowmodel.BGPRow{
		VRF:             vrf,
		AFI:             afi,
		Prefix:          prefix,
		Best:            boolField(pathRow, "best", "ubest"),
		NH:              stringField(pathRow, "ipnexthop", "nexthop"),
		ASPath:          rowmodel.NormalizeASPath(pathRow["aspath"]),
		LocalPref:       intPtrField(pathRow, "localpref", "local_pref"),
		MED:             intPtrField(pathRow, "metric", "med"),
		Origin:          stringField(pathRow, "origin"),
		Communities:     comms,
		CommunitiesHash: rowmodel.CommunityHash(comms),
		Weight:          intPtrField(pathRow, "weight"),
		Peer:            stringField(pathRow, "neighborid", "peerid", "peer"),
		OriginatorID:    stringField(pathRow, "originatorid"),
		ClusterList:     rowmodel.NormalizeCommunities(pathRow["clusterlist"]),
	}
}
