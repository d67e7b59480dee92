package reconcile

import (
	"fmt"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// ribRowsShapeA extracts RIB rows from the generic structured-parser tree:
// root.vrf[<vrf>].address_family[<af_key>].routes[<prefix>].
func ribRowsShapeA(root map[string]any, vrf string, afi rowmodel.AFI) ([]rowmodel.RIBRow, error) {
	vrfs, ok := asMap(root["vrf"])
	if !ok {
		return nil, fmt.Errorf("reconcile: shape A: missing vrf tree")
	}
	vrfNode, ok := asMap(vrfs[vrf])
	if !ok {
		return nil, nil
	}
	afs, ok := asMap(vrfNode["address_family"])
	if !ok {
		return nil, nil
	}
	afKey := findAFIKey(afs, afi)
	if afKey == "" {
		return nil, nil
	}
	afNode, ok := asMap(afs[afKey])
	if !ok {
		return nil, nil
	}
	routes, ok := asMap(afNode["routes"])
	if !ok {
		return nil, nil
	}

	byKey := make(map[rowmodel.RIBKey]*rowmodel.RIBRow)
	var order []rowmodel.RIBKey

	for prefix, rv := range routes {
		for _, pathAny := range asList(rv) {
			path, ok := asMap(pathAny)
			if !ok {
				continue
			}
			protocol := stringField(path, "protocol", "source_protocol_codes", "protocol_code")
			row := rowmodel.RIBRow{
				VRF:      vrf,
				AFI:      afi,
				Prefix:   rowmodel.NormalizePrefix(prefix, afi),
				Protocol: protocol,
				Distance: intPtrField(path, "distance", "route_preference", "pref"),
				Metric:   intPtrField(path, "metric"),
				Best:     boolField(path, "best", "ubest"),
				NextHops: shapeANextHops(path),
			}
			collapseRIB(byKey, &order, row)
		}
	}

	out := make([]rowmodel.RIBRow, 0, len(order))
	for _, k := range order {
		out = append(out, *byKey[k])
	}
	return out, nil
}

// collapseRIB unions next-hops and ORs `best` across adjacency rows sharing
// the same equality key (spec §4.3 collapsing rules).
func collapseRIB(byKey map[rowmodel.RIBKey]*rowmodel.RIBRow, order *[]rowmodel.RIBKey, row rowmodel.RIBRow) {
	k := row.Key()
	existing, ok := byKey[k]
	if !ok {
		r := row
		byKey[k] = &r
		*order = append(*order, k)
		return
	}
	existing.NextHops = rowmodel.UnionNextHops(existing.NextHops, row.NextHops)
	existing.Best = existing.Best || row.Best
	if existing.Distance == nil {
		existing.Distance = row.Distance
	}
	if existing.Metric == nil {
		existing.Metric = row.Metric
	}
}

// shapeANextHops reads next_hop.next_hop_list (mapping or list) and/or a
// flat next_hop list of strings.
func shapeANextHops(path map[string]any) []rowmodel.NextHop {
	nh, ok := path["next_hop"]
	if !ok {
		return nil
	}

	var hops []rowmodel.NextHop
	switch v := nh.(type) {
	case string:
		hops = append(hops, rowmodel.NextHop{NH: v})
	case map[string]any:
		for _, item := range asList(v["next_hop_list"]) {
			m, ok := asMap(item)
			if !ok {
				continue
			}
			ip := stringField(m, "next_hop", "next_hop_ip", "ip")
			if ip == "" {
				continue
			}
			hops = append(hops, rowmodel.NextHop{
				NH:    ip,
				Iface: stringField(m, "interface", "outgoing_interface", "ifname"),
			})
		}
	case []any:
		for _, item := range v {
			switch t := item.(type) {
			case string:
				hops = append(hops, rowmodel.NextHop{NH: t})
			case map[string]any:
				ip := stringField(t, "next_hop", "next_hop_ip", "ip")
				if ip == "" {
					continue
				}
				hops = append(hops, rowmodel.NextHop{
					NH:    ip,
					Iface: stringField(t, "interface", "outgoing_interface", "ifname"),
				})
			}
		}
	}
	return rowmodel.SortNextHops(hops)
}

// bgpRowsShapeA extracts BGP rows from:
// root.vrf[<vrf>].address_family["ipv4 unicast"|"ipv6 unicast"].routes[<prefix>].index[<n>].
func bgpRowsShapeA(root map[string]any, vrf string, afi rowmodel.AFI) ([]rowmodel.BGPRow, error) {
	vrfs, ok := asMap(root["vrf"])
	if !ok {
		return nil, fmt.Errorf("reconcile: shape A: missing vrf tree")
	}
	vrfNode, ok := asMap(vrfs[vrf])
	if !ok {
		return nil, nil
	}
	afs, ok := asMap(vrfNode["address_family"])
	if !ok {
		return nil, nil
	}
	afKey := findAFIKey(afs, afi)
	if afKey == "" {
		return nil, nil
	}
	afNode, ok := asMap(afs[afKey])
	if !ok {
		return nil, nil
	}
	routes, ok := asMap(afNode["routes"])
	if !ok {
		return nil, nil
	}

	var rows []rowmodel.BGPRow
	for prefix, rv := range routes {
		route, ok := asMap(rv)
		if !ok {
			continue
		}
		var paths []map[string]any
		if idx, ok := asMap(route["index"]); ok {
			for _, p := range idx {
				if m, ok := asMap(p); ok {
					paths = append(paths, m)
				}
			}
		} else {
			paths = append(paths, route)
		}

		for _, path := range paths {
			rows = append(rows, buildBGPRow(vrf, afi, rowmodel.NormalizePrefix(prefix, afi), path))
		}
	}
	return collapseBGP(rows), nil
}

func buildBGPRow(vrf string, afi rowmodel.AFI, prefix string, path map[string]any) rowmodel.BGPRow {
	comms := rowmodel.NormalizeCommunities(path["community"])
	if comms == nil {
		comms = rowmodel.NormalizeCommunities(path["communities"])
	}
	return rowmodel.BGPRow{
		VRF:             vrf,
		AFI:             afi,
		Prefix:          prefix,
		Best:            boolField(path, "best", "bestpath", "suppressed_path_non_best"),
		NH:              stringField(path, "nexthop", "next_hop", "ip_next_hop"),
		ASPath:          rowmodel.NormalizeASPath(path["as_path"]),
		LocalPref:       intPtrField(path, "local_pref", "localpref"),
		MED:             intPtrField(path, "med", "metric"),
		Origin:          stringField(path, "origin"),
		Communities:     comms,
		CommunitiesHash: rowmodel.CommunityHash(comms),
		Weight:          intPtrField(path, "weight"),
		Peer:            stringField(path, "peer", "peer_ip", "neighbor_id"),
		OriginatorID:    stringField(path, "originator_id"),
		ClusterList:     rowmodel.NormalizeCommunities(path["cluster_list"]),
	}
}

// collapseBGP applies best-path collapse (spec §4.5): when multiple path
// objects exist for the same (vrf,afi,prefix), pick the first with
// best==true, else the first encountered.
func collapseBGP(rows []rowmodel.BGPRow) []rowmodel.BGPRow {
	type group struct {
		rep     rowmodel.BGPRow
		hasBest bool
		set     bool
	}
	byKey := make(map[rowmodel.BGPKey]*group)
	var order []rowmodel.BGPKey

	for _, r := range rows {
		k := r.Key()
		g, ok := byKey[k]
		if !ok {
			g = &group{}
			byKey[k] = g
			order = append(order, k)
		}
		if !g.set {
			g.rep = r
			g.set = true
		}
		if r.Best && !g.hasBest {
			g.rep = r
			g.hasBest = true
		}
	}

	out := make([]rowmodel.BGPRow, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k].rep)
	}
	return out
}
