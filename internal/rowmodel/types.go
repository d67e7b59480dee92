// Package rowmodel defines the canonical RIB/BGP row types shared by the
// parser, diff engine, and snapshot store, and the pure normalization
// functions that turn heterogeneous device output into them.
package rowmodel

import "sort"

// AFI identifies an address family.
type AFI string

const (
	AFIv4 AFI = "ipv4"
	AFIv6 AFI = "ipv6"
)

// NextHop is a single ECMP member. Two next-hops with the same NH but
// different Iface are distinct set members (spec: "ECMP set with
// interface disambiguation").
type NextHop struct {
	NH    string `json:"nh"`
	Iface string `json:"iface,omitempty"`
}

func (n NextHop) sortKey() string {
	return n.NH + "\x00" + n.Iface
}

// SortNextHops returns a sorted copy of hops, used both for stable
// serialization and as the basis of multiset-equality comparisons.
func SortNextHops(hops []NextHop) []NextHop {
	out := make([]NextHop, len(hops))
	copy(out, hops)
	sort.Slice(out, func(i, j int) bool { return out[i].sortKey() < out[j].sortKey() })
	return out
}

// NextHopsEqual reports whether two next-hop sets are equal as multisets,
// ignoring input order (spec: "ordering from the device MUST NOT affect
// equality").
func NextHopsEqual(a, b []NextHop) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := SortNextHops(a), SortNextHops(b)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

// UnionNextHops merges two next-hop sets, deduplicating by (nh, iface).
func UnionNextHops(a, b []NextHop) []NextHop {
	seen := make(map[string]NextHop, len(a)+len(b))
	for _, h := range a {
		seen[h.sortKey()] = h
	}
	for _, h := range b {
		seen[h.sortKey()] = h
	}
	out := make([]NextHop, 0, len(seen))
	for _, h := range seen {
		out = append(out, h)
	}
	return SortNextHops(out)
}

// RIBRow is a canonical RIB entry. Equality key: (VRF, AFI, Prefix, Protocol).
type RIBRow struct {
	VRF      string    `json:"vrf"`
	AFI      AFI       `json:"afi"`
	Prefix   string    `json:"prefix"`
	Protocol string    `json:"protocol"`
	Distance *int      `json:"distance,omitempty"`
	Metric   *int      `json:"metric,omitempty"`
	Best     bool      `json:"best"`
	NextHops []NextHop `json:"nexthops"`
}

// RIBKey is the equality key type for RIB rows.
type RIBKey struct {
	VRF, AFI, Prefix, Protocol string
}

// Key returns the row's equality key.
func (r RIBRow) Key() RIBKey {
	return RIBKey{VRF: r.VRF, AFI: string(r.AFI), Prefix: r.Prefix, Protocol: r.Protocol}
}

// BGPRow is a canonical BGP path entry. Equality key: (VRF, AFI, Prefix).
type BGPRow struct {
	VRF             string    `json:"vrf"`
	AFI             AFI       `json:"afi"`
	Prefix          string    `json:"prefix"`
	Best            bool      `json:"best"`
	NH              string    `json:"nh,omitempty"`
	ASPath          string    `json:"as_path"`
	LocalPref       *int      `json:"local_pref,omitempty"`
	MED             *int      `json:"med,omitempty"`
	Origin          string    `json:"origin,omitempty"`
	Communities     []string  `json:"communities"`
	CommunitiesHash string    `json:"communities_hash"`
	Weight          *int      `json:"weight,omitempty"`
	Peer            string    `json:"peer,omitempty"`
	OriginatorID    string    `json:"originator_id,omitempty"`
	ClusterList     []string  `json:"cluster_list,omitempty"`
}

// BGPKey is the equality key type for BGP rows.
type BGPKey struct {
	VRF, AFI, Prefix string
}

// Key returns the row's equality key.
func (r BGPRow) Key() BGPKey {
	return BGPKey{VRF: r.VRF, AFI: string(r.AFI), Prefix: r.Prefix}
}

// HeadAS returns the leftmost purely numeric AS_PATH token, or "" if the
// path is empty or begins with a set/confederation segment.
func HeadAS(asPath string) string {
	return headAS(asPath)
}
