// Package deviceadapter fetches raw RIB/BGP tables from network devices
// over either JSON-RPC-over-HTTPS (nxapi) or CLI-over-SSH, and isolates
// per-table failures so a single bad command never fails a whole device
// collection cycle.
package deviceadapter

import "github.com/route-beacon/routecache/internal/rowmodel"

// DeviceType is an opaque tag identifying the device's command family.
type DeviceType string

const (
	// DeviceNXAPI devices accept JSON-RPC-over-HTTPS requests at /ins.
	DeviceNXAPI DeviceType = "nxapi"
	// DeviceSSHCLI devices are only reachable over an interactive CLI
	// session.
	DeviceSSHCLI DeviceType = "ssh_cli"
)

// Descriptor is a single inventory entry: everything the adapter needs to
// reach a device and the set of (vrf, afi) coordinates to collect.
type Descriptor struct {
	Name       string
	Host       string
	Username   string
	Password   string
	DeviceType DeviceType
	VRFs       []string
	AFIs       []rowmodel.AFI
}

// RawTable is one collected (vrf, afi) command result, or the error that
// caused that table to be omitted from the cycle's output.
type RawTable struct {
	VRF  string
	AFI  rowmodel.AFI
	Body []byte
	Err  error
}

// Tables is the per-device collection result: raw RIB and BGP tables for
// every requested coordinate that succeeded (failed ones are recorded with
// a non-nil Err and an empty Body, never silently dropped from the slice,
// so callers can log/count the failure before skipping the table).
type Tables struct {
	RIB []RawTable
	BGP []RawTable
}

func ribCommand(vrf string, afi rowmodel.AFI) string {
	if afi == rowmodel.AFIv6 {
		return "show ipv6 route vrf " + vrf
	}
	return "show ip route vrf " + vrf
}

func bgpCommand(vrf string, afi rowmodel.AFI) string {
	if afi == rowmodel.AFIv6 {
		return "show bgp vrf " + vrf + " ipv6 unicast"
	}
	return "show bgp vrf " + vrf + " ipv4 unicast"
}
