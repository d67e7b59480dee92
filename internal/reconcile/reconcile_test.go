package reconcile

import (
	"testing"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

func TestParseRIBShapeA(t *testing.T) {
	raw := []byte(`{
		"vrf": {
			"default": {
				"address_family": {
					"ipv4": {
						"routes": {
							"10.0.0.0/24": {
								"protocol": "ospf",
								"distance": 110,
								"metric": 20,
								"best": true,
								"next_hop": {
									"next_hop_list": [
										{"next_hop": "2.2.2.2", "interface": "Eth1/2"},
										{"next_hop": "1.1.1.1", "interface": "Eth1/1"}
									]
								}
							}
						}
					}
				}
			}
		}
	}`)

	rows, err := ParseRIB(raw, "default", rowmodel.AFIv4)
	if err != nil {
		t.Fatalf("ParseRIB: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	r := rows[0]
	if r.Prefix != "10.0.0.0/24" || r.Protocol != "ospf" || !r.Best {
		t.Fatalf("unexpected row: %+v", r)
	}
	if len(r.NextHops) != 2 {
		t.Fatalf("expected 2 next-hops, got %d", len(r.NextHops))
	}
}

func TestParseRIBShapeBSingleObjectNormalization(t *testing.T) {
	// Scenario 5: TABLE_vrf.ROW_vrf as a single object (not a list), with
	// TABLE_prefix.ROW_prefix also a single object.
	raw := []byte(`{
		"TABLE_vrf": {
			"ROW_vrf": {
				"vrf-name-out": "default",
				"TABLE_addrf": {
					"ROW_addrf": {
						"addrf": "ipv4",
						"TABLE_prefix": {
							"ROW_prefix": {
								"ipprefix": "10.1.1.0/24",
								"TABLE_paths": {
									"ROW_paths": {
										"clientname": "static",
										"pref": 1,
										"metric": 0,
										"ubest": true,
										"ipnexthop": "10.1.1.1",
										"ifname": "Eth1/1"
									}
								}
							}
						}
					}
				}
			}
		}
	}`)

	rows, err := ParseRIB(raw, "default", rowmodel.AFIv4)
	if err != nil {
		t.Fatalf("ParseRIB: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 row, got %d: %+v", len(rows), rows)
	}
	r := rows[0]
	if r.Prefix != "10.1.1.0/24" || r.Protocol != "static" || !r.Best {
		t.Fatalf("unexpected row: %+v", r)
	}
	if len(r.NextHops) != 1 || r.NextHops[0].NH != "10.1.1.1" || r.NextHops[0].Iface != "Eth1/1" {
		t.Fatalf("unexpected next-hops: %+v", r.NextHops)
	}
}

func TestParseRIBVRFFilter(t *testing.T) {
	raw := []byte(`{
		"TABLE_vrf": {
			"ROW_vrf": [
				{"vrf-name-out": "mgmt", "TABLE_addrf": {"ROW_addrf": {"addrf": "ipv4", "TABLE_prefix": {"ROW_prefix": {"ipprefix": "192.168.0.0/24", "TABLE_paths": {"ROW_paths": {"clientname": "direct", "ipnexthop": "192.168.0.1"}}}}}}},
				{"vrf-name-out": "default", "TABLE_addrf": {"ROW_addrf": []}}
			]
		}
	}`)
	rows, err := ParseRIB(raw, "default", rowmodel.AFIv4)
	if err != nil {
		t.Fatalf("ParseRIB: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("expected no rows (mgmt filtered out, default addrf empty), got %d", len(rows))
	}
}

func TestParseBGPShapeABestPathCollapse(t *testing.T) {
	raw := []byte(`{
		"vrf": {
			"default": {
				"address_family": {
					"ipv4 unicast": {
						"routes": {
							"0.0.0.0/0": {
								"index": {
									"1": {"best": false, "nexthop": "3.3.3.3", "as_path": "65001 3356"},
									"2": {"best": true, "nexthop": "4.4.4.4", "as_path": "65002 3356", "local_pref": 100}
								}
							}
						}
					}
				}
			}
		}
	}`)
	rows, err := ParseBGP(raw, "default", rowmodel.AFIv4)
	if err != nil {
		t.Fatalf("ParseBGP: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 collapsed row, got %d", len(rows))
	}
	if rows[0].NH != "4.4.4.4" || !rows[0].Best {
		t.Fatalf("expected best-path representative, got %+v", rows[0])
	}
}

func TestParseRIBUnknownShape(t *testing.T) {
	raw := []byte(`{"foo": "bar"}`)
	if _, err := ParseRIB(raw, "default", rowmodel.AFIv4); err != ErrUnknownShape {
		t.Fatalf("expected ErrUnknownShape, got %v", err)
	}
}
