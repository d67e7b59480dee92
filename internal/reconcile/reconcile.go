package reconcile

import (
	"encoding/json"
	"fmt"

	"github.com/route-beacon/routecache/internal/rowmodel"
)

// Kind identifies which table a raw payload represents.
type Kind string

const (
	KindRIB Kind = "rib"
	KindBGP Kind = "bgp"
)

// ErrUnknownShape is returned when neither known dialect is recognized.
// The caller (device adapter / parser boundary) treats this as a
// table-scoped Parse error per spec §7.
var ErrUnknownShape = fmt.Errorf("reconcile: unrecognized JSON shape")

// ParseRIB decodes raw device JSON (either shape) into canonical RIB rows
// for the requested (vrf, afi). The reconciler never raises on unknown
// fields within a recognized shape; it emits what it recognizes.
func ParseRIB(raw []byte, vrf string, afi rowmodel.AFI) ([]rowmodel.RIBRow, error) {
	root, err := decodeRoot(raw)
	if err != nil {
		return nil, err
	}
	switch detectShape(root) {
	case shapeB:
		return ribRowsShapeB(root, vrf, afi)
	case shapeA:
		return ribRowsShapeA(root, vrf, afi)
	default:
		return nil, ErrUnknownShape
	}
}

// ParseBGP decodes raw device JSON (either shape) into canonical BGP rows
// for the requested (vrf, afi).
func ParseBGP(raw []byte, vrf string, afi rowmodel.AFI) ([]rowmodel.BGPRow, error) {
	root, err := decodeRoot(raw)
	if err != nil {
		return nil, err
	}
	switch detectShape(root) {
	case shapeB:
		return bgpRowsShapeB(root, vrf, afi)
	case shapeA:
		return bgpRowsShapeA(root, vrf, afi)
	default:
		return nil, ErrUnknownShape
	}
}

type shape int

const (
	shapeUnknown shape = iota
	shapeA
	shapeB
)

func detectShape(root map[string]any) shape {
	if _, ok := root["TABLE_vrf"]; ok {
		return shapeB
	}
	if _, ok := root["vrf"]; ok {
		return shapeA
	}
	return shapeUnknown
}

func decodeRoot(raw []byte) (map[string]any, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("reconcile: decode: %w", err)
	}
	return root, nil
}
