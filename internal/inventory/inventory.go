// Package inventory implements scheduler.Inventory: a static list read
// from configuration, and a Netbox-backed fetch (spec §6's
// "enumerated static list" and "fetch_inventory() against an external
// inventory service").
package inventory

import (
	"context"

	"github.com/route-beacon/routecache/internal/config"
	"github.com/route-beacon/routecache/internal/deviceadapter"
	"github.com/route-beacon/routecache/internal/rowmodel"
)

// Static enumerates devices straight from configuration. Credentials
// and transport defaults come from DeviceConfig since the static list
// only names topology (host, vrfs, afis), not how to reach it.
type Static struct {
	Devices []config.StaticDevice
	Device  config.DeviceConfig
}

func NewStatic(devices []config.StaticDevice, deviceCfg config.DeviceConfig) *Static {
	return &Static{Devices: devices, Device: deviceCfg}
}

func (s *Static) Fetch(ctx context.Context) ([]deviceadapter.Descriptor, error) {
	out := make([]deviceadapter.Descriptor, 0, len(s.Devices))
	for _, d := range s.Devices {
		out = append(out, deviceadapter.Descriptor{
			Name:       d.Name,
			Host:       d.Host,
			Username:   s.Device.NetopsUser,
			Password:   s.Device.NetopsPass,
			DeviceType: deviceType(d.DeviceType),
			VRFs:       withDefaultVRF(d.VRFs),
			AFIs:       withDefaultAFI(d.AFIs),
		})
	}
	return out, nil
}

func deviceType(s string) deviceadapter.DeviceType {
	if s == string(deviceadapter.DeviceNXAPI) {
		return deviceadapter.DeviceNXAPI
	}
	return deviceadapter.DeviceSSHCLI
}

func withDefaultVRF(vrfs []string) []string {
	if len(vrfs) == 0 {
		return []string{"default"}
	}
	return vrfs
}

func withDefaultAFI(afis []string) []rowmodel.AFI {
	if len(afis) == 0 {
		return []rowmodel.AFI{rowmodel.AFIv4}
	}
	out := make([]rowmodel.AFI, 0, len(afis))
	for _, a := range afis {
		out = append(out, rowmodel.AFI(a))
	}
	return out
}
