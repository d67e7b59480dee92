package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/route-beacon/routecache/internal/config"
	"github.com/route-beacon/routecache/internal/deviceadapter"
)

// Netbox implements scheduler.Inventory by querying an external
// inventory service's device list (spec §6: "fetch_inventory()").
// Device topology (vrfs, afis) rides along on each entry; transport
// credentials still come from DeviceConfig, same as Static.
type Netbox struct {
	baseURL string
	token   string
	device  config.DeviceConfig
	client  *http.Client
}

func NewNetbox(cfg config.InventoryConfig, deviceCfg config.DeviceConfig, timeout time.Duration) *Netbox {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Netbox{
		baseURL: cfg.NetboxURL,
		token:   cfg.NBToken,
		device:  deviceCfg,
		client:  &http.Client{Timeout: timeout},
	}
}

type netboxDevice struct {
	Name       string   `json:"name"`
	Host       string   `json:"host"`
	DeviceType string   `json:"device_type"`
	VRFs       []string `json:"vrfs"`
	AFIs       []string `json:"afis"`
}

// Fetch queries <baseURL>/api/devices/ and maps the response into
// device descriptors. Any status other than 200, or a malformed body,
// is returned as an error; the scheduler's RunOnce returns it, failing
// the entire cycle before any device work starts.
func (n *Netbox) Fetch(ctx context.Context) ([]deviceadapter.Descriptor, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/api/devices/", nil)
	if err != nil {
		return nil, fmt.Errorf("inventory: build netbox request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+n.token)
	req.Header.Set("Accept", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inventory: netbox request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("inventory: read netbox response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inventory: netbox returned status %d: %s", resp.StatusCode, string(raw))
	}

	var devices []netboxDevice
	if err := json.Unmarshal(raw, &devices); err != nil {
		return nil, fmt.Errorf("inventory: decode netbox response: %w", err)
	}

	out := make([]deviceadapter.Descriptor, 0, len(devices))
	for _, d := range devices {
		out = append(out, deviceadapter.Descriptor{
			Name:       d.Name,
			Host:       d.Host,
			Username:   n.device.NetopsUser,
			Password:   n.device.NetopsPass,
			DeviceType: deviceType(d.DeviceType),
			VRFs:       withDefaultVRF(d.VRFs),
			AFIs:       withDefaultAFI(d.AFIs),
		})
	}
	return out, nil
}
