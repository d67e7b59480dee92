package inventory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/route-beacon/routecache/internal/config"
	"github.com/route-beacon/routecache/internal/deviceadapter"
	"github.com/route-beacon/routecache/internal/rowmodel"
)

func TestStatic_FetchAppliesDefaults(t *testing.T) {
	s := NewStatic(
		[]config.StaticDevice{{Name: "r1", Host: "10.0.0.1"}},
		config.DeviceConfig{NetopsUser: "netops", NetopsPass: "secret"},
	)

	devices, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(devices))
	}
	d := devices[0]
	if d.Username != "netops" || d.Password != "secret" {
		t.Errorf("expected credentials from DeviceConfig, got %+v", d)
	}
	if len(d.VRFs) != 1 || d.VRFs[0] != "default" {
		t.Errorf("expected default VRF, got %v", d.VRFs)
	}
	if len(d.AFIs) != 1 || d.AFIs[0] != rowmodel.AFIv4 {
		t.Errorf("expected default ipv4 AFI, got %v", d.AFIs)
	}
	if d.DeviceType != deviceadapter.DeviceSSHCLI {
		t.Errorf("expected ssh_cli default device type, got %v", d.DeviceType)
	}
}

func TestStatic_FetchPreservesExplicitTopology(t *testing.T) {
	s := NewStatic(
		[]config.StaticDevice{{
			Name:       "r2",
			Host:       "10.0.0.2",
			DeviceType: "nxapi",
			VRFs:       []string{"red", "blue"},
			AFIs:       []string{"ipv4", "ipv6"},
		}},
		config.DeviceConfig{},
	)

	devices, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	d := devices[0]
	if d.DeviceType != deviceadapter.DeviceNXAPI {
		t.Errorf("expected nxapi device type, got %v", d.DeviceType)
	}
	if len(d.VRFs) != 2 || len(d.AFIs) != 2 {
		t.Errorf("expected explicit topology preserved, got %+v", d)
	}
}

func TestNetbox_FetchParsesDeviceList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Token secrettoken" {
			t.Errorf("expected Authorization header, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/api/devices/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]netboxDevice{
			{Name: "r1", Host: "10.0.0.1", DeviceType: "nxapi", VRFs: []string{"default"}, AFIs: []string{"ipv4"}},
		})
	}))
	defer srv.Close()

	n := NewNetbox(config.InventoryConfig{NetboxURL: srv.URL, NBToken: "secrettoken"}, config.DeviceConfig{}, 0)
	devices, err := n.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(devices) != 1 || devices[0].Name != "r1" {
		t.Fatalf("unexpected devices: %+v", devices)
	}
	if devices[0].DeviceType != deviceadapter.DeviceNXAPI {
		t.Errorf("expected nxapi device type, got %v", devices[0].DeviceType)
	}
}

func TestNetbox_FetchNonOKStatusIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("unauthorized"))
	}))
	defer srv.Close()

	n := NewNetbox(config.InventoryConfig{NetboxURL: srv.URL, NBToken: "bad"}, config.DeviceConfig{}, 0)
	if _, err := n.Fetch(context.Background()); err == nil {
		t.Fatal("expected error for non-200 netbox response")
	}
}
