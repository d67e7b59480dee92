// Package readapi exposes the read-only HTTP surface of spec §4.8 over
// a snapstore.Store: list devices, list coordinates, read latest
// snapshots, list/read diffs, list/read archives.
package readapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/route-beacon/routecache/internal/snapstore"
)

// Handler wraps a snapstore.Store with HTTP handlers. It registers
// itself on a *http.ServeMux under /api/v1/.
type Handler struct {
	store snapstore.Store
}

func New(store snapstore.Store) *Handler {
	return &Handler{store: store}
}

// Register mounts every route under mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/v1/devices", h.listDevices)
	mux.HandleFunc("/api/v1/devices/", h.deviceScopedRoute)
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.store.EnumerateDevices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// deviceScopedRoute dispatches every /api/v1/devices/<device>/... path.
// Routes (spec §4.8):
//
//	/api/v1/devices/<device>/coordinates
//	/api/v1/devices/<device>/snapshots/<kind>/<vrf>/<afi>/latest
//	/api/v1/devices/<device>/snapshots/<kind>/<vrf>/<afi>/archive
//	/api/v1/devices/<device>/snapshots/<kind>/<vrf>/<afi>/archive/<ts>
//	/api/v1/devices/<device>/diffs/<vrf>/<afi>
//	/api/v1/devices/<device>/diffs/<vrf>/<afi>/<ts>
func (h *Handler) deviceScopedRoute(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/devices/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	device := parts[0]

	switch parts[1] {
	case "coordinates":
		h.listCoordinates(w, r, device)
	case "snapshots":
		h.snapshotRoute(w, r, device, parts[2:])
	case "diffs":
		h.diffRoute(w, r, device, parts[2:])
	default:
		writeError(w, http.StatusNotFound, errNotFound)
	}
}

func (h *Handler) listCoordinates(w http.ResponseWriter, r *http.Request, device string) {
	coords, err := h.store.EnumerateCoordinates(r.Context(), device)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, coords)
}

func (h *Handler) snapshotRoute(w http.ResponseWriter, r *http.Request, device string, parts []string) {
	if len(parts) < 4 {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	kind, vrf, afi, action := snapstore.Kind(parts[0]), parts[1], parts[2], parts[3]

	switch action {
	case "latest":
		body, exists, err := h.store.ReadLatest(r.Context(), device, kind, vrf, afi)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		if !exists {
			writeError(w, http.StatusNotFound, errNotFound)
			return
		}
		writeRawJSON(w, http.StatusOK, body)

	case "archive":
		if len(parts) == 4 {
			ts, err := h.store.ListArchiveTimestamps(r.Context(), device, kind, vrf, afi)
			if err != nil {
				writeError(w, http.StatusInternalServerError, err)
				return
			}
			writeJSON(w, http.StatusOK, ts)
			return
		}
		ts := parts[4]
		body, err := h.store.ReadArchive(r.Context(), device, kind, vrf, afi, ts)
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeRawJSON(w, http.StatusOK, body)

	default:
		writeError(w, http.StatusNotFound, errNotFound)
	}
}

func (h *Handler) diffRoute(w http.ResponseWriter, r *http.Request, device string, parts []string) {
	if len(parts) < 2 {
		writeError(w, http.StatusNotFound, errNotFound)
		return
	}
	vrf, afi := parts[0], parts[1]

	if len(parts) == 2 {
		entries, err := h.store.ListDiffs(r.Context(), device, vrf, afi)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, entries)
		return
	}

	ts := parts[2]
	body, err := h.store.ReadDiff(r.Context(), device, vrf, afi, ts)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeRawJSON(w, http.StatusOK, body)
}

var errNotFound = httpError("readapi: not found")

type httpError string

func (e httpError) Error() string { return string(e) }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeRawJSON writes an already-serialized JSON payload without
// re-encoding it, preserving the store's byte-stable sorted-key form.
func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
