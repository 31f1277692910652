package host

import (
	"encoding/json"
	"net/http"

	"github.com/GoCodeAlone/atelier/descriptor"
	"github.com/GoCodeAlone/atelier/sandbox"
)

// Handler returns the admin HTTP surface: descriptor listing and queries,
// activation controls, user-plugin install/uninstall, the UI element feed,
// the websocket change feed, and metrics.
func (h *Host) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/plugins", h.handleList)
	mux.HandleFunc("POST /api/plugins", h.handleInstall)
	mux.HandleFunc("GET /api/plugins/{id}", h.handleGet)
	mux.HandleFunc("DELETE /api/plugins/{id}", h.handleUninstall)
	mux.HandleFunc("POST /api/plugins/{id}/activate", h.handleTransition("activate"))
	mux.HandleFunc("POST /api/plugins/{id}/deactivate", h.handleTransition("deactivate"))
	mux.HandleFunc("POST /api/plugins/{id}/toggle", h.handleTransition("toggle"))
	mux.HandleFunc("GET /api/plugins/{id}/dependents", h.handleDependents)

	mux.HandleFunc("GET /api/ui/elements", h.handleUIElements)
	mux.HandleFunc("GET /api/ui/notifications", h.handleUINotifications)

	mux.Handle("GET /ws", h.Events)

	if h.cfg.Metrics.Enabled {
		path := h.cfg.Metrics.Path
		if path == "" {
			path = "/metrics"
		}
		mux.Handle("GET "+path, h.Metrics.Handler())
	}
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// pluginView is the API shape of one descriptor, augmented with sandbox
// runtime state for ui-plugin descriptors.
type pluginView struct {
	descriptor.Descriptor
	SandboxState string `json:"sandboxState,omitempty"`
	LoadError    string `json:"loadError,omitempty"`
}

func (h *Host) view(d descriptor.Descriptor) pluginView {
	v := pluginView{Descriptor: d}
	if d.Family == descriptor.FamilyUIPlugin {
		if state, ok := h.Sandbox.State(d.ID); ok {
			v.SandboxState = string(state)
			v.LoadError = h.Sandbox.LoadError(d.ID)
		}
	}
	return v
}

func (h *Host) views(ds []descriptor.Descriptor) []pluginView {
	out := make([]pluginView, len(ds))
	for i, d := range ds {
		out[i] = h.view(d)
	}
	return out
}

// handleList serves all descriptors, optionally narrowed by ?family= or a
// boolean ?filter= expression.
func (h *Host) handleList(w http.ResponseWriter, r *http.Request) {
	if expression := r.URL.Query().Get("filter"); expression != "" {
		ds, err := h.Catalog.Filter(expression)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, h.views(ds))
		return
	}

	if raw := r.URL.Query().Get("family"); raw != "" {
		// Accept the internal family vocabulary the API itself serializes;
		// the external bundle synonyms keep working as a fallback.
		family := descriptor.Family(raw)
		if !descriptor.KnownFamily(family) {
			var err error
			family, err = descriptor.NormalizeFamily(raw)
			if err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
		}
		writeJSON(w, http.StatusOK, h.views(h.Catalog.GetByFamily(family)))
		return
	}

	writeJSON(w, http.StatusOK, h.views(h.Catalog.GetAll()))
}

func (h *Host) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := h.Catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown descriptor: "+id)
		return
	}
	writeJSON(w, http.StatusOK, h.view(d))
}

// handleTransition runs one activation operation. Refused transitions (an
// unknown id, or deactivating a non-disableable descriptor) come back as
// HTTP errors; a successful call returns the descriptor's new state.
func (h *Host) handleTransition(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		d, found := h.Catalog.Get(id)
		if !found {
			writeError(w, http.StatusNotFound, "unknown descriptor: "+id)
			return
		}

		var ok bool
		switch op {
		case "activate":
			ok = h.Activation.Activate(r.Context(), id)
		case "deactivate":
			ok = h.Activation.Deactivate(r.Context(), id)
		case "toggle":
			ok = h.Activation.Toggle(r.Context(), id)
		}
		if !ok {
			if !d.CanDisable {
				writeError(w, http.StatusConflict, "descriptor cannot be disabled: "+id)
				return
			}
			writeError(w, http.StatusConflict, op+" refused for "+id)
			return
		}

		d, _ = h.Catalog.Get(id)
		writeJSON(w, http.StatusOK, h.view(d))
	}
}

func (h *Host) handleDependents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := h.Catalog.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown descriptor: "+id)
		return
	}
	writeJSON(w, http.StatusOK, h.views(h.Catalog.Dependents(id)))
}

// installRequest is the POST /api/plugins body.
type installRequest struct {
	Manifest sandbox.Manifest `json:"manifest"`
	Source   string           `json:"source"`
}

func (h *Host) handleInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := h.InstallUserPlugin(r.Context(), req.Manifest, req.Source); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	d, _ := h.Catalog.Get(req.Manifest.ID)
	writeJSON(w, http.StatusCreated, h.view(d))
}

func (h *Host) handleUninstall(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, ok := h.Catalog.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown descriptor: "+id)
		return
	}
	if d.Family != descriptor.FamilyUIPlugin {
		writeError(w, http.StatusConflict, "only user plugins can be uninstalled: "+id)
		return
	}
	if err := h.UninstallUserPlugin(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Host) handleUIElements(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.UI.Elements())
}

func (h *Host) handleUINotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.UI.Notifications())
}
