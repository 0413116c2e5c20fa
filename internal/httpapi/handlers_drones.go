package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"utmcore/internal/apierr"
	"utmcore/internal/auth"
	"utmcore/models"
)

type registerRequest struct {
	DroneID string `json:"drone_id,omitempty"`
	OwnerID string `json:"owner_id"`
}

type registerResponse struct {
	DroneID string `json:"drone_id"`
	Token   string `json:"token"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed request body"))
		return
	}
	id, tok, err := a.store.Register(r.Context(), req.DroneID, req.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, registerResponse{DroneID: id, Token: tok})
}

func (a *API) handleIngestTelemetry(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequireDrone(r.Context())
	if err != nil {
		writeError(w, apierr.New(apierr.Unauthorized, err.Error()))
		return
	}
	var t models.Telemetry
	if err := decodeJSON(r, &t); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed telemetry body"))
		return
	}
	t.DroneID = principal.Name
	tok, _ := tokenFromContext(r.Context())
	if err := a.store.IngestTelemetry(r.Context(), tok, t); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (a *API) handleListDrones(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.ListDrones())
}

func (a *API) handleGetDrone(w http.ResponseWriter, r *http.Request) {
	d := a.store.GetDrone(chi.URLParam(r, "droneID"))
	if d == nil {
		writeError(w, apierr.New(apierr.NotFound, "unknown drone"))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type setPriorityRequest struct {
	Priority int `json:"priority"`
}

func (a *API) handleSetPriority(w http.ResponseWriter, r *http.Request) {
	var req setPriorityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed request body"))
		return
	}
	if err := a.store.SetPriority(r.Context(), chi.URLParam(r, "droneID"), req.Priority); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (a *API) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.conflicts())
}

func (a *API) handleAdminReset(w http.ResponseWriter, r *http.Request) {
	if err := a.store.AdminReset(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
