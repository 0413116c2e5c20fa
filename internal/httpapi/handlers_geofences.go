package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"utmcore/internal/apierr"
	"utmcore/models"
)

func (a *API) handleUpsertGeofence(w http.ResponseWriter, r *http.Request) {
	var g models.Geofence
	if err := decodeJSON(r, &g); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed geofence body"))
		return
	}
	out, err := a.store.UpsertGeofence(r.Context(), &g)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleDeleteGeofence(w http.ResponseWriter, r *http.Request) {
	if err := a.store.DeleteGeofence(r.Context(), chi.URLParam(r, "geofenceID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (a *API) handleListGeofences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.ListGeofences())
}
