package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"utmcore/internal/apierr"
	"utmcore/internal/auth"
	"utmcore/models"
)

func (a *API) handleEnqueueCommand(w http.ResponseWriter, r *http.Request) {
	var c models.Command
	if err := decodeJSON(r, &c); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed command body"))
		return
	}
	out, err := a.store.EnqueueCommand(r.Context(), &c)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

func (a *API) handleAckCommand(w http.ResponseWriter, r *http.Request) {
	if err := a.store.AckCommand(r.Context(), chi.URLParam(r, "commandID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acked"})
}

func (a *API) handlePopNextCommand(w http.ResponseWriter, r *http.Request) {
	principal, err := auth.RequireDrone(r.Context())
	if err != nil {
		writeError(w, apierr.New(apierr.Unauthorized, err.Error()))
		return
	}
	cmd, err := a.store.PopNextCommand(r.Context(), principal.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	if cmd == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, cmd)
}

func (a *API) handleListCommandsForDrone(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.store.ListCommandsForDrone(chi.URLParam(r, "droneID")))
}
