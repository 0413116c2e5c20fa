package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"utmcore/internal/apierr"
	"utmcore/internal/geofence"
	"utmcore/models"
)

func (a *API) handleSubmitFlightPlan(w http.ResponseWriter, r *http.Request) {
	var p models.FlightPlan
	if err := decodeJSON(r, &p); err != nil {
		writeError(w, apierr.New(apierr.InvalidInput, "malformed flight plan body"))
		return
	}

	route := append([]models.Waypoint{p.Origin}, p.Waypoints...)
	route = append(route, p.Destination)
	violations := geofence.CheckRoute(route, a.store.ActiveGeofences(), time.Now())
	if geofence.HasFatal(violations) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":      "route crosses a no-fly or restricted geofence",
			"violations": violations,
		})
		return
	}

	out, err := a.store.SubmitFlightPlan(r.Context(), &p)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"flight_plan": out,
		"violations":  violations,
	})
}

func (a *API) handleListFlightPlans(w http.ResponseWriter, r *http.Request) {
	if droneID := r.URL.Query().Get("drone_id"); droneID != "" {
		writeJSON(w, http.StatusOK, a.store.ListFlightPlansForDrone(droneID))
		return
	}
	writeJSON(w, http.StatusOK, a.store.ListFlightPlans())
}

func (a *API) handleCheckFlightPlanRoute(w http.ResponseWriter, r *http.Request) {
	p := a.store.GetFlightPlan(chi.URLParam(r, "flightID"))
	if p == nil {
		writeError(w, apierr.New(apierr.NotFound, "unknown flight plan"))
		return
	}
	route := append([]models.Waypoint{p.Origin}, p.Waypoints...)
	route = append(route, p.Destination)
	violations := geofence.CheckRoute(route, a.store.ActiveGeofences(), time.Now())
	writeJSON(w, http.StatusOK, violations)
}
